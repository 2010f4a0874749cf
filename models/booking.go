package models

import "time"

const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
	BookingNoShow    = "no-show"
	BookingGrace     = "grace"
)

// BlockingBookingStatuses hold a table for their interval.
var BlockingBookingStatuses = []string{BookingConfirmed, BookingGrace}

type Booking struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RestaurantID uint      `gorm:"not null;index:idx_booking_slot" json:"restaurantId"`
	TableID      uint      `gorm:"not null;index:idx_booking_slot" json:"tableId"`
	UserID       uint      `gorm:"not null;index" json:"userId"`
	Date         string    `gorm:"type:varchar(10);not null;index:idx_booking_slot" json:"date"`
	StartTime    string    `gorm:"type:varchar(5);not null" json:"startTime"`
	EndTime      string    `gorm:"type:varchar(5);not null" json:"endTime"`
	GuestCount   int       `gorm:"not null" json:"guestCount"`
	Status       string    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Notes        string    `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null" json:"updatedAt"`
}
