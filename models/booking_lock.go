package models

import "time"

// BookingLock is a short-lived exclusive hold on a slot. The unique index over
// (restaurant, table, date, start time) is what makes concurrent acquires
// mutually exclusive.
type BookingLock struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	RestaurantID uint      `gorm:"not null;uniqueIndex:idx_booking_lock_slot,priority:1" json:"restaurantId"`
	TableID      uint      `gorm:"not null;uniqueIndex:idx_booking_lock_slot,priority:2" json:"tableId"`
	Date         string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_booking_lock_slot,priority:3" json:"date"`
	StartTime    string    `gorm:"type:varchar(5);not null;uniqueIndex:idx_booking_lock_slot,priority:4" json:"startTime"`
	EndTime      string    `gorm:"type:varchar(5);not null" json:"endTime"`
	LockedBy     uint      `gorm:"not null" json:"lockedBy"`
	CreatedAt    time.Time `gorm:"not null" json:"createdAt"`
	ExpiresAt    time.Time `gorm:"not null;index" json:"expiresAt"`
}

// SlotKey identifies one bookable slot.
type SlotKey struct {
	RestaurantID uint
	TableID      uint
	Date         string
	StartTime    string
}

func (l BookingLock) Key() SlotKey {
	return SlotKey{RestaurantID: l.RestaurantID, TableID: l.TableID, Date: l.Date, StartTime: l.StartTime}
}
