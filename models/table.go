package models

import "time"

type Table struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	RestaurantID     uint      `gorm:"not null;index" json:"restaurantId"`
	TableNumber      string    `gorm:"type:varchar(50);not null" json:"tableNumber"`
	Capacity         int       `gorm:"not null" json:"capacity"`
	IsOccupied       bool      `gorm:"not null;default:false" json:"isOccupied"`
	CurrentOrderID   *uint     `json:"currentOrderId"`
	AssignedWaiterID *uint     `gorm:"index" json:"assignedWaiterId"`
	// Version is bumped on every occupancy write and booking confirmation;
	// writers compare-and-swap on it.
	Version   uint      `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}
