package models

import "time"

// Restaurant is the aggregate owning its tables. Profile fields are managed
// elsewhere; only what booking and ordering need is mapped here.
type Restaurant struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	AllowBooking bool      `gorm:"not null;default:true" json:"allowBooking"`
	Tables       []Table   `gorm:"foreignKey:RestaurantID" json:"tables,omitempty"`
	CreatedAt    time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null" json:"updatedAt"`
}
