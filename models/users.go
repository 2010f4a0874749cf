package models

import "time"

const (
	RoleCustomer = "customer"
	RoleWaiter   = "waiter"
	RoleKitchen  = "kitchen"
	RoleManager  = "manager"
)

type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"type:varchar(255);not null" json:"name"`
	Email        string `gorm:"type:varchar(255);unique;not null" json:"email"`
	Role         string `gorm:"type:varchar(20);not null;index:idx_restaurant_role" json:"role"`
	RestaurantID *uint  `gorm:"index:idx_restaurant_role" json:"restaurantId,omitempty"`
	IsActive     bool   `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsStaffRole reports whether role belongs to restaurant staff.
func IsStaffRole(role string) bool {
	switch role {
	case RoleWaiter, RoleKitchen, RoleManager:
		return true
	}
	return false
}
