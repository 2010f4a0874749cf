package models

import "time"

const (
	OrderPlaced    = "PLACED"
	OrderPreparing = "PREPARING"
	OrderReady     = "READY"
	OrderServed    = "SERVED"
	OrderPaid      = "PAID"
	OrderCompleted = "COMPLETED"

	PaymentPending = "PENDING"
	PaymentPaid    = "PAID"
)

var OrderStatuses = []string{OrderPlaced, OrderPreparing, OrderReady, OrderServed, OrderPaid, OrderCompleted}

// CustomerDetails is free-form contact data captured at the table.
type CustomerDetails struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	RestaurantID    uint            `gorm:"not null;index:idx_order_table" json:"restaurantId"`
	TableID         uint            `gorm:"not null;index:idx_order_table" json:"tableId"`
	WaiterID        *uint           `gorm:"index" json:"waiterId"`
	TableNo         string          `gorm:"type:varchar(50)" json:"tableNo"`
	CustomerDetails CustomerDetails `gorm:"serializer:json;type:text" json:"customerDetails"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"items"`
	TotalAmount     float64         `gorm:"type:decimal(10,2);not null;default:0.00" json:"totalAmount"`
	Status          string          `gorm:"type:varchar(20);not null;default:'PLACED'" json:"status"`
	PaymentStatus   string          `gorm:"type:varchar(20);not null;default:'PENDING'" json:"paymentStatus"`
	IsSessionClosed bool            `gorm:"not null;default:false" json:"isSessionClosed"`
	CreatedAt       time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updatedAt"`
}
