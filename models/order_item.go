package models

type Addon struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// OrderItem snapshots the menu entry at ordering time; menus themselves live
// in another service.
type OrderItem struct {
	ID         uint    `gorm:"primaryKey" json:"id"`
	OrderID    uint    `gorm:"not null;index" json:"-"`
	MenuItemID string  `gorm:"type:varchar(64);not null" json:"menuItemId"`
	Name       string  `gorm:"type:varchar(255);not null" json:"name"`
	Price      float64 `gorm:"type:decimal(10,2);not null" json:"price"`
	Quantity   int     `gorm:"not null" json:"quantity"`
	Addons     []Addon `gorm:"serializer:json;type:text" json:"addons"`
}
