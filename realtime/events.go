package realtime

import "fmt"

// Staff room events
const (
	EventBookingCreated   = "booking:created"
	EventBookingCancelled = "booking:cancelled"
	EventNewOrder         = "new_order"
	EventOrderUpdate      = "order_update"
	EventTableFreed       = "table_freed"
	EventStaffUpdate      = "staff_update"
)

// Public room events. Menu events are emitted by the menu service onto the
// same rooms.
const (
	EventTableUnavailable = "table:unavailable"
	EventTableAvailable   = "table:available"
	EventTableLocked      = "table:locked"
	EventTableUnlocked    = "table:unlocked"
	EventMenuStockUpdate  = "menu_stock_update"
	EventMenuFullUpdate   = "menu_full_update"
)

// Client -> server messages
const (
	JoinStaffRoom  = "join_staff_room"
	JoinTableRoom  = "join_table_room"
	JoinPublicRoom = "join_public_room"
	LeaveRoom      = "leave_room"
)

// Server -> client control frames
const (
	EventJoined = "joined"
	EventLeft   = "left"
	EventError  = "error"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func StaffRoom(restaurantID uint) string {
	return fmt.Sprintf("staff:%d", restaurantID)
}

func PublicRoom(restaurantID uint) string {
	return fmt.Sprintf("public:%d", restaurantID)
}

func TableRoom(restaurantID, tableID uint) string {
	return fmt.Sprintf("table:%d:%d", restaurantID, tableID)
}
