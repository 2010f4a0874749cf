package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/realtime"
	"github.com/yeremiapane/restaurant-booking/utils"
)

// maxTableWriteAttempts bounds the retries of an occupancy write that lost
// its version check.
const maxTableWriteAttempts = 3

var errStaleTable = errors.New("table changed concurrently")

type OrderItemInput struct {
	MenuItemID string         `json:"menuItemId"`
	Name       string         `json:"name"`
	Price      float64        `json:"price"`
	Quantity   int            `json:"quantity"`
	Addons     []models.Addon `json:"addons"`
}

type PlaceOrderRequest struct {
	RestaurantID    uint                   `json:"restaurantId"`
	TableID         uint                   `json:"tableId"`
	TableNo         string                 `json:"tableNo"`
	Items           []OrderItemInput       `json:"items"`
	TotalAmount     float64                `json:"totalAmount"`
	CustomerDetails models.CustomerDetails `json:"customerDetails"`
}

// TableFreedEvent is the payload of table_freed.
type TableFreedEvent struct {
	RestaurantID uint  `json:"restaurantId"`
	TableID      uint  `json:"tableId"`
	OrderID      *uint `json:"orderId"`
}

type OrderService struct {
	db          *gorm.DB
	broadcaster realtime.Broadcaster
}

func NewOrderService(db *gorm.DB, broadcaster realtime.Broadcaster) *OrderService {
	return &OrderService{db: db, broadcaster: broadcaster}
}

// PlaceOrder records an order and marks its table occupied. The table keeps
// its waiter for the whole session; a table without one gets the least
// loaded active waiter.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*models.Order, error) {
	if err := validateOrder(req); err != nil {
		return nil, err
	}

	var restaurant models.Restaurant
	if err := s.db.WithContext(ctx).First(&restaurant, req.RestaurantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("restaurant not found")
		}
		return nil, err
	}

	var order *models.Order
	var err error
	for attempt := 1; attempt <= maxTableWriteAttempts; attempt++ {
		order, err = s.placeOnce(ctx, req)
		if !errors.Is(err, errStaleTable) {
			break
		}
		utils.InfoLogger.WithFields(logrus.Fields{
			"restaurant": req.RestaurantID,
			"table":      req.TableID,
			"attempt":    attempt,
		}).Debug("table version moved, retrying order")
	}
	if errors.Is(err, errStaleTable) {
		return nil, &ConflictError{Reason: ConflictStale, Message: "table is being updated, please retry"}
	}
	if err != nil {
		return nil, err
	}

	emit(s.broadcaster, realtime.StaffRoom(order.RestaurantID), realtime.EventNewOrder, order)
	emit(s.broadcaster, realtime.TableRoom(order.RestaurantID, order.TableID), realtime.EventOrderUpdate, order)

	utils.InfoLogger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"restaurant": order.RestaurantID,
		"table":      order.TableID,
		"waiter":     order.WaiterID,
	}).Info("order placed")
	return order, nil
}

func validateOrder(req PlaceOrderRequest) error {
	switch {
	case req.RestaurantID == 0:
		return validationf("restaurantId is required")
	case req.TableID == 0:
		return validationf("tableId is required")
	case len(req.Items) == 0:
		return validationf("order must contain at least one item")
	case req.TotalAmount < 0:
		return validationf("totalAmount must not be negative")
	}
	for i, item := range req.Items {
		if item.Quantity < 1 {
			return validationf("item %d: quantity must be at least 1", i)
		}
		if item.Price < 0 {
			return validationf("item %d: price must not be negative", i)
		}
	}
	return nil
}

func (s *OrderService) placeOnce(ctx context.Context, req PlaceOrderRequest) (*models.Order, error) {
	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var table models.Table
		err := tx.Where("id = ? AND restaurant_id = ?", req.TableID, req.RestaurantID).First(&table).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("table not found")
			}
			return err
		}

		waiterID := table.AssignedWaiterID
		if waiterID == nil {
			picked, err := pickWaiter(tx, req.RestaurantID)
			if err != nil {
				return fmt.Errorf("pick waiter: %w", err)
			}
			waiterID = picked
		}

		order = buildOrder(req, &table, waiterID)
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		res := tx.Model(&models.Table{}).
			Where("id = ? AND version = ?", table.ID, table.Version).
			Updates(map[string]interface{}{
				"is_occupied":        true,
				"current_order_id":   order.ID,
				"assigned_waiter_id": waiterID,
				"version":            gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("occupy table: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errStaleTable
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func buildOrder(req PlaceOrderRequest, table *models.Table, waiterID *uint) *models.Order {
	items := make([]models.OrderItem, 0, len(req.Items))
	var total float64
	for _, in := range req.Items {
		line := in.Price
		for _, a := range in.Addons {
			line += a.Price
		}
		total += line * float64(in.Quantity)
		items = append(items, models.OrderItem{
			MenuItemID: in.MenuItemID,
			Name:       in.Name,
			Price:      in.Price,
			Quantity:   in.Quantity,
			Addons:     in.Addons,
		})
	}
	if req.TotalAmount > 0 {
		total = req.TotalAmount
	}

	tableNo := req.TableNo
	if tableNo == "" {
		tableNo = table.TableNumber
	}
	return &models.Order{
		RestaurantID:    req.RestaurantID,
		TableID:         table.ID,
		WaiterID:        waiterID,
		TableNo:         tableNo,
		CustomerDetails: req.CustomerDetails,
		Items:           items,
		TotalAmount:     total,
		Status:          models.OrderPlaced,
		PaymentStatus:   models.PaymentPending,
	}
}

// pickWaiter balances across active waiters of the restaurant in id order.
// nil means nobody is on shift.
func pickWaiter(tx *gorm.DB, restaurantID uint) (*uint, error) {
	var waiters []models.User
	err := tx.Where("restaurant_id = ? AND role = ? AND is_active = ?", restaurantID, models.RoleWaiter, true).
		Order("id asc").
		Find(&waiters).Error
	if err != nil {
		return nil, err
	}
	if len(waiters) == 0 {
		return nil, nil
	}

	var counts []struct {
		AssignedWaiterID uint
		Total            int
	}
	err = tx.Model(&models.Table{}).
		Select("assigned_waiter_id, count(*) as total").
		Where("restaurant_id = ? AND assigned_waiter_id IS NOT NULL", restaurantID).
		Group("assigned_waiter_id").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	byWaiter := make(map[uint]int, len(counts))
	for _, c := range counts {
		byWaiter[c.AssignedWaiterID] = c.Total
	}

	loads := make([]WaiterLoad, 0, len(waiters))
	for _, w := range waiters {
		loads = append(loads, WaiterLoad{WaiterID: w.ID, Tables: byWaiter[w.ID]})
	}
	id, _ := PickLeastLoaded(loads)
	return &id, nil
}

// UpdateOrderStatus sets any of the order statuses on an order of
// restaurantID. PAID also settles the payment.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, restaurantID, orderID uint, status string) (*models.Order, error) {
	if !validOrderStatus(status) {
		return nil, validationf("invalid status %q", status)
	}

	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundf("order not found")
		}
		return nil, err
	}
	if order.RestaurantID != restaurantID {
		return nil, fmt.Errorf("%w: order belongs to another restaurant", ErrForbidden)
	}

	updates := map[string]interface{}{"status": status}
	if status == models.OrderPaid {
		updates["payment_status"] = models.PaymentPaid
	}
	if err := s.db.WithContext(ctx).Model(&order).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if err := s.db.WithContext(ctx).Preload("Items").First(&order, orderID).Error; err != nil {
		return nil, err
	}

	emit(s.broadcaster, realtime.TableRoom(order.RestaurantID, order.TableID), realtime.EventOrderUpdate, &order)
	emit(s.broadcaster, realtime.StaffRoom(order.RestaurantID), realtime.EventOrderUpdate, &order)
	return &order, nil
}

func validOrderStatus(status string) bool {
	for _, s := range models.OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// FreeTable ends the dining session: the current order is completed, every
// open order of the table is closed and the table loses its waiter.
func (s *OrderService) FreeTable(ctx context.Context, restaurantID, tableID uint) (*models.Table, error) {
	if restaurantID == 0 || tableID == 0 {
		return nil, validationf("restaurantId and tableId are required")
	}

	var freed *models.Table
	var completed *uint
	var err error
	for attempt := 0; attempt < maxTableWriteAttempts; attempt++ {
		freed, completed, err = s.freeOnce(ctx, restaurantID, tableID)
		if !errors.Is(err, errStaleTable) {
			break
		}
	}
	if errors.Is(err, errStaleTable) {
		return nil, &ConflictError{Reason: ConflictStale, Message: "table is being updated, please retry"}
	}
	if err != nil {
		return nil, err
	}

	event := TableFreedEvent{RestaurantID: restaurantID, TableID: tableID, OrderID: completed}
	emit(s.broadcaster, realtime.TableRoom(restaurantID, tableID), realtime.EventTableFreed, event)
	emit(s.broadcaster, realtime.StaffRoom(restaurantID), realtime.EventTableFreed, event)

	utils.InfoLogger.WithFields(logrus.Fields{
		"restaurant": restaurantID,
		"table":      tableID,
		"order_id":   completed,
	}).Info("table freed")
	return freed, nil
}

func (s *OrderService) freeOnce(ctx context.Context, restaurantID, tableID uint) (*models.Table, *uint, error) {
	var table models.Table
	var completed *uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND restaurant_id = ?", tableID, restaurantID).First(&table).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundf("table not found")
			}
			return err
		}

		if table.CurrentOrderID != nil {
			if err := tx.Model(&models.Order{}).
				Where("id = ?", *table.CurrentOrderID).
				Update("status", models.OrderCompleted).Error; err != nil {
				return fmt.Errorf("complete order: %w", err)
			}
			completed = table.CurrentOrderID
		}
		if err := tx.Model(&models.Order{}).
			Where("restaurant_id = ? AND table_id = ? AND is_session_closed = ?", restaurantID, tableID, false).
			Update("is_session_closed", true).Error; err != nil {
			return fmt.Errorf("close session: %w", err)
		}

		res := tx.Model(&models.Table{}).
			Where("id = ? AND version = ?", table.ID, table.Version).
			Updates(map[string]interface{}{
				"is_occupied":        false,
				"current_order_id":   nil,
				"assigned_waiter_id": nil,
				"version":            gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("reset table: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errStaleTable
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	table.IsOccupied = false
	table.CurrentOrderID = nil
	table.AssignedWaiterID = nil
	table.Version++
	return &table, completed, nil
}

// ActiveOrdersForTable returns the orders of the table's open session, oldest
// first.
func (s *OrderService) ActiveOrdersForTable(ctx context.Context, restaurantID, tableID uint) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("restaurant_id = ? AND table_id = ? AND is_session_closed = ?", restaurantID, tableID, false).
		Order("created_at asc, id asc").
		Find(&orders).Error
	return orders, err
}

// ActiveOrdersForRestaurant returns every open, not yet completed order,
// oldest first.
func (s *OrderService) ActiveOrdersForRestaurant(ctx context.Context, restaurantID uint) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("restaurant_id = ? AND status <> ? AND is_session_closed = ?", restaurantID, models.OrderCompleted, false).
		Order("created_at asc, id asc").
		Find(&orders).Error
	return orders, err
}
