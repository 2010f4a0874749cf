package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/restaurant-booking/config"
	"github.com/yeremiapane/restaurant-booking/controllers"
	"github.com/yeremiapane/restaurant-booking/database"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/realtime"
	"github.com/yeremiapane/restaurant-booking/router"
	"github.com/yeremiapane/restaurant-booking/services"
	"github.com/yeremiapane/restaurant-booking/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogger()
	utils.SetJWTSecret("integration-secret")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type app struct {
	router *gin.Engine
	db     *gorm.DB
	hub    *realtime.Hub

	restaurant models.Restaurant
	table      models.Table
	waiter     models.User
}

type envelope struct {
	Status   bool            `json:"status"`
	Message  string          `json:"message"`
	Conflict bool            `json:"conflict"`
	Data     json.RawMessage `json:"data"`
}

// setupApp wires the same graph as main against an in-memory database.
func setupApp(t *testing.T) *app {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	a := &app{db: db, hub: realtime.NewHub()}
	a.restaurant = models.Restaurant{Name: "Warung Senja", AllowBooking: true}
	require.NoError(t, db.Create(&a.restaurant).Error)
	a.table = models.Table{RestaurantID: a.restaurant.ID, TableNumber: "A1", Capacity: 4}
	require.NoError(t, db.Create(&a.table).Error)
	rid := a.restaurant.ID
	a.waiter = models.User{Name: "Budi", Email: "budi@example.com", Role: models.RoleWaiter, RestaurantID: &rid, IsActive: true}
	require.NoError(t, db.Create(&a.waiter).Error)

	locks := services.NewLockManager(services.NewGormLockStore(db), a.hub)
	cfg := config.Config{CORSOrigin: "*", RateLimitPerSecond: 1000, RateLimitBurst: 1000}
	a.router = router.SetupRouter(cfg, router.Controllers{
		Bookings: controllers.NewBookingController(services.NewBookingService(db, locks, a.hub, time.UTC), locks),
		Orders:   controllers.NewOrderController(services.NewOrderService(db, a.hub)),
		Tables:   controllers.NewTableController(services.NewRestaurantService(db, a.hub)),
		Realtime: controllers.NewRealtimeController(a.hub),
	})
	return a
}

func token(t *testing.T, userID uint, role string, restaurantID uint) string {
	t.Helper()
	tok, err := utils.GenerateToken(userID, role, restaurantID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (a *app) do(t *testing.T, method, path, tok string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body=%s", w.Body.String())
	return w.Code, resp
}

func futureDate() string {
	return time.Now().UTC().AddDate(0, 0, 7).Format("2006-01-02")
}

// TestBookingFlow walks two users racing for the same slot:
// 1. A locks, B is refused with the holder
// 2. A confirms, the lock goes away
// 3. B locks the freed slot but cannot confirm over A's booking
// 4. availability, history and cancellation
func TestBookingFlow(t *testing.T) {
	a := setupApp(t)
	userA := token(t, 101, models.RoleCustomer, 0)
	userB := token(t, 102, models.RoleCustomer, 0)
	date := futureDate()
	slot := map[string]interface{}{"restaurantId": a.restaurant.ID, "tableId": a.table.ID, "date": date, "startTime": "19:00"}

	code, _ := a.do(t, http.MethodPost, "/bookings/lock", "", slot)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp := a.do(t, http.MethodPost, "/bookings/lock", userA, slot)
	require.Equal(t, http.StatusCreated, code, resp.Message)

	code, resp = a.do(t, http.MethodPost, "/bookings/lock", userB, slot)
	require.Equal(t, http.StatusConflict, code)
	assert.True(t, resp.Conflict)
	var lockConflict services.ConflictError
	require.NoError(t, json.Unmarshal(resp.Data, &lockConflict))
	assert.Equal(t, uint(101), lockConflict.LockedBy)

	booking := map[string]interface{}{"restaurantId": a.restaurant.ID, "tableId": a.table.ID, "date": date, "startTime": "19:00", "guestCount": 2, "notes": "window seat"}
	code, resp = a.do(t, http.MethodPost, "/bookings", userA, booking)
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var created struct {
		Booking models.Booking `json:"booking"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, models.BookingConfirmed, created.Booking.Status)
	assert.Equal(t, "20:00", created.Booking.EndTime)

	code, _ = a.do(t, http.MethodPost, "/bookings/lock", userB, slot)
	require.Equal(t, http.StatusCreated, code)

	code, resp = a.do(t, http.MethodPost, "/bookings", userB, booking)
	require.Equal(t, http.StatusConflict, code)
	assert.True(t, resp.Conflict)
	var overlap services.ConflictError
	require.NoError(t, json.Unmarshal(resp.Data, &overlap))
	require.NotNil(t, overlap.Existing)
	assert.Equal(t, created.Booking.ID, overlap.Existing.BookingID)

	code, resp = a.do(t, http.MethodGet, fmt.Sprintf("/bookings?restaurantId=%d&date=%s&startTime=19:00", a.restaurant.ID, date), "", nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var availability struct {
		Bookings   []services.SlotEntry `json:"bookings"`
		Pagination *services.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &availability))
	assert.Nil(t, availability.Pagination)
	require.Len(t, availability.Bookings, 1)
	assert.Equal(t, models.BookingConfirmed, availability.Bookings[0].Status)

	code, _ = a.do(t, http.MethodGet, "/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp = a.do(t, http.MethodGet, "/bookings?page=1&limit=5", userA, nil)
	require.Equal(t, http.StatusOK, code)
	var history struct {
		Bookings   []services.SlotEntry `json:"bookings"`
		Pagination *services.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &history))
	require.NotNil(t, history.Pagination)
	assert.Equal(t, int64(1), history.Pagination.Total)

	path := fmt.Sprintf("/bookings/%d", created.Booking.ID)
	code, _ = a.do(t, http.MethodDelete, path, userB, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = a.do(t, http.MethodDelete, path, userA, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodDelete, "/bookings/9999", userA, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, resp = a.do(t, http.MethodPost, "/bookings/unlock", userA, slot)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"released":false}`, string(resp.Data))
}

func TestBookingValidationOverHTTP(t *testing.T) {
	a := setupApp(t)
	user := token(t, 101, models.RoleCustomer, 0)

	code, resp := a.do(t, http.MethodPost, "/bookings", user, map[string]interface{}{
		"restaurantId": a.restaurant.ID, "tableId": a.table.ID, "date": futureDate(), "startTime": "19:00", "guestCount": 9,
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, resp.Status)

	code, _ = a.do(t, http.MethodPost, "/bookings", user, map[string]interface{}{
		"restaurantId": 999, "tableId": a.table.ID, "date": futureDate(), "startTime": "19:00", "guestCount": 2,
	})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(t, http.MethodPost, "/bookings/lock", user, map[string]interface{}{
		"restaurantId": a.restaurant.ID, "tableId": a.table.ID, "date": futureDate(), "startTime": "7pm",
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

// TestOrderFlow places an order from the table device, moves it through the
// kitchen as staff and frees the table.
func TestOrderFlow(t *testing.T) {
	a := setupApp(t)
	waiter := token(t, a.waiter.ID, models.RoleWaiter, a.restaurant.ID)
	customer := token(t, 101, models.RoleCustomer, 0)
	outsider := token(t, 555, models.RoleWaiter, a.restaurant.ID+1)

	code, resp := a.do(t, http.MethodPost, "/orders/place", "", map[string]interface{}{
		"restaurantId": a.restaurant.ID,
		"tableId":      a.table.ID,
		"tableNo":      "A1",
		"items": []map[string]interface{}{
			{"menuItemId": "nasi-goreng", "name": "Nasi Goreng", "price": 15000, "quantity": 2},
		},
		"customerDetails": map[string]string{"name": "Sari"},
	})
	require.Equal(t, http.StatusCreated, code, resp.Message)
	var placed struct {
		Order models.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &placed))
	assert.Equal(t, models.OrderPlaced, placed.Order.Status)
	require.NotNil(t, placed.Order.WaiterID)
	assert.Equal(t, a.waiter.ID, *placed.Order.WaiterID)
	assert.Equal(t, float64(30000), placed.Order.TotalAmount)

	code, resp = a.do(t, http.MethodGet, fmt.Sprintf("/orders/%d/%d", a.restaurant.ID, a.table.ID), "", nil)
	require.Equal(t, http.StatusOK, code)
	var tableOrders []models.Order
	require.NoError(t, json.Unmarshal(resp.Data, &tableOrders))
	require.Len(t, tableOrders, 1)
	assert.Len(t, tableOrders[0].Items, 1)

	statusPath := fmt.Sprintf("/orders/%d/status", placed.Order.ID)
	code, _ = a.do(t, http.MethodPut, statusPath, "", map[string]string{"status": models.OrderPreparing})
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = a.do(t, http.MethodPut, statusPath, customer, map[string]string{"status": models.OrderPreparing})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = a.do(t, http.MethodPut, statusPath, outsider, map[string]string{"status": models.OrderPreparing})
	assert.Equal(t, http.StatusForbidden, code, "staff of another restaurant")
	var untouched models.Order
	require.NoError(t, a.db.First(&untouched, placed.Order.ID).Error)
	assert.Equal(t, models.OrderPlaced, untouched.Status)
	code, _ = a.do(t, http.MethodPut, statusPath, waiter, map[string]string{"status": "BURNT"})
	assert.Equal(t, http.StatusBadRequest, code)
	code, resp = a.do(t, http.MethodPut, statusPath, waiter, map[string]string{"status": models.OrderPaid})
	require.Equal(t, http.StatusOK, code, resp.Message)
	var updated struct {
		Order models.Order `json:"order"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &updated))
	assert.Equal(t, models.PaymentPaid, updated.Order.PaymentStatus)

	activePath := fmt.Sprintf("/orders/active/%d", a.restaurant.ID)
	code, _ = a.do(t, http.MethodGet, activePath, outsider, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, resp = a.do(t, http.MethodGet, activePath, waiter, nil)
	require.Equal(t, http.StatusOK, code)
	var active []models.Order
	require.NoError(t, json.Unmarshal(resp.Data, &active))
	assert.Len(t, active, 1)

	freeBody := map[string]interface{}{"restaurantId": a.restaurant.ID, "tableId": a.table.ID}
	code, _ = a.do(t, http.MethodPost, "/orders/free-table", outsider, freeBody)
	assert.Equal(t, http.StatusForbidden, code)
	code, resp = a.do(t, http.MethodPost, "/orders/free-table", waiter, freeBody)
	require.Equal(t, http.StatusOK, code, resp.Message)

	var order models.Order
	require.NoError(t, a.db.First(&order, placed.Order.ID).Error)
	assert.Equal(t, models.OrderCompleted, order.Status)

	code, resp = a.do(t, http.MethodGet, fmt.Sprintf("/restaurants/%d/tables", a.restaurant.ID), "", nil)
	require.Equal(t, http.StatusOK, code)
	var tables []models.Table
	require.NoError(t, json.Unmarshal(resp.Data, &tables))
	require.Len(t, tables, 1)
	assert.False(t, tables[0].IsOccupied)
	assert.Nil(t, tables[0].AssignedWaiterID)
}

func TestStaffToggle(t *testing.T) {
	a := setupApp(t)
	manager := token(t, 900, models.RoleManager, a.restaurant.ID)
	waiter := token(t, a.waiter.ID, models.RoleWaiter, a.restaurant.ID)
	path := fmt.Sprintf("/restaurants/%d/staff/%d/active", a.restaurant.ID, a.waiter.ID)

	code, _ := a.do(t, http.MethodPatch, path, waiter, map[string]bool{"isActive": false})
	assert.Equal(t, http.StatusForbidden, code)

	code, resp := a.do(t, http.MethodPatch, path, manager, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, code, resp.Message)

	code, resp = a.do(t, http.MethodPatch, path, manager, map[string]bool{"isActive": false})
	require.Equal(t, http.StatusOK, code, resp.Message)

	var user models.User
	require.NoError(t, a.db.First(&user, a.waiter.ID).Error)
	assert.False(t, user.IsActive)
}

// TestRealtimeOverHTTP checks that the websocket route carries the token
// identity into the staff room check and that service writes reach rooms.
func TestRealtimeOverHTTP(t *testing.T) {
	a := setupApp(t)
	srv := httptest.NewServer(a.router)
	t.Cleanup(srv.Close)
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	staffTok := token(t, a.waiter.ID, models.RoleWaiter, a.restaurant.ID)
	staff, _, err := websocket.DefaultDialer.Dial(base+"?token="+staffTok, nil)
	require.NoError(t, err)
	t.Cleanup(func() { staff.Close() })

	anon, _, err := websocket.DefaultDialer.Dial(base, nil)
	require.NoError(t, err)
	t.Cleanup(func() { anon.Close() })

	_, _, err = websocket.DefaultDialer.Dial(base+"?token=garbage", nil)
	assert.Error(t, err)

	readFrame := func(conn *websocket.Conn) realtime.Message {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var m realtime.Message
		require.NoError(t, conn.ReadJSON(&m))
		return m
	}

	require.NoError(t, staff.WriteJSON(map[string]interface{}{"event": realtime.JoinStaffRoom, "data": map[string]interface{}{"restaurantId": a.restaurant.ID}}))
	assert.Equal(t, realtime.EventJoined, readFrame(staff).Event)

	require.NoError(t, anon.WriteJSON(map[string]interface{}{"event": realtime.JoinStaffRoom, "data": map[string]interface{}{"restaurantId": a.restaurant.ID}}))
	assert.Equal(t, realtime.EventError, readFrame(anon).Event)

	code, _ := a.do(t, http.MethodPost, "/orders/place", "", map[string]interface{}{
		"restaurantId": a.restaurant.ID,
		"tableId":      a.table.ID,
		"items":        []map[string]interface{}{{"menuItemId": "es-teh", "name": "Es Teh", "price": 5000, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, realtime.EventNewOrder, readFrame(staff).Event)
}

func TestPing(t *testing.T) {
	a := setupApp(t)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
