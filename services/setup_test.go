package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/restaurant-booking/database"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/realtime"
)

// setupTestDB opens a private in-memory database. A single connection keeps
// every query on the same memory database.
func setupTestDB(t *testing.T) *gorm.DB {
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
	return db
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db       *gorm.DB
	clock    *fakeClock
	recorder *realtime.Recorder
	store    *GormLockStore
	locks    *LockManager
	bookings *BookingService
	orders   *OrderService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	clock := newFakeClock()
	rec := &realtime.Recorder{}

	store := NewGormLockStore(db)
	store.Now = clock.Now
	locks := NewLockManager(store, rec)
	locks.Now = clock.Now
	bookings := NewBookingService(db, locks, rec, time.UTC)
	bookings.Now = clock.Now

	return &fixture{
		db:       db,
		clock:    clock,
		recorder: rec,
		store:    store,
		locks:    locks,
		bookings: bookings,
		orders:   NewOrderService(db, rec),
	}
}

func seedRestaurant(t *testing.T, db *gorm.DB, allowBooking bool) *models.Restaurant {
	t.Helper()
	r := &models.Restaurant{Name: "Warung Senja", AllowBooking: true}
	require.NoError(t, db.Create(r).Error)
	if !allowBooking {
		// false is a zero value, so it has to be written explicitly
		require.NoError(t, db.Model(r).Update("allow_booking", false).Error)
		r.AllowBooking = false
	}
	return r
}

func seedTable(t *testing.T, db *gorm.DB, restaurantID uint, number string, capacity int) *models.Table {
	t.Helper()
	table := &models.Table{RestaurantID: restaurantID, TableNumber: number, Capacity: capacity}
	require.NoError(t, db.Create(table).Error)
	return table
}

func seedWaiter(t *testing.T, db *gorm.DB, restaurantID uint, name string) *models.User {
	t.Helper()
	rid := restaurantID
	u := &models.User{Name: name, Email: name + "@example.com", Role: models.RoleWaiter, RestaurantID: &rid, IsActive: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

func uintPtr(v uint) *uint { return &v }
