package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/realtime"
)

type LockRequest struct {
	RestaurantID uint
	TableID      uint
	Date         string
	StartTime    string
	EndTime      string
}

// NewLockRequest validates a slot and fills in its end time.
func NewLockRequest(restaurantID, tableID uint, date, startTime string) (LockRequest, error) {
	if restaurantID == 0 || tableID == 0 || date == "" || startTime == "" {
		return LockRequest{}, validationf("restaurantId, tableId, date and startTime are required")
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return LockRequest{}, validationf("date must be YYYY-MM-DD")
	}
	endTime, err := slotEnd(startTime)
	if err != nil {
		return LockRequest{}, validationf("%v", err)
	}
	return LockRequest{RestaurantID: restaurantID, TableID: tableID, Date: date, StartTime: startTime, EndTime: endTime}, nil
}

func (r LockRequest) Key() models.SlotKey {
	return models.SlotKey{RestaurantID: r.RestaurantID, TableID: r.TableID, Date: r.Date, StartTime: r.StartTime}
}

// LockEvent is the payload of table:locked and table:unlocked. Clients drop
// events whose LockedBy is themselves.
type LockEvent struct {
	TableID   uint   `json:"tableId"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	LockedBy  uint   `json:"lockedBy"`
}

// LockManager hands out soft reservations on slots.
type LockManager struct {
	store       LockStore
	broadcaster realtime.Broadcaster
	Now         func() time.Time
}

func NewLockManager(store LockStore, broadcaster realtime.Broadcaster) *LockManager {
	return &LockManager{store: store, broadcaster: broadcaster, Now: time.Now}
}

func (m *LockManager) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}

// Acquire takes the slot for userID. Re-acquiring a slot the user already
// holds succeeds and returns the existing lock. A slot held by someone else
// yields a *ConflictError.
func (m *LockManager) Acquire(ctx context.Context, req LockRequest, userID uint) (*models.BookingLock, error) {
	key := req.Key()

	// one retry covers a holder that expired or released between our insert
	// and the read-back
	for attempt := 0; attempt < 2; attempt++ {
		now := m.now()
		lock := &models.BookingLock{
			RestaurantID: req.RestaurantID,
			TableID:      req.TableID,
			Date:         req.Date,
			StartTime:    req.StartTime,
			EndTime:      req.EndTime,
			LockedBy:     userID,
			CreatedAt:    now,
			ExpiresAt:    now.Add(BookingLockTTL),
		}
		err := m.store.Insert(ctx, lock)
		if err == nil {
			m.announce(realtime.EventTableLocked, lock.RestaurantID, key, userID)
			return lock, nil
		}
		if !errors.Is(err, ErrLockExists) {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}

		existing, err := m.store.Get(ctx, key)
		if errors.Is(err, ErrLockNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read lock: %w", err)
		}
		if existing.LockedBy == userID {
			m.announce(realtime.EventTableLocked, existing.RestaurantID, key, userID)
			return existing, nil
		}
		return nil, &ConflictError{
			Reason:   ConflictLocked,
			Message:  "table is locked by another user",
			LockedBy: existing.LockedBy,
		}
	}
	return nil, &ConflictError{Reason: ConflictLocked, Message: "table is locked by another user"}
}

// Release drops the lock if userID owns it. false with a nil error means
// there was nothing of theirs to release.
func (m *LockManager) Release(ctx context.Context, key models.SlotKey, userID uint) (bool, error) {
	deleted, err := m.store.DeleteOwned(ctx, key, userID)
	if err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}
	if deleted {
		m.announce(realtime.EventTableUnlocked, key.RestaurantID, key, userID)
	}
	return deleted, nil
}

// IsHeldBy reports whether userID currently owns the slot.
func (m *LockManager) IsHeldBy(ctx context.Context, key models.SlotKey, userID uint) (bool, error) {
	lock, err := m.store.Get(ctx, key)
	if errors.Is(err, ErrLockNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return lock.LockedBy == userID, nil
}

// LiveLocks lists the live locks of a restaurant slot.
func (m *LockManager) LiveLocks(ctx context.Context, restaurantID uint, date, startTime string) ([]models.BookingLock, error) {
	return m.store.ListLive(ctx, restaurantID, date, startTime)
}

func (m *LockManager) announce(event string, restaurantID uint, key models.SlotKey, lockedBy uint) {
	emit(m.broadcaster, realtime.PublicRoom(restaurantID), event, LockEvent{
		TableID:   key.TableID,
		Date:      key.Date,
		StartTime: key.StartTime,
		LockedBy:  lockedBy,
	})
}
