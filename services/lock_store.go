package services

import (
	"context"
	"errors"
	"time"

	"github.com/yeremiapane/restaurant-booking/models"
)

// BookingLockTTL bounds how long an unreleased lock can block a slot.
const BookingLockTTL = 30 * time.Second

var (
	ErrLockExists   = errors.New("booking lock already exists")
	ErrLockNotFound = errors.New("booking lock not found")
)

// LockStore is an insert-if-absent record store keyed by slot. Records past
// their ExpiresAt must behave as absent.
type LockStore interface {
	// Insert fails with ErrLockExists when a live lock holds the slot.
	Insert(ctx context.Context, lock *models.BookingLock) error
	// Get returns the live lock for key or ErrLockNotFound.
	Get(ctx context.Context, key models.SlotKey) (*models.BookingLock, error)
	// DeleteOwned removes the lock only if userID holds it and reports
	// whether anything was removed.
	DeleteOwned(ctx context.Context, key models.SlotKey, userID uint) (bool, error)
	// ListLive returns the live locks of a restaurant for one date and start.
	ListLive(ctx context.Context, restaurantID uint, date, startTime string) ([]models.BookingLock, error)
	// PurgeExpired removes expired locks and returns them. Stores with
	// native expiry return nothing.
	PurgeExpired(ctx context.Context) ([]models.BookingLock, error)
}
