package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-booking/models"
)

// GormLockStore keeps locks in the booking_locks table. The unique slot
// index provides mutual exclusion; expiry is checked on every read and
// write and swept by LockSweeper.
type GormLockStore struct {
	db  *gorm.DB
	Now func() time.Time
}

func NewGormLockStore(db *gorm.DB) *GormLockStore {
	return &GormLockStore{db: db, Now: time.Now}
}

func (s *GormLockStore) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func slotScope(key models.SlotKey) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("restaurant_id = ? AND table_id = ? AND date = ? AND start_time = ?",
			key.RestaurantID, key.TableID, key.Date, key.StartTime)
	}
}

func (s *GormLockStore) Insert(ctx context.Context, lock *models.BookingLock) error {
	db := s.db.WithContext(ctx)

	// an expired holder would otherwise keep the unique index occupied until
	// the next sweep
	if err := db.Scopes(slotScope(lock.Key())).
		Where("expires_at <= ?", s.now()).
		Delete(&models.BookingLock{}).Error; err != nil {
		return err
	}

	if err := db.Create(lock).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrLockExists
		}
		return err
	}
	return nil
}

func (s *GormLockStore) Get(ctx context.Context, key models.SlotKey) (*models.BookingLock, error) {
	var lock models.BookingLock
	err := s.db.WithContext(ctx).Scopes(slotScope(key)).
		Where("expires_at > ?", s.now()).
		First(&lock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLockNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

func (s *GormLockStore) DeleteOwned(ctx context.Context, key models.SlotKey, userID uint) (bool, error) {
	res := s.db.WithContext(ctx).Scopes(slotScope(key)).
		Where("locked_by = ? AND expires_at > ?", userID, s.now()).
		Delete(&models.BookingLock{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GormLockStore) ListLive(ctx context.Context, restaurantID uint, date, startTime string) ([]models.BookingLock, error) {
	var locks []models.BookingLock
	err := s.db.WithContext(ctx).
		Where("restaurant_id = ? AND date = ? AND start_time = ? AND expires_at > ?", restaurantID, date, startTime, s.now()).
		Order("table_id asc").
		Find(&locks).Error
	return locks, err
}

func (s *GormLockStore) PurgeExpired(ctx context.Context) ([]models.BookingLock, error) {
	var expired []models.BookingLock
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expires_at <= ?", s.now()).Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		ids := make([]uint, 0, len(expired))
		for _, l := range expired {
			ids = append(ids, l.ID)
		}
		return tx.Delete(&models.BookingLock{}, ids).Error
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate entry")
}
