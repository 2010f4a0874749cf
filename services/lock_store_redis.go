package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/yeremiapane/restaurant-booking/models"
)

const redisLockPrefix = "booking_lock"

// RedisLockStore keeps one key per slot, written with SET NX and a TTL, so
// Redis itself expires abandoned locks.
type RedisLockStore struct {
	rdb *redis.Client
}

func NewRedisLockStore(rdb *redis.Client) *RedisLockStore {
	return &RedisLockStore{rdb: rdb}
}

func redisLockKey(key models.SlotKey) string {
	return fmt.Sprintf("%s:%d:%d:%s:%s", redisLockPrefix, key.RestaurantID, key.TableID, key.Date, key.StartTime)
}

func (s *RedisLockStore) Insert(ctx context.Context, lock *models.BookingLock) error {
	ttl := lock.ExpiresAt.Sub(lock.CreatedAt)
	if ttl <= 0 {
		ttl = BookingLockTTL
	}
	body, err := json.Marshal(lock)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, redisLockKey(lock.Key()), body, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockExists
	}
	return nil
}

func (s *RedisLockStore) Get(ctx context.Context, key models.SlotKey) (*models.BookingLock, error) {
	body, err := s.rdb.Get(ctx, redisLockKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrLockNotFound
	}
	if err != nil {
		return nil, err
	}
	var lock models.BookingLock
	if err := json.Unmarshal(body, &lock); err != nil {
		return nil, fmt.Errorf("decode lock: %w", err)
	}
	return &lock, nil
}

// DeleteOwned uses WATCH so the owner check and the delete are atomic.
func (s *RedisLockStore) DeleteOwned(ctx context.Context, key models.SlotKey, userID uint) (bool, error) {
	k := redisLockKey(key)
	deleted := false
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		body, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var lock models.BookingLock
		if err := json.Unmarshal(body, &lock); err != nil {
			return fmt.Errorf("decode lock: %w", err)
		}
		if lock.LockedBy != userID {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, k)
			return nil
		})
		if err == nil {
			deleted = true
		}
		return err
	}, k)
	if errors.Is(err, redis.TxFailedErr) {
		// the key changed under us: it expired or was re-acquired
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (s *RedisLockStore) ListLive(ctx context.Context, restaurantID uint, date, startTime string) ([]models.BookingLock, error) {
	pattern := fmt.Sprintf("%s:%d:*:%s:%s", redisLockPrefix, restaurantID, date, startTime)

	var keys []string
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	locks := make([]models.BookingLock, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		var lock models.BookingLock
		if err := json.Unmarshal([]byte(str), &lock); err != nil {
			return nil, fmt.Errorf("decode lock: %w", err)
		}
		locks = append(locks, lock)
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i].TableID < locks[j].TableID })
	return locks, nil
}

func (s *RedisLockStore) PurgeExpired(ctx context.Context) ([]models.BookingLock, error) {
	return nil, nil
}
