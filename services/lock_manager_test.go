package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-booking/realtime"
)

func slotRequest() LockRequest {
	return LockRequest{RestaurantID: 1, TableID: 1, Date: "2025-06-01", StartTime: "19:00", EndTime: "20:00"}
}

func TestAcquireIsMutuallyExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const contenders = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []uint
		conflicts int
	)
	for i := 1; i <= contenders; i++ {
		wg.Add(1)
		go func(user uint) {
			defer wg.Done()
			_, err := f.locks.Acquire(ctx, slotRequest(), user)
			mu.Lock()
			defer mu.Unlock()
			var ce *ConflictError
			switch {
			case err == nil:
				winners = append(winners, user)
			case errors.As(err, &ce):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(uint(i))
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, contenders-1, conflicts)

	held, err := f.locks.IsHeldBy(ctx, slotRequest().Key(), winners[0])
	require.NoError(t, err)
	assert.True(t, held)
}

func TestAcquireConflictCarriesHolder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.locks.Acquire(ctx, slotRequest(), 7)
	require.NoError(t, err)

	_, err = f.locks.Acquire(ctx, slotRequest(), 9)
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, ConflictLocked, ce.Reason)
	assert.Equal(t, uint(7), ce.LockedBy)
}

func TestAcquireIsReentrantForOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.locks.Acquire(ctx, slotRequest(), 3)
	require.NoError(t, err)
	f.clock.Advance(10 * time.Second)
	second, err := f.locks.Acquire(ctx, slotRequest(), 3)
	require.NoError(t, err)

	assert.Equal(t, uint(3), second.LockedBy)
	assert.True(t, first.ExpiresAt.Equal(second.ExpiresAt), "re-acquire must not extend the lock")
	assert.Len(t, f.recorder.Find(realtime.PublicRoom(1), realtime.EventTableLocked), 2)
}

func TestLockExpiresAfterTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.locks.Acquire(ctx, slotRequest(), 1)
	require.NoError(t, err)

	f.clock.Advance(BookingLockTTL - time.Second)
	_, err = f.locks.Acquire(ctx, slotRequest(), 2)
	assert.ErrorIs(t, err, ErrConflict)

	f.clock.Advance(2 * time.Second)
	lock, err := f.locks.Acquire(ctx, slotRequest(), 2)
	require.NoError(t, err)
	assert.Equal(t, uint(2), lock.LockedBy)

	held, err := f.locks.IsHeldBy(ctx, slotRequest().Key(), 1)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestReleaseRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := slotRequest().Key()

	_, err := f.locks.Acquire(ctx, slotRequest(), 1)
	require.NoError(t, err)

	released, err := f.locks.Release(ctx, key, 2)
	require.NoError(t, err)
	assert.False(t, released)

	released, err = f.locks.Release(ctx, key, 1)
	require.NoError(t, err)
	assert.True(t, released)

	released, err = f.locks.Release(ctx, key, 1)
	require.NoError(t, err)
	assert.False(t, released, "second release is a soft failure")

	unlocked := f.recorder.Find(realtime.PublicRoom(1), realtime.EventTableUnlocked)
	require.Len(t, unlocked, 1)
	assert.Equal(t, LockEvent{TableID: 1, Date: "2025-06-01", StartTime: "19:00", LockedBy: 1}, unlocked[0].Payload)

	_, err = f.locks.Acquire(ctx, slotRequest(), 2)
	assert.NoError(t, err)
}

func TestReleaseAfterExpiryIsSoftFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.locks.Acquire(ctx, slotRequest(), 1)
	require.NoError(t, err)
	f.clock.Advance(BookingLockTTL)

	released, err := f.locks.Release(ctx, slotRequest().Key(), 1)
	require.NoError(t, err)
	assert.False(t, released)
}

func TestLiveLocksSkipsExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := slotRequest()
	_, err := f.locks.Acquire(ctx, first, 1)
	require.NoError(t, err)

	f.clock.Advance(20 * time.Second)
	second := slotRequest()
	second.TableID = 2
	_, err = f.locks.Acquire(ctx, second, 2)
	require.NoError(t, err)

	f.clock.Advance(15 * time.Second)
	live, err := f.locks.LiveLocks(ctx, 1, "2025-06-01", "19:00")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, uint(2), live[0].TableID)
}

func TestSweeperPurgesAndAnnounces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.locks.Acquire(ctx, slotRequest(), 4)
	require.NoError(t, err)

	sweeper := NewLockSweeper(f.store, f.recorder)
	assert.Equal(t, 0, sweeper.Sweep(ctx))

	f.clock.Advance(BookingLockTTL + time.Second)
	f.recorder.Reset()
	assert.Equal(t, 1, sweeper.Sweep(ctx))

	unlocked := f.recorder.Find(realtime.PublicRoom(1), realtime.EventTableUnlocked)
	require.Len(t, unlocked, 1)
	assert.Equal(t, uint(4), unlocked[0].Payload.(LockEvent).LockedBy)

	var remaining int64
	require.NoError(t, f.db.Table("booking_locks").Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestBroadcastFailureDoesNotFailAcquire(t *testing.T) {
	f := newFixture(t)
	f.recorder.Err = errors.New("socket down")

	lock, err := f.locks.Acquire(context.Background(), slotRequest(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), lock.LockedBy)
}

func TestNewLockRequest(t *testing.T) {
	req, err := NewLockRequest(1, 2, "2025-06-01", "23:00")
	require.NoError(t, err)
	assert.Equal(t, "24:00", req.EndTime)

	for _, bad := range []struct {
		date, start string
	}{
		{"", "19:00"},
		{"2025-6-1", "19:00"},
		{"2025-06-01", "19"},
		{"2025-06-01", "23:30"},
	} {
		_, err := NewLockRequest(1, 2, bad.date, bad.start)
		assert.ErrorIs(t, err, ErrValidation, "%s %s", bad.date, bad.start)
	}

	_, err = NewLockRequest(0, 2, "2025-06-01", "19:00")
	assert.ErrorIs(t, err, ErrValidation)
}
