package services

import (
	"context"
	"time"

	"github.com/yeremiapane/restaurant-booking/realtime"
	"github.com/yeremiapane/restaurant-booking/utils"
)

// LockSweeper periodically purges expired locks and tells public rooms the
// slots are free again.
type LockSweeper struct {
	store       LockStore
	broadcaster realtime.Broadcaster
	Interval    time.Duration
	stopChan    chan struct{}
}

func NewLockSweeper(store LockStore, broadcaster realtime.Broadcaster) *LockSweeper {
	return &LockSweeper{
		store:       store,
		broadcaster: broadcaster,
		Interval:    5 * time.Second,
		stopChan:    make(chan struct{}),
	}
}

func (s *LockSweeper) Start() {
	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(context.Background())
			case <-s.stopChan:
				return
			}
		}
	}()
}

func (s *LockSweeper) Stop() {
	close(s.stopChan)
}

// Sweep runs one purge and returns how many locks were removed.
func (s *LockSweeper) Sweep(ctx context.Context) int {
	expired, err := s.store.PurgeExpired(ctx)
	if err != nil {
		utils.ErrorLogger.WithField("error", err).Error("lock sweep failed")
		return 0
	}
	for _, l := range expired {
		emit(s.broadcaster, realtime.PublicRoom(l.RestaurantID), realtime.EventTableUnlocked, LockEvent{
			TableID:   l.TableID,
			Date:      l.Date,
			StartTime: l.StartTime,
			LockedBy:  l.LockedBy,
		})
	}
	if len(expired) > 0 {
		utils.InfoLogger.Printf("Swept %d expired booking locks", len(expired))
	}
	return len(expired)
}
