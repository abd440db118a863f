package service

import (
	"sync"
	"testing"
	"time"

	"auto_trading_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func TestState_StartsActive(t *testing.T) {
	s := NewState()
	st := s.Snapshot()
	assert.Equal(t, models.BotActive, st.Status)
	assert.Equal(t, "initialized", st.Reason)
	assert.True(t, s.IsActive())
	assert.False(t, s.IsOnHold())
}

func TestState_Transitions(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStateWithClock(clock.Now)
	start := s.Snapshot().LastChangeAt

	held := s.Hold("maintenance")
	assert.Equal(t, models.BotOnHold, held.Status)
	assert.Equal(t, "maintenance", held.Reason)
	assert.True(t, held.LastChangeAt.After(start))
	assert.False(t, s.IsActive())
	assert.True(t, s.IsOnHold())

	stopped := s.Stop("")
	assert.Equal(t, models.BotStopped, stopped.Status)
	assert.Equal(t, "Bot stopped", stopped.Reason)
	assert.True(t, stopped.LastChangeAt.After(held.LastChangeAt))
	assert.False(t, s.IsActive())
	assert.False(t, s.IsOnHold())

	assert.Equal(t, "Bot put on hold", s.Hold("").Reason)
	// same-state transitions are allowed and still move the timestamp
	again := s.Hold("")
	assert.Equal(t, models.BotOnHold, again.Status)

	active := s.Activate("")
	assert.Equal(t, "Bot activated", active.Reason)
	assert.True(t, s.IsActive())
}

func TestState_Summary(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStateWithClock(clock.Now)
	s.Hold("maintenance")
	assert.Equal(t, "Bot Status: ON_HOLD (Changed: 2025-01-01T00:00:02Z, Reason: maintenance)", s.Summary())
}

func TestState_ConcurrentSnapshotsAreConsistent(t *testing.T) {
	s := NewState()
	reasons := map[models.BotStatus]string{
		models.BotActive:  "a",
		models.BotOnHold:  "h",
		models.BotStopped: "s",
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				s.Activate("a")
				s.Hold("h")
				s.Stop("s")
			}
		}()
	}

	errs := make(chan string, 1)
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1500; i++ {
				st := s.Snapshot()
				if st.Reason != "initialized" && reasons[st.Status] != st.Reason {
					select {
					case errs <- string(st.Status) + "/" + st.Reason:
					default:
					}
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	torn, ok := <-errs
	require.False(t, ok, "torn snapshot observed: %s", torn)
}
