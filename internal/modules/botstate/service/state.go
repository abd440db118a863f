package service

import (
	"fmt"
	"sync/atomic"
	"time"

	"auto_trading_bot/internal/models"
)

const (
	reasonInitialized = "initialized"
	reasonActivated   = "Bot activated"
	reasonHeld        = "Bot put on hold"
	reasonStopped     = "Bot stopped"
)

// State is the process-wide bot status. Each transition swaps in a new
// snapshot, so readers always see status, time and reason together.
type State struct {
	current   atomic.Pointer[models.BotState]
	startedAt time.Time
	now       func() time.Time
}

func NewState() *State {
	return NewStateWithClock(time.Now)
}

func NewStateWithClock(now func() time.Time) *State {
	s := &State{now: now, startedAt: now()}
	s.current.Store(&models.BotState{
		Status:       models.BotActive,
		LastChangeAt: s.startedAt,
		Reason:       reasonInitialized,
	})
	return s
}

func (s *State) Activate(reason string) models.BotState {
	return s.set(models.BotActive, reason, reasonActivated)
}

func (s *State) Hold(reason string) models.BotState {
	return s.set(models.BotOnHold, reason, reasonHeld)
}

func (s *State) Stop(reason string) models.BotState {
	return s.set(models.BotStopped, reason, reasonStopped)
}

func (s *State) set(status models.BotStatus, reason, fallback string) models.BotState {
	if reason == "" {
		reason = fallback
	}
	next := &models.BotState{
		Status:       status,
		LastChangeAt: s.now(),
		Reason:       reason,
	}
	s.current.Store(next)
	return *next
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() models.BotState { return *s.current.Load() }

func (s *State) Status() models.BotStatus { return s.current.Load().Status }
func (s *State) IsActive() bool          { return s.Status() == models.BotActive }
func (s *State) IsOnHold() bool          { return s.Status() == models.BotOnHold }

func (s *State) Uptime() time.Duration { return s.now().Sub(s.startedAt) }

func (s *State) Summary() string {
	st := s.Snapshot()
	return fmt.Sprintf("Bot Status: %s (Changed: %s, Reason: %s)",
		st.Status, st.LastChangeAt.Format(time.RFC3339), st.Reason)
}
