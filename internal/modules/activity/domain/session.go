package domain

import (
	"time"

	apperrors "mindmosaic/internal/platform/errors"
)

type State string

const (
	StateIdle      State = "idle"
	StateSelected  State = "selected"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// Transition describes one state change. Running -> Running transitions are
// emitted on every tick so observers can render the countdown.
type Transition struct {
	SessionID        string
	From             State
	To               State
	Activity         Descriptor
	RemainingSeconds int
	At               time.Time
}

// Session is a single attempt at an activity. The zero value is Idle.
// Remaining time is always derived from StartedAt; it is never stored.
type Session struct {
	ID        string
	State     State
	Activity  Descriptor
	StartedAt time.Time
}

func (s *Session) state() State {
	if s.State == "" {
		return StateIdle
	}
	return s.State
}

// Select records d as the activity under attempt. Re-selecting while
// Selected replaces the previous choice.
func (s *Session) Select(id string, d Descriptor, now time.Time) (Transition, error) {
	from := s.state()
	if from != StateIdle && from != StateSelected {
		return Transition{}, apperrors.ErrInvalidTransition
	}
	*s = Session{ID: id, State: StateSelected, Activity: d}
	return s.transition(from, now, d.DurationSeconds), nil
}

// CancelSelection returns a Selected session to Idle. It is a no-op on Idle.
func (s *Session) CancelSelection(now time.Time) (Transition, bool, error) {
	switch s.state() {
	case StateIdle:
		return Transition{}, false, nil
	case StateSelected:
		t := s.transition(StateSelected, now, 0)
		t.To = StateIdle
		*s = Session{}
		return t, true, nil
	default:
		return Transition{}, false, apperrors.ErrInvalidTransition
	}
}

// Start begins the countdown. Without authentication it fails with
// ErrAuthRequired and the session stays Selected.
func (s *Session) Start(now time.Time, authenticated bool) (Transition, error) {
	if s.state() != StateSelected {
		return Transition{}, apperrors.ErrInvalidTransition
	}
	if !authenticated {
		return Transition{}, apperrors.ErrAuthRequired
	}
	s.State = StateRunning
	s.StartedAt = now
	return s.transition(StateSelected, now, s.Activity.DurationSeconds), nil
}

// Remaining is durationSeconds - floor((now - startedAt)/1s). It is only
// meaningful while Running.
func (s *Session) Remaining(now time.Time) int {
	elapsed := now.Sub(s.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return s.Activity.DurationSeconds - int(elapsed/time.Second)
}

// Tick recomputes the remaining time and completes the session once it
// reaches zero. Ticks outside Running are no-ops and report ok=false.
func (s *Session) Tick(now time.Time) (Transition, bool) {
	if s.state() != StateRunning {
		return Transition{}, false
	}
	remaining := s.Remaining(now)
	if remaining <= 0 {
		s.State = StateCompleted
		return s.transition(StateRunning, now, 0), true
	}
	return s.transition(StateRunning, now, remaining), true
}

// Stop ends a Running session. It aborts unless the full duration has
// already elapsed at the moment of the call.
func (s *Session) Stop(now time.Time) (Transition, error) {
	if s.state() != StateRunning {
		return Transition{}, apperrors.ErrInvalidTransition
	}
	remaining := s.Remaining(now)
	if remaining <= 0 {
		s.State = StateCompleted
		return s.transition(StateRunning, now, 0), nil
	}
	s.State = StateAborted
	return s.transition(StateRunning, now, remaining), nil
}

// Reset drops a terminal session back to Idle.
func (s *Session) Reset(now time.Time) (Transition, bool) {
	from := s.state()
	if !from.Terminal() {
		return Transition{}, false
	}
	t := s.transition(from, now, 0)
	t.To = StateIdle
	*s = Session{}
	return t, true
}

func (s *Session) transition(from State, now time.Time, remaining int) Transition {
	return Transition{
		SessionID:        s.ID,
		From:             from,
		To:               s.state(),
		Activity:         s.Activity,
		RemainingSeconds: remaining,
		At:               now,
	}
}
