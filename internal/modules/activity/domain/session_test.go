package domain_test

import (
	"errors"
	"testing"
	"time"

	"mindmosaic/internal/modules/activity/domain"
	apperrors "mindmosaic/internal/platform/errors"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func breathQuest() domain.Descriptor {
	return domain.Descriptor{ID: "breath-quest", Mood: "anxious", Title: "Breath Quest", PointValue: 50, DurationSeconds: 300}
}

func runningSession(t *testing.T) *domain.Session {
	t.Helper()
	s := &domain.Session{}
	if _, err := s.Select("sess-1", breathQuest(), t0); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := s.Start(t0, true); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s
}

func TestZeroSessionIsIdleAndTickIsNoop(t *testing.T) {
	t.Parallel()
	s := &domain.Session{}
	if _, ok := s.Tick(t0); ok {
		t.Fatalf("tick on idle session must be a no-op")
	}
	if _, err := s.Stop(t0); !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("stop on idle session should be an invalid transition, got %v", err)
	}
	if _, err := s.Start(t0, true); !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("start on idle session should be an invalid transition, got %v", err)
	}
}

func TestStartRequiresAuthenticationAndKeepsSelection(t *testing.T) {
	t.Parallel()
	s := &domain.Session{}
	tr, err := s.Select("sess-1", breathQuest(), t0)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if tr.From != domain.StateIdle || tr.To != domain.StateSelected {
		t.Fatalf("unexpected select transition %s -> %s", tr.From, tr.To)
	}
	if _, err := s.Start(t0, false); !errors.Is(err, apperrors.ErrAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
	if s.State != domain.StateSelected || !s.StartedAt.IsZero() {
		t.Fatalf("failed start must leave the session selected, got %s", s.State)
	}
	if _, err := s.Start(t0.Add(time.Second), true); err != nil {
		t.Fatalf("retry after sign-in should succeed: %v", err)
	}
	if !s.StartedAt.Equal(t0.Add(time.Second)) {
		t.Fatalf("startedAt should come from the retry, got %s", s.StartedAt)
	}
}

func TestTickRecomputesRemainingFromStart(t *testing.T) {
	t.Parallel()
	s := runningSession(t)
	tr, ok := s.Tick(t0.Add(1500 * time.Millisecond))
	if !ok || tr.To != domain.StateRunning || tr.RemainingSeconds != 299 {
		t.Fatalf("expected 299s remaining, got %+v", tr)
	}
	// A late tick jumps straight to the correct value instead of counting down by one.
	tr, _ = s.Tick(t0.Add(200 * time.Second))
	if tr.RemainingSeconds != 100 {
		t.Fatalf("expected 100s remaining after late tick, got %d", tr.RemainingSeconds)
	}
}

func TestSingleLateTickCompletes(t *testing.T) {
	t.Parallel()
	s := runningSession(t)
	tr, ok := s.Tick(t0.Add(301 * time.Second))
	if !ok || tr.From != domain.StateRunning || tr.To != domain.StateCompleted {
		t.Fatalf("expected running -> completed, got %+v", tr)
	}
	if _, ok := s.Tick(t0.Add(302 * time.Second)); ok {
		t.Fatalf("tick after completion must not transition again")
	}
}

func TestTickAtExactDurationCompletes(t *testing.T) {
	t.Parallel()
	s := runningSession(t)
	tr, _ := s.Tick(t0.Add(300 * time.Second))
	if tr.To != domain.StateCompleted {
		t.Fatalf("reaching the duration exactly should complete, got %s", tr.To)
	}
}

func TestStopBeforeDurationAborts(t *testing.T) {
	t.Parallel()
	s := runningSession(t)
	tr, err := s.Stop(t0.Add(100 * time.Second))
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if tr.To != domain.StateAborted || tr.RemainingSeconds != 200 {
		t.Fatalf("expected abort with 200s left, got %+v", tr)
	}
}

func TestStopAfterDurationCompletes(t *testing.T) {
	t.Parallel()
	s := runningSession(t)
	tr, err := s.Stop(t0.Add(305 * time.Second))
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if tr.To != domain.StateCompleted {
		t.Fatalf("stop after the full duration should complete, got %s", tr.To)
	}
}

func TestClockSkewNeverExtendsBeyondDuration(t *testing.T) {
	t.Parallel()
	s := runningSession(t)
	tr, _ := s.Tick(t0.Add(-time.Minute))
	if tr.RemainingSeconds != 300 {
		t.Fatalf("negative elapsed time should clamp to the full duration, got %d", tr.RemainingSeconds)
	}
}

func TestSelectionLifecycle(t *testing.T) {
	t.Parallel()
	s := &domain.Session{}
	if _, changed, err := s.CancelSelection(t0); err != nil || changed {
		t.Fatalf("cancel on idle should be a silent no-op, got %v %v", changed, err)
	}
	if _, err := s.Select("a", breathQuest(), t0); err != nil {
		t.Fatalf("select: %v", err)
	}
	other := breathQuest()
	other.ID = "grounding"
	if _, err := s.Select("b", other, t0); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if s.Activity.ID != "grounding" || s.ID != "b" {
		t.Fatalf("reselect should replace the selection, got %+v", s)
	}
	tr, changed, err := s.CancelSelection(t0)
	if err != nil || !changed || tr.To != domain.StateIdle {
		t.Fatalf("cancel selection: %+v %v %v", tr, changed, err)
	}

	running := runningSession(t)
	if _, err := running.Select("c", breathQuest(), t0); !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("select while running should fail, got %v", err)
	}
	if _, _, err := running.CancelSelection(t0); !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("cancel selection while running should fail, got %v", err)
	}
	if _, ok := running.Reset(t0); ok {
		t.Fatalf("reset of a running session must be refused")
	}
	_, _ = running.Stop(t0.Add(time.Second))
	tr, ok := running.Reset(t0.Add(time.Second))
	if !ok || tr.From != domain.StateAborted || tr.To != domain.StateIdle || running.State != "" {
		t.Fatalf("reset after abort: %+v %v", tr, ok)
	}
}
