package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"mindmosaic/internal/modules/activity/domain"
	"mindmosaic/internal/modules/activity/dto"
	activityin "mindmosaic/internal/modules/activity/port/in"
	"mindmosaic/internal/modules/activity/service"
	"mindmosaic/internal/modules/activity/usecase"
	ledgerdto "mindmosaic/internal/modules/ledger/dto"
	apperrors "mindmosaic/internal/platform/errors"
)

var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeIdentity struct {
	mu   sync.Mutex
	user string
}

func (f *fakeIdentity) IsAuthenticated(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user != ""
}

func (f *fakeIdentity) UserID(context.Context) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

type sequenceIDs struct {
	mu sync.Mutex
	n  int
}

func (s *sequenceIDs) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("session-%d", s.n)
}

type staticCatalog struct {
	catalog domain.Catalog
}

func (s staticCatalog) Load(context.Context) (domain.Catalog, error) {
	return s.catalog, nil
}

type fakeLedger struct {
	mu          sync.Mutex
	snapshot    ledgerdto.SnapshotOutput
	snapshotErr error
	reads       int
	recorded    []ledgerdto.CompletionInput
	recordErr   error
	calls       int
	// holdFirst, when set, parks the first write until it is closed.
	holdFirst chan struct{}
}

func (f *fakeLedger) Snapshot(_ context.Context, _ string) (ledgerdto.SnapshotOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.snapshot, f.snapshotErr
}

func (f *fakeLedger) RecordCompletion(_ context.Context, input ledgerdto.CompletionInput) error {
	f.mu.Lock()
	f.calls++
	hold := f.holdFirst
	first := f.calls == 1
	f.mu.Unlock()
	if first && hold != nil {
		<-hold
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, input)
	return f.recordErr
}

func (f *fakeLedger) Replace(_ context.Context, _ string, s ledgerdto.SnapshotOutput) (ledgerdto.SnapshotOutput, error) {
	return s, nil
}

func (f *fakeLedger) AppendHistory(context.Context, string, ledgerdto.LogEntryOutput) error {
	return nil
}

func (f *fakeLedger) History(context.Context, ledgerdto.HistoryInput) ([]ledgerdto.LogEntryOutput, error) {
	return nil, nil
}

func (f *fakeLedger) Watch(context.Context, string) (<-chan ledgerdto.SnapshotOutput, error) {
	return nil, errors.New("not supported")
}

func (f *fakeLedger) records() []ledgerdto.CompletionInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledgerdto.CompletionInput(nil), f.recorded...)
}

type fixture struct {
	uc       activityin.Usecase
	clock    *manualClock
	identity *fakeIdentity
	ledger   *fakeLedger
	hook     *logtest.Hook
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	catalog, err := domain.NewCatalog([]domain.Mood{
		{Tag: "anxious", Activities: []domain.Descriptor{
			{ID: "breath-quest", Title: "Breath Quest", PointValue: 50, DurationSeconds: 300},
			{ID: "grounding", Title: "Grounding 5-4-3-2-1", PointValue: 60, DurationSeconds: 600},
		}},
		{Tag: "relaxed", Activities: []domain.Descriptor{
			{ID: "calm-continuation", Title: "Calm Continuation", PointValue: 35, DurationSeconds: 300},
		}},
	})
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	logger, hook := logtest.NewNullLogger()
	f := fixture{
		clock:    &manualClock{now: t0},
		identity: &fakeIdentity{user: "user-1"},
		ledger: &fakeLedger{snapshot: ledgerdto.SnapshotOutput{
			Points: 100, Streak: 2, LastCompletedDate: "2026-03-09",
		}},
		hook: hook,
	}
	f.uc = usecase.NewInteractor(usecase.Dependencies{
		Catalog:  service.NewCatalogService(staticCatalog{catalog: catalog}),
		Ledger:   f.ledger,
		Identity: f.identity,
		Clock:    f.clock,
		IDs:      &sequenceIDs{},
		Log:      logger,
	})
	return f
}

func (f fixture) startAt(t *testing.T, activityID string, at time.Time) {
	t.Helper()
	f.clock.Set(at)
	if _, err := f.uc.Select(context.Background(), activityID); err != nil {
		t.Fatalf("select: %v", err)
	}
	out, err := f.uc.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if out.State != string(domain.StateRunning) {
		t.Fatalf("expected running after start, got %s", out.State)
	}
}

func (f fixture) close(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.uc.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestLateTickCompletesAndAwardsPoints(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.startAt(t, "breath-quest", t0)

	f.clock.Set(t0.Add(301 * time.Second))
	out, err := f.uc.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if out.Outcome != dto.OutcomeCompleted || out.Awarded != 50 {
		t.Fatalf("expected completed with 50 points, got %+v", out)
	}
	if out.State != string(domain.StateIdle) {
		t.Fatalf("controller should reset to idle, got %s", out.State)
	}
	snap, err := f.uc.CurrentSnapshot(context.Background())
	if err != nil {
		t.Fatalf("current snapshot: %v", err)
	}
	if snap.Points != 150 || snap.Streak != 3 || snap.LastCompletedDate != "2026-03-10" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.LastActivityCompleted == nil || snap.LastActivityCompleted.Title != "Breath Quest" {
		t.Fatalf("last activity not recorded: %+v", snap.LastActivityCompleted)
	}

	f.close(t)
	records := f.ledger.records()
	if len(records) != 1 {
		t.Fatalf("expected one ledger write, got %d", len(records))
	}
	if records[0].UserID != "user-1" || records[0].EntryID != "session-1" || records[0].Snapshot.Points != 150 {
		t.Fatalf("unexpected write %+v", records[0])
	}
}

func TestStopBeforeDurationAbortsWithoutLedgerIO(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.startAt(t, "breath-quest", t0)

	f.clock.Set(t0.Add(100 * time.Second))
	out, err := f.uc.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if out.Outcome != dto.OutcomeAborted || out.Awarded != 0 || out.State != string(domain.StateIdle) {
		t.Fatalf("expected aborted and idle, got %+v", out)
	}
	snap, err := f.uc.CurrentSnapshot(context.Background())
	if err != nil {
		t.Fatalf("current snapshot: %v", err)
	}
	if snap.Points != 100 || snap.Streak != 2 {
		t.Fatalf("aborted session must not change the snapshot, got %+v", snap)
	}
	f.close(t)
	if n := len(f.ledger.records()); n != 0 {
		t.Fatalf("aborted session must not write, got %d writes", n)
	}
}

func TestExtraTicksAfterCompletionAreNoops(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.startAt(t, "breath-quest", t0)

	for _, offset := range []time.Duration{301, 302, 400, 1000} {
		f.clock.Set(t0.Add(offset * time.Second))
		if _, err := f.uc.Tick(context.Background()); err != nil {
			t.Fatalf("tick: %v", err)
		}
	}
	snap, _ := f.uc.CurrentSnapshot(context.Background())
	if snap.Points != 150 {
		t.Fatalf("points must be awarded once, got %d", snap.Points)
	}
	f.close(t)
	if n := len(f.ledger.records()); n != 1 {
		t.Fatalf("expected exactly one write, got %d", n)
	}
}

func TestTickBeforeDurationKeepsRunning(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.startAt(t, "breath-quest", t0)

	f.clock.Set(t0.Add(100*time.Second + 900*time.Millisecond))
	out, err := f.uc.Tick(context.Background())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if out.State != string(domain.StateRunning) || out.RemainingSeconds != 200 || out.Outcome != "" {
		t.Fatalf("unexpected tick output %+v", out)
	}
}

func TestSameDayCompletionsKeepStreakAndReadOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.startAt(t, "breath-quest", t0)
	f.clock.Set(t0.Add(301 * time.Second))
	if _, err := f.uc.Tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	second := t0.Add(6 * time.Hour)
	f.startAt(t, "breath-quest", second)
	f.clock.Set(second.Add(300 * time.Second))
	out, err := f.uc.Tick(context.Background())
	if err != nil || out.Outcome != dto.OutcomeCompleted {
		t.Fatalf("second completion: %+v %v", out, err)
	}

	snap, _ := f.uc.CurrentSnapshot(context.Background())
	if snap.Points != 200 || snap.Streak != 3 {
		t.Fatalf("expected points=200 streak=3, got %+v", snap)
	}
	f.close(t)
	if f.ledger.reads != 1 {
		t.Fatalf("snapshot should be read once per user, got %d reads", f.ledger.reads)
	}
	records := f.ledger.records()
	if len(records) != 2 || records[1].Snapshot.Points != 200 {
		t.Fatalf("second write should carry the accumulated snapshot, got %+v", records)
	}
}

func TestStartRequiresAuthentication(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.identity.user = ""

	if _, err := f.uc.Select(context.Background(), "breath-quest"); err != nil {
		t.Fatalf("select: %v", err)
	}
	out, err := f.uc.Start(context.Background())
	if !errors.Is(err, apperrors.ErrAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
	if out.State != string(domain.StateSelected) {
		t.Fatalf("session should stay selected, got %s", out.State)
	}
	if f.ledger.reads != 0 {
		t.Fatalf("no ledger read before authentication")
	}

	f.identity.mu.Lock()
	f.identity.user = "user-1"
	f.identity.mu.Unlock()
	out, err = f.uc.Start(context.Background())
	if err != nil || out.State != string(domain.StateRunning) {
		t.Fatalf("retry after sign-in should start: %+v %v", out, err)
	}
}

func TestSnapshotReadFailureLeavesSelected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.ledger.snapshotErr = errors.New("store offline")

	if _, err := f.uc.Select(context.Background(), "breath-quest"); err != nil {
		t.Fatalf("select: %v", err)
	}
	out, err := f.uc.Start(context.Background())
	if err == nil {
		t.Fatalf("expected start to fail when the snapshot cannot be read")
	}
	if out.State != string(domain.StateSelected) {
		t.Fatalf("session should stay selected, got %s", out.State)
	}
}

func TestTickOnIdleIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	out, err := f.uc.Tick(context.Background())
	if err != nil || out.State != string(domain.StateIdle) || out.Outcome != "" {
		t.Fatalf("tick on idle should be a no-op, got %+v %v", out, err)
	}
}

func TestSurfaceDismissedRoutesThroughStop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	if _, err := f.uc.Select(context.Background(), "breath-quest"); err != nil {
		t.Fatalf("select: %v", err)
	}
	out, err := f.uc.OnSurfaceDismissed(context.Background())
	if err != nil || out.State != string(domain.StateSelected) {
		t.Fatalf("dismissing a selected session is a no-op, got %+v %v", out, err)
	}
	if _, err := f.uc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clock.Set(t0.Add(10 * time.Second))
	out, err = f.uc.OnSurfaceDismissed(context.Background())
	if err != nil || out.Outcome != dto.OutcomeAborted {
		t.Fatalf("dismissing a running session aborts it, got %+v %v", out, err)
	}
}

func TestStopAfterDurationCompletes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.startAt(t, "breath-quest", t0)

	f.clock.Set(t0.Add(300 * time.Second))
	out, err := f.uc.Stop(context.Background())
	if err != nil || out.Outcome != dto.OutcomeCompleted {
		t.Fatalf("stop after the full duration completes, got %+v %v", out, err)
	}
	f.close(t)
}

func TestSelectErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	if _, err := f.uc.Select(context.Background(), "missing"); !errors.Is(err, apperrors.ErrUnknownActivity) {
		t.Fatalf("expected unknown activity, got %v", err)
	}
	f.startAt(t, "breath-quest", t0)
	if _, err := f.uc.Select(context.Background(), "grounding"); !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("select while running should fail, got %v", err)
	}
	if _, err := f.uc.CancelSelection(context.Background()); !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("cancel while running should fail, got %v", err)
	}
}

func TestStartWithoutSelectionIsInvalid(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if _, err := f.uc.Start(context.Background()); !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestStoreWriteFailureIsLoggedAndKeepsOptimisticSnapshot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.ledger.recordErr = fmt.Errorf("%w: connection refused", apperrors.ErrStoreWriteFailed)
	f.startAt(t, "breath-quest", t0)

	f.clock.Set(t0.Add(400 * time.Second))
	if _, err := f.uc.Tick(context.Background()); err != nil {
		t.Fatalf("tick must not surface write failures: %v", err)
	}
	f.close(t)

	entry := f.hook.LastEntry()
	if entry == nil || entry.Level != logrus.WarnLevel {
		t.Fatalf("expected a warning, got %+v", f.hook.AllEntries())
	}
	if entry.Data["user_id"] != "user-1" || entry.Data["activity_id"] != "breath-quest" {
		t.Fatalf("unexpected log fields %+v", entry.Data)
	}
	if err, _ := entry.Data[logrus.ErrorKey].(error); !errors.Is(err, apperrors.ErrStoreWriteFailed) {
		t.Fatalf("expected store write failure in log, got %v", entry.Data[logrus.ErrorKey])
	}
	snap, _ := f.uc.CurrentSnapshot(context.Background())
	if snap.Points != 150 {
		t.Fatalf("optimistic snapshot must survive a failed write, got %+v", snap)
	}
}

func TestListenersObserveTransitionsInOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	var mu sync.Mutex
	var seen []string
	unsubscribe := f.uc.Subscribe(func(e dto.TransitionEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.From+">"+e.To)
	})

	f.startAt(t, "breath-quest", t0)
	f.clock.Set(t0.Add(10 * time.Second))
	_, _ = f.uc.Tick(context.Background())
	f.clock.Set(t0.Add(300 * time.Second))
	_, _ = f.uc.Tick(context.Background())
	unsubscribe()
	_, _ = f.uc.Select(context.Background(), "grounding")

	want := []string{"idle>selected", "selected>running", "running>running", "running>completed", "completed>idle"}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}
	f.close(t)
}

func TestCatalogQueriesFallBackToRelaxed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	moods, err := f.uc.Moods(context.Background())
	if err != nil || len(moods) != 2 || moods[0].Tag != "anxious" || moods[0].Activities != 2 {
		t.Fatalf("unexpected moods %+v %v", moods, err)
	}
	activities, err := f.uc.Activities(context.Background(), "bewildered")
	if err != nil || len(activities) != 1 || activities[0].ID != "calm-continuation" {
		t.Fatalf("unknown mood should fall back to relaxed, got %+v %v", activities, err)
	}
}

func TestSlowFirstWriteKeepsCompletionsInOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	release := make(chan struct{})
	f.ledger.holdFirst = release

	f.startAt(t, "breath-quest", t0)
	f.clock.Set(t0.Add(301 * time.Second))
	if out, err := f.uc.Tick(context.Background()); err != nil || out.Outcome != dto.OutcomeCompleted {
		t.Fatalf("first completion: %+v %v", out, err)
	}

	second := t0.Add(302 * time.Second)
	f.startAt(t, "calm-continuation", second)
	f.clock.Set(second.Add(301 * time.Second))
	if out, err := f.uc.Tick(context.Background()); err != nil || out.Outcome != dto.OutcomeCompleted {
		t.Fatalf("second completion: %+v %v", out, err)
	}

	if got := f.ledger.records(); len(got) != 0 {
		t.Fatalf("the second write must wait for the first, got %+v", got)
	}
	snapshot, err := f.uc.CurrentSnapshot(context.Background())
	if err != nil || snapshot.Points != 185 {
		t.Fatalf("cache should already hold both completions, got %+v %v", snapshot, err)
	}

	close(release)
	f.close(t)
	got := f.ledger.records()
	if len(got) != 2 {
		t.Fatalf("expected two writes, got %d", len(got))
	}
	if got[0].Snapshot.Points != 150 || got[1].Snapshot.Points != 185 {
		t.Fatalf("writes reached the store out of order: %d then %d", got[0].Snapshot.Points, got[1].Snapshot.Points)
	}
	if got[1].EntryID != "session-2" {
		t.Fatalf("expected the newest write last, got %q", got[1].EntryID)
	}
}
