package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mindmosaic/internal/modules/activity/domain"
	"mindmosaic/internal/modules/activity/dto"
	activityin "mindmosaic/internal/modules/activity/port/in"
	activityout "mindmosaic/internal/modules/activity/port/out"
	"mindmosaic/internal/modules/activity/service"
	ledger "mindmosaic/internal/modules/ledger/domain"
	ledgerdto "mindmosaic/internal/modules/ledger/dto"
	ledgerin "mindmosaic/internal/modules/ledger/port/in"
	"mindmosaic/internal/platform/clock"
	apperrors "mindmosaic/internal/platform/errors"
	"mindmosaic/internal/platform/id"
	"mindmosaic/internal/platform/logging"
)

const defaultWriteTimeout = 10 * time.Second

// Interactor is the session controller. It is the single writer of the
// cached ledger snapshot; remote writes are fire-and-forget.
type Interactor struct {
	catalog      *service.CatalogService
	ledger       ledgerin.Usecase
	identity     activityout.Identity
	clock        clock.Clock
	ids          id.Generator
	log          logrus.FieldLogger
	writeTimeout time.Duration

	mu           sync.Mutex
	session      domain.Session
	cacheUser    string
	cache        ledger.Snapshot
	cached       bool
	listeners    map[int]func(dto.TransitionEvent)
	nextListener int

	writes    sync.WaitGroup
	lastWrite chan struct{}
}

type Dependencies struct {
	Catalog      *service.CatalogService
	Ledger       ledgerin.Usecase
	Identity     activityout.Identity
	Clock        clock.Clock
	IDs          id.Generator
	Log          logrus.FieldLogger
	WriteTimeout time.Duration
}

func NewInteractor(deps Dependencies) activityin.Usecase {
	if deps.WriteTimeout <= 0 {
		deps.WriteTimeout = defaultWriteTimeout
	}
	if deps.Log == nil {
		deps.Log = logging.Discard()
	}
	return &Interactor{
		catalog:      deps.Catalog,
		ledger:       deps.Ledger,
		identity:     deps.Identity,
		clock:        deps.Clock,
		ids:          deps.IDs,
		log:          deps.Log,
		writeTimeout: deps.WriteTimeout,
		listeners:    map[int]func(dto.TransitionEvent){},
	}
}

func (i *Interactor) Moods(ctx context.Context) ([]dto.MoodOutput, error) {
	moods, err := i.catalog.Moods(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.MoodOutput, 0, len(moods))
	for _, m := range moods {
		out = append(out, dto.MoodOutput{Tag: m.Tag, Activities: len(m.Activities)})
	}
	return out, nil
}

func (i *Interactor) Activities(ctx context.Context, mood string) ([]dto.ActivityOutput, error) {
	activities, err := i.catalog.Activities(ctx, mood)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ActivityOutput, 0, len(activities))
	for _, d := range activities {
		out = append(out, dto.FromDescriptor(d))
	}
	return out, nil
}

func (i *Interactor) Select(ctx context.Context, activityID string) (dto.SessionOutput, error) {
	d, err := i.catalog.Find(ctx, activityID)
	if err != nil {
		return i.Current(ctx), err
	}
	return i.run(func(now time.Time, r *result) error {
		t, err := i.session.Select(i.ids.New(), d, now)
		if err != nil {
			return err
		}
		r.add(t)
		return nil
	})
}

func (i *Interactor) CancelSelection(ctx context.Context) (dto.SessionOutput, error) {
	return i.run(func(now time.Time, r *result) error {
		t, changed, err := i.session.CancelSelection(now)
		if err != nil {
			return err
		}
		if changed {
			r.add(t)
		}
		return nil
	})
}

// Start checks identity, loads the ledger snapshot on first use for the
// user and begins the countdown. Any failure leaves the session Selected.
func (i *Interactor) Start(ctx context.Context) (dto.SessionOutput, error) {
	return i.run(func(now time.Time, r *result) error {
		authenticated := i.identity != nil && i.identity.IsAuthenticated(ctx)
		if !authenticated || i.session.State != domain.StateSelected {
			_, err := i.session.Start(now, authenticated)
			return err
		}
		loaded, err := i.ensureSnapshotLocked(ctx, i.identity.UserID(ctx))
		if err != nil {
			return err
		}
		if loaded {
			now = i.clock.Now()
			r.at = now
		}
		t, err := i.session.Start(now, true)
		if err != nil {
			return err
		}
		r.add(t)
		return nil
	})
}

// Tick recomputes the countdown. It is a safe no-op outside Running, which
// also guarantees a single ledger update per completed attempt.
func (i *Interactor) Tick(ctx context.Context) (dto.SessionOutput, error) {
	return i.run(func(now time.Time, r *result) error {
		t, ok := i.session.Tick(now)
		if !ok {
			return nil
		}
		r.add(t)
		if t.To.Terminal() {
			i.finishLocked(t, r)
		}
		return nil
	})
}

func (i *Interactor) Stop(ctx context.Context) (dto.SessionOutput, error) {
	return i.run(func(now time.Time, r *result) error {
		return i.stopLocked(now, r)
	})
}

// OnSurfaceDismissed stops a running session and is a no-op otherwise.
func (i *Interactor) OnSurfaceDismissed(ctx context.Context) (dto.SessionOutput, error) {
	return i.run(func(now time.Time, r *result) error {
		if i.session.State != domain.StateRunning {
			return nil
		}
		return i.stopLocked(now, r)
	})
}

func (i *Interactor) Current(ctx context.Context) dto.SessionOutput {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.outputLocked(i.clock.Now())
}

// CurrentSnapshot returns the cached ledger snapshot, including optimistic
// completions whose writes have not been acknowledged yet.
func (i *Interactor) CurrentSnapshot(ctx context.Context) (ledgerdto.SnapshotOutput, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.identity == nil || !i.identity.IsAuthenticated(ctx) {
		return ledgerdto.SnapshotOutput{}, apperrors.ErrAuthRequired
	}
	if _, err := i.ensureSnapshotLocked(ctx, i.identity.UserID(ctx)); err != nil {
		return ledgerdto.SnapshotOutput{}, err
	}
	return ledgerdto.FromSnapshot(i.cache), nil
}

// Subscribe registers listener for every transition. Listeners run on the
// caller's goroutine after the controller lock is released.
func (i *Interactor) Subscribe(listener func(dto.TransitionEvent)) func() {
	i.mu.Lock()
	defer i.mu.Unlock()
	key := i.nextListener
	i.nextListener++
	i.listeners[key] = listener
	return func() {
		i.mu.Lock()
		defer i.mu.Unlock()
		delete(i.listeners, key)
	}
}

// Close waits for in-flight ledger writes or for ctx to end.
func (i *Interactor) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		i.writes.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type result struct {
	transitions []domain.Transition
	outcome     string
	awarded     int
	at          time.Time
}

func (r *result) add(t domain.Transition) {
	r.transitions = append(r.transitions, t)
}

func (i *Interactor) run(fn func(now time.Time, r *result) error) (dto.SessionOutput, error) {
	i.mu.Lock()
	r := &result{at: i.clock.Now()}
	err := fn(r.at, r)
	out := i.outputLocked(r.at)
	out.Outcome = r.outcome
	out.Awarded = r.awarded
	listeners := make([]func(dto.TransitionEvent), 0, len(i.listeners))
	for _, l := range i.listeners {
		listeners = append(listeners, l)
	}
	i.mu.Unlock()

	for _, t := range r.transitions {
		event := dto.FromTransition(t)
		for _, l := range listeners {
			l(event)
		}
	}
	return out, err
}

func (i *Interactor) stopLocked(now time.Time, r *result) error {
	t, err := i.session.Stop(now)
	if err != nil {
		return err
	}
	r.add(t)
	i.finishLocked(t, r)
	return nil
}

// finishLocked processes a terminal transition exactly once and resets the
// session to Idle.
func (i *Interactor) finishLocked(t domain.Transition, r *result) {
	switch t.To {
	case domain.StateCompleted:
		next := ledger.ApplyCompletion(t.Activity, i.cache, t.At)
		i.cache = next
		r.outcome = dto.OutcomeCompleted
		r.awarded = t.Activity.PointValue
		i.writeAsync(ledgerdto.CompletionInput{
			UserID:   i.cacheUser,
			EntryID:  t.SessionID,
			Activity: t.Activity,
			Snapshot: next,
			At:       t.At,
		})
	case domain.StateAborted:
		r.outcome = dto.OutcomeAborted
	}
	if reset, ok := i.session.Reset(t.At); ok {
		r.add(reset)
	}
}

// writeAsync records a completion without blocking the caller. Each write
// starts only after the previous one finished, so the store always ends on
// the newest snapshot. Callers hold i.mu.
func (i *Interactor) writeAsync(input ledgerdto.CompletionInput) {
	prev := i.lastWrite
	done := make(chan struct{})
	i.lastWrite = done

	i.writes.Add(1)
	go func() {
		defer i.writes.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}
		ctx, cancel := context.WithTimeout(context.Background(), i.writeTimeout)
		defer cancel()
		if err := i.ledger.RecordCompletion(ctx, input); err != nil {
			i.log.WithFields(logrus.Fields{
				"user_id":     input.UserID,
				"activity_id": input.Activity.ID,
			}).WithError(err).Warn("ledger write failed")
		}
	}()
}

// ensureSnapshotLocked reads the snapshot once per user. It reports whether
// a read happened.
func (i *Interactor) ensureSnapshotLocked(ctx context.Context, userID string) (bool, error) {
	if i.cached && i.cacheUser == userID {
		return false, nil
	}
	out, err := i.ledger.Snapshot(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load ledger snapshot: %w", err)
	}
	snapshot, err := ledgerdto.ToSnapshot(out)
	if err != nil {
		return false, fmt.Errorf("decode ledger snapshot: %w", err)
	}
	i.cache = snapshot
	i.cacheUser = userID
	i.cached = true
	return true, nil
}

func (i *Interactor) outputLocked(now time.Time) dto.SessionOutput {
	state := i.session.State
	if state == "" {
		state = domain.StateIdle
	}
	out := dto.SessionOutput{
		SessionID: i.session.ID,
		State:     string(state),
		StartedAt: i.session.StartedAt,
	}
	if state == domain.StateIdle {
		return out
	}
	activity := dto.FromDescriptor(i.session.Activity)
	out.Activity = &activity
	switch state {
	case domain.StateRunning:
		out.RemainingSeconds = max(i.session.Remaining(now), 0)
	case domain.StateSelected:
		out.RemainingSeconds = i.session.Activity.DurationSeconds
	}
	return out
}
