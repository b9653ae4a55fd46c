package out_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	ledgerout "mindmosaic/internal/modules/ledger/adapter/out"
	"mindmosaic/internal/modules/ledger/domain"
	apperrors "mindmosaic/internal/platform/errors"
	"mindmosaic/internal/platform/tx"
)

func newSQLiteStore(t *testing.T) *ledgerout.SQLiteLedgerStore {
	t.Helper()
	store, err := ledgerout.NewSQLiteLedgerStore(filepath.Join(t.TempDir(), "state", "mindmosaic.db"))
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteLedgerStoreSnapshotRoundTrip(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	ctx := context.Background()

	if _, err := store.Load(ctx, "user-1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}

	completedAt := time.Date(2026, 3, 10, 9, 5, 0, 123, time.UTC)
	want := domain.Snapshot{
		Points:            150,
		Streak:            3,
		LastCompletedDate: "2026-03-10",
		LastActivityCompleted: &domain.LastActivity{
			Title:       "Breath Quest",
			Points:      50,
			CompletedAt: completedAt,
		},
	}
	if err := store.Save(ctx, "user-1", want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx, "user-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Points != 150 || got.Streak != 3 || got.LastCompletedDate != "2026-03-10" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if got.LastActivityCompleted == nil || !got.LastActivityCompleted.CompletedAt.Equal(completedAt) {
		t.Fatalf("unexpected last activity %+v", got.LastActivityCompleted)
	}

	if err := store.Save(ctx, "user-1", domain.Snapshot{Points: 10}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = store.Load(ctx, "user-1")
	if err != nil {
		t.Fatalf("load after overwrite: %v", err)
	}
	if got.Points != 10 || got.LastCompletedDate != "" || got.LastActivityCompleted != nil {
		t.Fatalf("last write should win, got %+v", got)
	}
}

func TestSQLiteLedgerStoreHistoryOrderingAndLimit(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i, title := range []string{"First", "Second", "Third"} {
		entry := domain.LogEntry{
			ID:          title,
			ActivityID:  "a",
			Title:       title,
			Points:      10,
			CompletedAt: base.Add(time.Duration(i) * 1500 * time.Millisecond),
		}
		if err := store.Append(ctx, "user-1", entry); err != nil {
			t.Fatalf("append %s: %v", title, err)
		}
	}
	if err := store.Append(ctx, "user-2", domain.LogEntry{ID: "other", ActivityID: "a", Title: "Other", CompletedAt: base}); err != nil {
		t.Fatalf("append other user: %v", err)
	}

	entries, err := store.List(ctx, "user-1", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 || entries[0].Title != "Third" || entries[1].Title != "Second" {
		t.Fatalf("expected newest first with limit, got %+v", entries)
	}
	none, err := store.List(ctx, "nobody", 10)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty history, got %+v %v", none, err)
	}
}

func TestSQLiteLedgerStoreRollsBackWithinTransaction(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	ctx := context.Background()
	manager := tx.NewSQLManager(store.DB())
	boom := errors.New("boom")

	err := manager.Within(ctx, func(ctx context.Context) error {
		if err := store.Save(ctx, "user-1", domain.Snapshot{Points: 99}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := store.Load(ctx, "user-1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("rolled back snapshot must not be visible, got %v", err)
	}

	err = manager.Within(ctx, func(ctx context.Context) error {
		if err := store.Save(ctx, "user-1", domain.Snapshot{Points: 5}); err != nil {
			return err
		}
		return store.Append(ctx, "user-1", domain.LogEntry{ID: "e1", ActivityID: "a", Title: "A", Points: 5, CompletedAt: time.Now()})
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, err := store.Load(ctx, "user-1")
	if err != nil || got.Points != 5 {
		t.Fatalf("committed snapshot should be visible, got %+v %v", got, err)
	}
}

func TestSQLiteLedgerStoreAppendIsIdempotentPerEntryID(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	ctx := context.Background()
	entry := domain.LogEntry{ID: "session-1", ActivityID: "breath-quest", Title: "Breath Quest", Points: 50, CompletedAt: time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC)}

	for attempt := 1; attempt <= 2; attempt++ {
		if err := store.Append(ctx, "user-1", entry); err != nil {
			t.Fatalf("append attempt %d: %v", attempt, err)
		}
	}
	entries, err := store.List(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "session-1" {
		t.Fatalf("retried append should store the entry once, got %+v", entries)
	}
}

func TestSQLiteLedgerStoreWatchSeesWritesFromAnotherHandle(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "shared.db")
	watcher, err := ledgerout.NewSQLiteLedgerStore(path)
	if err != nil {
		t.Fatalf("open watcher: %v", err)
	}
	t.Cleanup(func() { _ = watcher.Close() })
	watcher.SetPollInterval(10 * time.Millisecond)
	writer, err := ledgerout.NewSQLiteLedgerStore(path)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	t.Cleanup(func() { _ = writer.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	updates, err := watcher.Watch(ctx, "user-1")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	select {
	case first := <-updates:
		if first.Points != 0 || first.Streak != 0 {
			t.Fatalf("expected zero snapshot for unknown user, got %+v", first)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for initial snapshot")
	}

	if err := writer.Save(ctx, "user-1", domain.Snapshot{Points: 50, Streak: 1, LastCompletedDate: "2026-03-10"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	select {
	case next := <-updates:
		if next.Points != 50 || next.Streak != 1 || next.LastCompletedDate != "2026-03-10" {
			t.Fatalf("unexpected polled snapshot %+v", next)
		}
	case <-ctx.Done():
		t.Fatalf("timed out waiting for the other handle's write")
	}

	cancel()
	for range updates {
	}
}
