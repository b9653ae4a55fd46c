package out

import (
	"context"

	"mindmosaic/internal/modules/ledger/domain"
)

// LedgerStore persists one snapshot per user. Load returns
// apperrors.ErrNotFound when the user has no document yet.
type LedgerStore interface {
	Load(ctx context.Context, userID string) (domain.Snapshot, error)
	Save(ctx context.Context, userID string, snapshot domain.Snapshot) error
}

// ActivityLog keeps the per-user completion history, newest first on List.
type ActivityLog interface {
	Append(ctx context.Context, userID string, entry domain.LogEntry) error
	List(ctx context.Context, userID string, limit int) ([]domain.LogEntry, error)
}

// SnapshotWatcher is implemented by stores that can push changes.
type SnapshotWatcher interface {
	Watch(ctx context.Context, userID string) (<-chan domain.Snapshot, error)
}
