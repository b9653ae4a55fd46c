package in

import (
	"context"

	"mindmosaic/internal/modules/ledger/dto"
)

type Usecase interface {
	// Snapshot reads the stored ledger; a missing document is the zero snapshot.
	Snapshot(ctx context.Context, userID string) (dto.SnapshotOutput, error)
	// RecordCompletion persists a precomputed snapshot and its history entry.
	RecordCompletion(ctx context.Context, input dto.CompletionInput) error
	Replace(ctx context.Context, userID string, snapshot dto.SnapshotOutput) (dto.SnapshotOutput, error)
	AppendHistory(ctx context.Context, userID string, entry dto.LogEntryOutput) error
	History(ctx context.Context, input dto.HistoryInput) ([]dto.LogEntryOutput, error)
	Watch(ctx context.Context, userID string) (<-chan dto.SnapshotOutput, error)
}
