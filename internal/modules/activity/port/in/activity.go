package in

import (
	"context"

	"mindmosaic/internal/modules/activity/dto"
	ledgerdto "mindmosaic/internal/modules/ledger/dto"
)

// Usecase is the session controller driven by the presentation layer. Calls
// are expected to be serialized by the caller's event loop.
type Usecase interface {
	Moods(ctx context.Context) ([]dto.MoodOutput, error)
	Activities(ctx context.Context, mood string) ([]dto.ActivityOutput, error)

	Select(ctx context.Context, activityID string) (dto.SessionOutput, error)
	CancelSelection(ctx context.Context) (dto.SessionOutput, error)
	Start(ctx context.Context) (dto.SessionOutput, error)
	Tick(ctx context.Context) (dto.SessionOutput, error)
	Stop(ctx context.Context) (dto.SessionOutput, error)
	OnSurfaceDismissed(ctx context.Context) (dto.SessionOutput, error)

	Current(ctx context.Context) dto.SessionOutput
	CurrentSnapshot(ctx context.Context) (ledgerdto.SnapshotOutput, error)
	Subscribe(listener func(dto.TransitionEvent)) (unsubscribe func())
	Close(ctx context.Context) error
}
