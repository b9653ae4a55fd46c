package in

import (
	"context"

	"mindmosaic/internal/modules/activity/dto"
	activityin "mindmosaic/internal/modules/activity/port/in"
	ledgerdto "mindmosaic/internal/modules/ledger/dto"
)

// TUIHandler exposes the controller operations the terminal UI drives.
type TUIHandler struct {
	usecase activityin.Usecase
}

func NewTUIHandler(usecase activityin.Usecase) TUIHandler {
	return TUIHandler{usecase: usecase}
}

func (h TUIHandler) Moods(ctx context.Context) ([]dto.MoodOutput, error) {
	return h.usecase.Moods(ctx)
}

func (h TUIHandler) Activities(ctx context.Context, mood string) ([]dto.ActivityOutput, error) {
	return h.usecase.Activities(ctx, mood)
}

func (h TUIHandler) Select(ctx context.Context, activityID string) (dto.SessionOutput, error) {
	return h.usecase.Select(ctx, activityID)
}

func (h TUIHandler) CancelSelection(ctx context.Context) (dto.SessionOutput, error) {
	return h.usecase.CancelSelection(ctx)
}

func (h TUIHandler) Start(ctx context.Context) (dto.SessionOutput, error) {
	return h.usecase.Start(ctx)
}

func (h TUIHandler) Tick(ctx context.Context) (dto.SessionOutput, error) {
	return h.usecase.Tick(ctx)
}

func (h TUIHandler) Stop(ctx context.Context) (dto.SessionOutput, error) {
	return h.usecase.Stop(ctx)
}

func (h TUIHandler) OnSurfaceDismissed(ctx context.Context) (dto.SessionOutput, error) {
	return h.usecase.OnSurfaceDismissed(ctx)
}

func (h TUIHandler) CurrentSnapshot(ctx context.Context) (ledgerdto.SnapshotOutput, error) {
	return h.usecase.CurrentSnapshot(ctx)
}
