package in

import (
	"context"

	"mindmosaic/internal/modules/ledger/dto"
	ledgerin "mindmosaic/internal/modules/ledger/port/in"
)

type CLIHandler struct {
	usecase ledgerin.Usecase
}

func NewCLIHandler(usecase ledgerin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Show(ctx context.Context, userID string) (dto.SnapshotOutput, error) {
	return h.usecase.Snapshot(ctx, userID)
}

func (h CLIHandler) History(ctx context.Context, userID string, limit int) ([]dto.LogEntryOutput, error) {
	return h.usecase.History(ctx, dto.HistoryInput{UserID: userID, Limit: limit})
}

func (h CLIHandler) Watch(ctx context.Context, userID string) (<-chan dto.SnapshotOutput, error) {
	return h.usecase.Watch(ctx, userID)
}
