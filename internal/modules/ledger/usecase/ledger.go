package usecase

import (
	"context"
	"fmt"

	"mindmosaic/internal/modules/ledger/domain"
	"mindmosaic/internal/modules/ledger/dto"
	ledgerin "mindmosaic/internal/modules/ledger/port/in"
	"mindmosaic/internal/modules/ledger/service"
	apperrors "mindmosaic/internal/platform/errors"
)

type Interactor struct {
	svc *service.LedgerService
}

func NewInteractor(svc *service.LedgerService) ledgerin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Snapshot(ctx context.Context, userID string) (dto.SnapshotOutput, error) {
	snapshot, err := i.svc.Load(ctx, userID)
	if err != nil {
		return dto.SnapshotOutput{}, err
	}
	return dto.FromSnapshot(snapshot), nil
}

func (i *Interactor) RecordCompletion(ctx context.Context, input dto.CompletionInput) error {
	if input.EntryID == "" {
		return fmt.Errorf("%w: entry id is required", apperrors.ErrInvalidInput)
	}
	entry := domain.NewLogEntry(input.EntryID, input.Activity, input.At)
	return i.svc.Commit(ctx, input.UserID, input.Snapshot, entry)
}

func (i *Interactor) Replace(ctx context.Context, userID string, snapshot dto.SnapshotOutput) (dto.SnapshotOutput, error) {
	next, err := dto.ToSnapshot(snapshot)
	if err != nil {
		return dto.SnapshotOutput{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if err := i.svc.Replace(ctx, userID, next); err != nil {
		return dto.SnapshotOutput{}, err
	}
	return dto.FromSnapshot(next), nil
}

func (i *Interactor) AppendHistory(ctx context.Context, userID string, entry dto.LogEntryOutput) error {
	return i.svc.Append(ctx, userID, dto.ToLogEntry(entry))
}

func (i *Interactor) History(ctx context.Context, input dto.HistoryInput) ([]dto.LogEntryOutput, error) {
	entries, err := i.svc.History(ctx, input.UserID, input.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.LogEntryOutput, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.FromLogEntry(e))
	}
	return out, nil
}

func (i *Interactor) Watch(ctx context.Context, userID string) (<-chan dto.SnapshotOutput, error) {
	in, err := i.svc.Watch(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(chan dto.SnapshotOutput)
	go func() {
		defer close(out)
		for snapshot := range in {
			select {
			case out <- dto.FromSnapshot(snapshot):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
