package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"mindmosaic/internal/modules/ledger/domain"
	ledgerout "mindmosaic/internal/modules/ledger/port/out"
	apperrors "mindmosaic/internal/platform/errors"
	"mindmosaic/internal/platform/tx"
)

type LedgerService struct {
	store   ledgerout.LedgerStore
	history ledgerout.ActivityLog
	journal ledgerout.ActivityLog
	tx      tx.Manager
	hub     *hub
	log     logrus.FieldLogger
}

// NewLedgerService wires the store and history log. journal is an optional
// mirror that receives completions on a best-effort basis.
func NewLedgerService(store ledgerout.LedgerStore, history ledgerout.ActivityLog, journal ledgerout.ActivityLog, txm tx.Manager, log logrus.FieldLogger) *LedgerService {
	if txm == nil {
		txm = tx.NoopManager{}
	}
	return &LedgerService{store: store, history: history, journal: journal, tx: txm, hub: newHub(), log: log}
}

func (s *LedgerService) Load(ctx context.Context, userID string) (domain.Snapshot, error) {
	if err := requireUser(userID); err != nil {
		return domain.Snapshot{}, err
	}
	snapshot, err := s.store.Load(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return domain.Snapshot{}, nil
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("load ledger: %w", err)
	}
	return snapshot, nil
}

// Commit writes the snapshot and its history entry atomically where the
// backend supports it. Failures are reported as ErrStoreWriteFailed.
func (s *LedgerService) Commit(ctx context.Context, userID string, snapshot domain.Snapshot, entry domain.LogEntry) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	err := s.tx.Within(ctx, func(ctx context.Context) error {
		if err := s.store.Save(ctx, userID, snapshot); err != nil {
			return err
		}
		return s.history.Append(ctx, userID, entry)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrStoreWriteFailed, err)
	}
	if s.journal != nil {
		if err := s.journal.Append(ctx, userID, entry); err != nil {
			s.log.WithFields(logrus.Fields{"user_id": userID, "entry_id": entry.ID}).WithError(err).Warn("journal append failed")
		}
	}
	s.hub.publish(userID, snapshot)
	return nil
}

// Replace overwrites the stored snapshot (last write wins).
func (s *LedgerService) Replace(ctx context.Context, userID string, snapshot domain.Snapshot) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if err := s.store.Save(ctx, userID, snapshot); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrStoreWriteFailed, err)
	}
	s.hub.publish(userID, snapshot)
	return nil
}

func (s *LedgerService) Append(ctx context.Context, userID string, entry domain.LogEntry) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if strings.TrimSpace(entry.ID) == "" || strings.TrimSpace(entry.Title) == "" {
		return fmt.Errorf("%w: history entry needs an id and a title", apperrors.ErrInvalidInput)
	}
	if err := s.history.Append(ctx, userID, entry); err != nil {
		return fmt.Errorf("%w: %w", apperrors.ErrStoreWriteFailed, err)
	}
	return nil
}

func (s *LedgerService) History(ctx context.Context, userID string, limit int) ([]domain.LogEntry, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	entries, err := s.history.List(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

// Watch streams the current snapshot followed by every change. Stores that
// push changes themselves are preferred over the in-process hub.
func (s *LedgerService) Watch(ctx context.Context, userID string) (<-chan domain.Snapshot, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if watcher, ok := s.store.(ledgerout.SnapshotWatcher); ok {
		return watcher.Watch(ctx, userID)
	}
	current, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.hub.subscribe(ctx, userID, current), nil
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", apperrors.ErrInvalidInput)
	}
	return nil
}
