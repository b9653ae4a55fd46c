package service

import (
	"context"
	"sync"

	"mindmosaic/internal/modules/ledger/domain"
)

// hub fans snapshot changes out to in-process watchers. Each watcher holds
// at most one pending snapshot; slow readers only ever see the latest.
type hub struct {
	mu       sync.Mutex
	watchers map[string]map[chan domain.Snapshot]struct{}
}

func newHub() *hub {
	return &hub{watchers: map[string]map[chan domain.Snapshot]struct{}{}}
}

func (h *hub) subscribe(ctx context.Context, userID string, initial domain.Snapshot) <-chan domain.Snapshot {
	ch := make(chan domain.Snapshot, 1)
	ch <- initial
	h.mu.Lock()
	if h.watchers[userID] == nil {
		h.watchers[userID] = map[chan domain.Snapshot]struct{}{}
	}
	h.watchers[userID][ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.watchers[userID], ch)
		if len(h.watchers[userID]) == 0 {
			delete(h.watchers, userID)
		}
		close(ch)
		h.mu.Unlock()
	}()
	return ch
}

func (h *hub) publish(userID string, snapshot domain.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.watchers[userID] {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}
