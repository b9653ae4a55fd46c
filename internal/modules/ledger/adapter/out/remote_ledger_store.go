package out

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"mindmosaic/internal/modules/ledger/domain"
	"mindmosaic/internal/modules/ledger/dto"
	apperrors "mindmosaic/internal/platform/errors"
)

// RemoteLedgerStore talks to the hierarchical document store served by
// `mindmosaic serve`. Documents live under /v1/users/{uid}.
type RemoteLedgerStore struct {
	baseURL string
	token   string
	client  *http.Client
	dialer  *websocket.Dialer
}

func NewRemoteLedgerStore(baseURL, token string, client *http.Client) *RemoteLedgerStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteLedgerStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
		dialer:  websocket.DefaultDialer,
	}
}

func (s *RemoteLedgerStore) userURL(userID string, parts ...string) string {
	u := s.baseURL + "/v1/users/" + url.PathEscape(userID)
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

func (s *RemoteLedgerStore) Load(ctx context.Context, userID string) (domain.Snapshot, error) {
	var doc dto.SnapshotOutput
	if err := s.do(ctx, http.MethodGet, s.userURL(userID), nil, &doc); err != nil {
		return domain.Snapshot{}, err
	}
	snapshot, err := dto.ToSnapshot(doc)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode ledger document: %w", err)
	}
	return snapshot, nil
}

func (s *RemoteLedgerStore) Save(ctx context.Context, userID string, snapshot domain.Snapshot) error {
	return s.do(ctx, http.MethodPut, s.userURL(userID), dto.FromSnapshot(snapshot), nil)
}

func (s *RemoteLedgerStore) Append(ctx context.Context, userID string, entry domain.LogEntry) error {
	return s.do(ctx, http.MethodPost, s.userURL(userID, "activity-log"), dto.FromLogEntry(entry), nil)
}

func (s *RemoteLedgerStore) List(ctx context.Context, userID string, limit int) ([]domain.LogEntry, error) {
	var page struct {
		Entries []dto.LogEntryOutput `json:"entries"`
	}
	target := s.userURL(userID, "activity-log") + "?limit=" + strconv.Itoa(limit)
	if err := s.do(ctx, http.MethodGet, target, nil, &page); err != nil {
		return nil, err
	}
	out := make([]domain.LogEntry, 0, len(page.Entries))
	for _, e := range page.Entries {
		out = append(out, dto.ToLogEntry(e))
	}
	return out, nil
}

// Watch opens the websocket feed for userID. The channel closes when ctx is
// done or the connection drops.
func (s *RemoteLedgerStore) Watch(ctx context.Context, userID string) (<-chan domain.Snapshot, error) {
	wsURL := s.userURL(userID, "watch")
	switch {
	case strings.HasPrefix(wsURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(wsURL, "https://")
	case strings.HasPrefix(wsURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(wsURL, "http://")
	}
	conn, resp, err := s.dialer.DialContext(ctx, wsURL, s.headers())
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, apperrors.ErrAuthRequired
		}
		return nil, fmt.Errorf("dial ledger watch: %w", err)
	}

	out := make(chan domain.Snapshot)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			var doc dto.SnapshotOutput
			if err := conn.ReadJSON(&doc); err != nil {
				return
			}
			snapshot, err := dto.ToSnapshot(doc)
			if err != nil {
				continue
			}
			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *RemoteLedgerStore) headers() http.Header {
	h := http.Header{}
	if s.token != "" {
		h.Set("Authorization", "Bearer "+s.token)
	}
	return h
}

func (s *RemoteLedgerStore) do(ctx context.Context, method, target string, body, into any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header = s.headers()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return apperrors.ErrAuthRequired
	case resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, target, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if into == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
