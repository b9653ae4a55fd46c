package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mindmosaic/internal/modules/ledger/domain"
	apperrors "mindmosaic/internal/platform/errors"
	"mindmosaic/internal/platform/tx"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const defaultPollInterval = 500 * time.Millisecond

// SQLiteLedgerStore keeps snapshots and history in one database file. It
// implements both LedgerStore and ActivityLog and joins transactions opened
// by tx.SQLManager on the same *sql.DB.
type SQLiteLedgerStore struct {
	db           *sql.DB
	pollInterval time.Duration
}

func NewSQLiteLedgerStore(dbPath string) (*SQLiteLedgerStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	// Other processes (serve, a second CLI) may share the file.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Fire-and-forget writes run on their own goroutines; one connection
	// avoids SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)
	store := &SQLiteLedgerStore{db: db, pollInterval: defaultPollInterval}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteLedgerStore) DB() *sql.DB { return s.db }

func (s *SQLiteLedgerStore) Close() error { return s.db.Close() }

// SetPollInterval changes how often Watch checks the row for changes.
func (s *SQLiteLedgerStore) SetPollInterval(d time.Duration) {
	if d > 0 {
		s.pollInterval = d
	}
}

func (s *SQLiteLedgerStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS ledgers (
  user_id TEXT PRIMARY KEY,
  points INTEGER NOT NULL,
  streak INTEGER NOT NULL,
  last_completed_date TEXT,
  last_title TEXT,
  last_points INTEGER,
  last_completed_at TEXT,
  updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS activity_log (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  activity_id TEXT NOT NULL,
  title TEXT NOT NULL,
  mood TEXT,
  points INTEGER NOT NULL,
  completed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS activity_log_user_time ON activity_log (user_id, completed_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create ledger tables: %w", err)
	}
	return nil
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteLedgerStore) conn(ctx context.Context) queryer {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return s.db
}

func (s *SQLiteLedgerStore) Load(ctx context.Context, userID string) (domain.Snapshot, error) {
	snapshot, _, err := s.load(ctx, s.conn(ctx), userID)
	return snapshot, err
}

// load also returns the row's updated_at, which Watch uses as a version.
func (s *SQLiteLedgerStore) load(ctx context.Context, q queryer, userID string) (domain.Snapshot, string, error) {
	const stmt = `
SELECT points, streak, last_completed_date, last_title, last_points, last_completed_at, updated_at
FROM ledgers WHERE user_id = ?`
	var (
		snapshot   domain.Snapshot
		lastDate   sql.NullString
		lastTitle  sql.NullString
		lastPoints sql.NullInt64
		lastAt     sql.NullString
		version    string
	)
	err := q.QueryRowContext(ctx, stmt, userID).Scan(&snapshot.Points, &snapshot.Streak, &lastDate, &lastTitle, &lastPoints, &lastAt, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, "", apperrors.ErrNotFound
	}
	if err != nil {
		return domain.Snapshot{}, "", fmt.Errorf("select ledger: %w", err)
	}
	snapshot.LastCompletedDate = domain.Day(lastDate.String)
	if lastTitle.Valid {
		completedAt, err := time.Parse(timeLayout, lastAt.String)
		if err != nil {
			return domain.Snapshot{}, "", fmt.Errorf("parse last completed at: %w", err)
		}
		snapshot.LastActivityCompleted = &domain.LastActivity{
			Title:       lastTitle.String,
			Points:      int(lastPoints.Int64),
			CompletedAt: completedAt,
		}
	}
	return snapshot, version, nil
}

// Watch polls the user's row and sends the current snapshot followed by
// every committed change, including writes from other processes sharing
// the file. A user with no row reads as the zero snapshot.
func (s *SQLiteLedgerStore) Watch(ctx context.Context, userID string) (<-chan domain.Snapshot, error) {
	snapshot, version, err := s.load(ctx, s.db, userID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	out := make(chan domain.Snapshot, 1)
	out <- snapshot
	go func() {
		defer close(out)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			next, nextVersion, err := s.load(ctx, s.db, userID)
			if err != nil || nextVersion == version {
				continue
			}
			version = nextVersion
			select {
			case out <- next:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *SQLiteLedgerStore) Save(ctx context.Context, userID string, snapshot domain.Snapshot) error {
	const stmt = `
INSERT INTO ledgers (user_id, points, streak, last_completed_date, last_title, last_points, last_completed_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
  points=excluded.points,
  streak=excluded.streak,
  last_completed_date=excluded.last_completed_date,
  last_title=excluded.last_title,
  last_points=excluded.last_points,
  last_completed_at=excluded.last_completed_at,
  updated_at=excluded.updated_at;
`
	var lastTitle, lastAt sql.NullString
	var lastPoints sql.NullInt64
	if last := snapshot.LastActivityCompleted; last != nil {
		lastTitle = sql.NullString{String: last.Title, Valid: true}
		lastPoints = sql.NullInt64{Int64: int64(last.Points), Valid: true}
		lastAt = sql.NullString{String: last.CompletedAt.UTC().Format(timeLayout), Valid: true}
	}
	_, err := s.conn(ctx).ExecContext(ctx, stmt,
		userID,
		snapshot.Points,
		snapshot.Streak,
		sql.NullString{String: string(snapshot.LastCompletedDate), Valid: snapshot.LastCompletedDate != ""},
		lastTitle,
		lastPoints,
		lastAt,
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upsert ledger: %w", err)
	}
	return nil
}

func (s *SQLiteLedgerStore) Append(ctx context.Context, userID string, entry domain.LogEntry) error {
	const stmt = `
INSERT INTO activity_log (id, user_id, activity_id, title, mood, points, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING`
	_, err := s.conn(ctx).ExecContext(ctx, stmt,
		entry.ID,
		userID,
		entry.ActivityID,
		entry.Title,
		entry.Mood,
		entry.Points,
		entry.CompletedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

func (s *SQLiteLedgerStore) List(ctx context.Context, userID string, limit int) ([]domain.LogEntry, error) {
	const stmt = `
SELECT id, activity_id, title, mood, points, completed_at
FROM activity_log WHERE user_id = ?
ORDER BY completed_at DESC, id DESC
LIMIT ?`
	rows, err := s.conn(ctx).QueryContext(ctx, stmt, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity log: %w", err)
	}
	defer rows.Close()

	out := []domain.LogEntry{}
	for rows.Next() {
		var (
			entry       domain.LogEntry
			mood        sql.NullString
			completedAt string
		)
		if err := rows.Scan(&entry.ID, &entry.ActivityID, &entry.Title, &mood, &entry.Points, &completedAt); err != nil {
			return nil, fmt.Errorf("scan activity log: %w", err)
		}
		entry.Mood = mood.String
		if entry.CompletedAt, err = time.Parse(timeLayout, completedAt); err != nil {
			return nil, fmt.Errorf("parse completed at: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity log: %w", err)
	}
	return out, nil
}
