package dto

import (
	"time"

	activity "mindmosaic/internal/modules/activity/domain"
	"mindmosaic/internal/modules/ledger/domain"
)

type LastActivityOutput struct {
	Title       string    `json:"title"`
	Points      int       `json:"points"`
	CompletedAt time.Time `json:"completedAt"`
}

// SnapshotOutput mirrors the users/{uid} document.
type SnapshotOutput struct {
	Points                int                 `json:"points"`
	Streak                int                 `json:"streak"`
	LastCompletedDate     string              `json:"lastCompletedDate,omitempty"`
	LastActivityCompleted *LastActivityOutput `json:"lastActivityCompleted,omitempty"`
}

type LogEntryOutput struct {
	ID          string    `json:"id"`
	ActivityID  string    `json:"activityId"`
	Title       string    `json:"activityTitle"`
	Mood        string    `json:"mood,omitempty"`
	Points      int       `json:"points"`
	CompletedAt time.Time `json:"completedAt"`
}

// CompletionInput is issued by the session controller after a Completed
// transition; Snapshot is the already-computed next ledger state.
type CompletionInput struct {
	UserID   string
	EntryID  string
	Activity activity.Descriptor
	Snapshot domain.Snapshot
	At       time.Time
}

type HistoryInput struct {
	UserID string
	Limit  int
}

func FromSnapshot(s domain.Snapshot) SnapshotOutput {
	out := SnapshotOutput{
		Points:            s.Points,
		Streak:            s.Streak,
		LastCompletedDate: string(s.LastCompletedDate),
	}
	if s.LastActivityCompleted != nil {
		out.LastActivityCompleted = &LastActivityOutput{
			Title:       s.LastActivityCompleted.Title,
			Points:      s.LastActivityCompleted.Points,
			CompletedAt: s.LastActivityCompleted.CompletedAt,
		}
	}
	return out
}

// ToSnapshot normalizes the date (legacy forms are accepted) and validates.
func ToSnapshot(in SnapshotOutput) (domain.Snapshot, error) {
	day, err := domain.ParseDay(in.LastCompletedDate)
	if err != nil {
		return domain.Snapshot{}, err
	}
	s := domain.Snapshot{
		Points:            in.Points,
		Streak:            in.Streak,
		LastCompletedDate: day,
	}
	if in.LastActivityCompleted != nil {
		s.LastActivityCompleted = &domain.LastActivity{
			Title:       in.LastActivityCompleted.Title,
			Points:      in.LastActivityCompleted.Points,
			CompletedAt: in.LastActivityCompleted.CompletedAt,
		}
	}
	if err := s.Validate(); err != nil {
		return domain.Snapshot{}, err
	}
	return s, nil
}

func FromLogEntry(e domain.LogEntry) LogEntryOutput {
	return LogEntryOutput{
		ID:          e.ID,
		ActivityID:  e.ActivityID,
		Title:       e.Title,
		Mood:        e.Mood,
		Points:      e.Points,
		CompletedAt: e.CompletedAt,
	}
}

func ToLogEntry(in LogEntryOutput) domain.LogEntry {
	return domain.LogEntry{
		ID:          in.ID,
		ActivityID:  in.ActivityID,
		Title:       in.Title,
		Mood:        in.Mood,
		Points:      in.Points,
		CompletedAt: in.CompletedAt,
	}
}
