package domain

import (
	"fmt"
	"strings"
	"time"

	activity "mindmosaic/internal/modules/activity/domain"
)

const (
	DayLayout = "2006-01-02"
	// legacyDayLayout is the Date.toDateString form older clients stored.
	legacyDayLayout = "Mon Jan 02 2006"
)

// Day is a calendar date with the time of day discarded. The empty Day
// means "never".
type Day string

// DayOf returns the calendar date of t in t's location.
func DayOf(t time.Time) Day {
	return Day(t.Format(DayLayout))
}

// ParseDay accepts YYYY-MM-DD and the legacy "Mon Jan 02 2006" form.
func ParseDay(raw string) (Day, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	for _, layout := range []string{DayLayout, legacyDayLayout, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return Day(t.Format(DayLayout)), nil
		}
	}
	return "", fmt.Errorf("unrecognised calendar date %q", raw)
}

// previousDay uses calendar arithmetic so DST shifts never skip a day.
func previousDay(t time.Time) Day {
	y, m, d := t.Date()
	return DayOf(time.Date(y, m, d-1, 12, 0, 0, 0, t.Location()))
}

// LastActivity is a denormalized display record of the latest completion.
type LastActivity struct {
	Title       string
	Points      int
	CompletedAt time.Time
}

// Snapshot is a user's persisted progress. The zero value is the snapshot
// of a user who never completed anything.
type Snapshot struct {
	Points                int
	Streak                int
	LastCompletedDate     Day
	LastActivityCompleted *LastActivity
}

func (s Snapshot) Validate() error {
	if s.Points < 0 {
		return fmt.Errorf("points must be non-negative")
	}
	if s.Streak < 0 {
		return fmt.Errorf("streak must be non-negative")
	}
	if s.LastCompletedDate != "" {
		if _, err := time.Parse(DayLayout, string(s.LastCompletedDate)); err != nil {
			return fmt.Errorf("last completed date %q is not YYYY-MM-DD", s.LastCompletedDate)
		}
	}
	return nil
}

// ApplyCompletion computes the snapshot after a fully completed activity.
// It is pure: the calendar day is taken from now's location and nothing else
// is read. It must never be called for an aborted session.
func ApplyCompletion(a activity.Descriptor, previous Snapshot, now time.Time) Snapshot {
	today := DayOf(now)
	streak := 1
	switch previous.LastCompletedDate {
	case today:
		streak = previous.Streak
	case previousDay(now):
		streak = previous.Streak + 1
	}
	return Snapshot{
		Points:            previous.Points + a.PointValue,
		Streak:            streak,
		LastCompletedDate: today,
		LastActivityCompleted: &LastActivity{
			Title:       a.Title,
			Points:      a.PointValue,
			CompletedAt: now,
		},
	}
}

// LogEntry is one row of a user's activity history.
type LogEntry struct {
	ID          string
	ActivityID  string
	Title       string
	Mood        string
	Points      int
	CompletedAt time.Time
}

func NewLogEntry(id string, a activity.Descriptor, completedAt time.Time) LogEntry {
	return LogEntry{
		ID:          id,
		ActivityID:  a.ID,
		Title:       a.Title,
		Mood:        a.Mood,
		Points:      a.PointValue,
		CompletedAt: completedAt,
	}
}
