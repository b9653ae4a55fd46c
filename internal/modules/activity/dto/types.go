package dto

import (
	"time"

	"mindmosaic/internal/modules/activity/domain"
)

type MoodOutput struct {
	Tag        string
	Activities int
}

type ActivityOutput struct {
	ID              string
	Mood            string
	Title           string
	Description     string
	PointValue      int
	DurationSeconds int
}

// Outcome values reported when a call processed a terminal transition.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
)

// SessionOutput is the controller state after a call. Outcome and Awarded
// are set only by the call that observed the terminal transition.
type SessionOutput struct {
	SessionID        string
	State            string
	Activity         *ActivityOutput
	StartedAt        time.Time
	RemainingSeconds int
	Outcome          string
	Awarded          int
}

type TransitionEvent struct {
	SessionID        string
	From             string
	To               string
	Activity         ActivityOutput
	RemainingSeconds int
	At               time.Time
}

func FromDescriptor(d domain.Descriptor) ActivityOutput {
	return ActivityOutput{
		ID:              d.ID,
		Mood:            d.Mood,
		Title:           d.Title,
		Description:     d.Description,
		PointValue:      d.PointValue,
		DurationSeconds: d.DurationSeconds,
	}
}

func FromTransition(t domain.Transition) TransitionEvent {
	return TransitionEvent{
		SessionID:        t.SessionID,
		From:             string(t.From),
		To:               string(t.To),
		Activity:         FromDescriptor(t.Activity),
		RemainingSeconds: t.RemainingSeconds,
		At:               t.At,
	}
}

// FormatRemaining renders seconds as m:ss.
func FormatRemaining(seconds int) string {
	return domain.FormatRemaining(seconds)
}
