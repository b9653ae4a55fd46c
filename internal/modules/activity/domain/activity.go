package domain

import (
	"fmt"
	"strings"
)

// FallbackMood is used when a mood tag has no activities.
const FallbackMood = "relaxed"

// Descriptor is an immutable catalog entry.
type Descriptor struct {
	ID              string
	Mood            string
	Title           string
	Description     string
	PointValue      int
	DurationSeconds int
}

func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("activity id is required")
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("activity %s: title is required", d.ID)
	}
	if d.PointValue <= 0 {
		return fmt.Errorf("activity %s: point value must be positive", d.ID)
	}
	if d.DurationSeconds <= 0 {
		return fmt.Errorf("activity %s: duration must be positive", d.ID)
	}
	return nil
}

type Mood struct {
	Tag        string
	Activities []Descriptor
}

// Catalog maps mood tags to ordered activity lists.
type Catalog struct {
	moods []Mood
}

func NewCatalog(moods []Mood) (Catalog, error) {
	seenMood := map[string]bool{}
	seenID := map[string]bool{}
	out := make([]Mood, 0, len(moods))
	for _, mood := range moods {
		tag := strings.ToLower(strings.TrimSpace(mood.Tag))
		if tag == "" {
			return Catalog{}, fmt.Errorf("mood tag is required")
		}
		if seenMood[tag] {
			return Catalog{}, fmt.Errorf("duplicate mood %q", tag)
		}
		seenMood[tag] = true
		activities := make([]Descriptor, 0, len(mood.Activities))
		for _, d := range mood.Activities {
			d.Mood = tag
			if err := d.Validate(); err != nil {
				return Catalog{}, err
			}
			if seenID[d.ID] {
				return Catalog{}, fmt.Errorf("duplicate activity id %q", d.ID)
			}
			seenID[d.ID] = true
			activities = append(activities, d)
		}
		out = append(out, Mood{Tag: tag, Activities: activities})
	}
	return Catalog{moods: out}, nil
}

func (c Catalog) Tags() []string {
	tags := make([]string, 0, len(c.moods))
	for _, m := range c.moods {
		tags = append(tags, m.Tag)
	}
	return tags
}

// Activities returns the list for tag, or the fallback mood's list when the
// tag is unknown. The returned slice is a copy.
func (c Catalog) Activities(tag string) []Descriptor {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, m := range c.moods {
		if m.Tag == tag {
			return append([]Descriptor(nil), m.Activities...)
		}
	}
	for _, m := range c.moods {
		if m.Tag == FallbackMood {
			return append([]Descriptor(nil), m.Activities...)
		}
	}
	return nil
}

func (c Catalog) Find(id string) (Descriptor, bool) {
	for _, m := range c.moods {
		for _, d := range m.Activities {
			if d.ID == id {
				return d, true
			}
		}
	}
	return Descriptor{}, false
}

// FormatRemaining renders seconds as m:ss.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
