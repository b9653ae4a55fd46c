package out

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mindmosaic/internal/modules/activity/domain"
	"mindmosaic/internal/platform/slug"
)

//go:embed catalogdata/default_catalog.yaml
var defaultCatalog []byte

type catalogFile struct {
	Moods []moodEntry `yaml:"moods"`
}

type moodEntry struct {
	Tag        string          `yaml:"tag"`
	Activities []activityEntry `yaml:"activities"`
}

type activityEntry struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Points      int    `yaml:"points"`
	Duration    string `yaml:"duration"`
}

// YAMLCatalog reads the activity catalog from a YAML file, or from the
// built-in catalog when path is empty.
type YAMLCatalog struct {
	path string
}

func NewYAMLCatalog(path string) YAMLCatalog {
	return YAMLCatalog{path: strings.TrimSpace(path)}
}

func (c YAMLCatalog) Load(_ context.Context) (domain.Catalog, error) {
	raw := defaultCatalog
	source := "built-in catalog"
	if c.path != "" {
		data, err := os.ReadFile(c.path)
		if err != nil {
			return domain.Catalog{}, fmt.Errorf("read catalog: %w", err)
		}
		raw = data
		source = c.path
	}
	catalog, err := ParseCatalog(raw)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %w", source, err)
	}
	return catalog, nil
}

func ParseCatalog(raw []byte) (domain.Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return domain.Catalog{}, fmt.Errorf("decode catalog yaml: %w", err)
	}
	if len(file.Moods) == 0 {
		return domain.Catalog{}, fmt.Errorf("catalog has no moods")
	}
	moods := make([]domain.Mood, 0, len(file.Moods))
	for _, m := range file.Moods {
		activities := make([]domain.Descriptor, 0, len(m.Activities))
		for _, a := range m.Activities {
			seconds, err := parseDuration(a.Duration)
			if err != nil {
				return domain.Catalog{}, fmt.Errorf("activity %q: %w", a.Title, err)
			}
			id := strings.TrimSpace(a.ID)
			if id == "" {
				id = slug.Make(a.Title)
			}
			activities = append(activities, domain.Descriptor{
				ID:              id,
				Title:           strings.TrimSpace(a.Title),
				Description:     strings.TrimSpace(a.Description),
				PointValue:      a.Points,
				DurationSeconds: seconds,
			})
		}
		moods = append(moods, domain.Mood{Tag: m.Tag, Activities: activities})
	}
	return domain.NewCatalog(moods)
}

func parseDuration(raw string) (int, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	if d < time.Second {
		return 0, fmt.Errorf("duration %q must be at least 1s", raw)
	}
	return int(d / time.Second), nil
}
