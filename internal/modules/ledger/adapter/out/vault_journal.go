package out

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mindmosaic/internal/modules/ledger/domain"
	"mindmosaic/internal/platform/markdown"
	"mindmosaic/internal/platform/slug"
)

const journalSchemaVersion = 1

type journalMeta struct {
	SchemaVersion int       `yaml:"schema_version"`
	ID            string    `yaml:"id"`
	ActivityID    string    `yaml:"activity_id"`
	Title         string    `yaml:"title"`
	Mood          string    `yaml:"mood,omitempty"`
	Points        int       `yaml:"points"`
	CompletedAt   time.Time `yaml:"completed_at"`
}

// VaultJournal mirrors completions as markdown notes, one file per
// completion under <dir>/<user>/YYYY/MM/DD/.
type VaultJournal struct {
	dir string
}

func NewVaultJournal(dir string) *VaultJournal {
	return &VaultJournal{dir: dir}
}

func (j *VaultJournal) userDir(userID string) string {
	return filepath.Join(j.dir, slug.Make(userID))
}

func (j *VaultJournal) Append(_ context.Context, userID string, entry domain.LogEntry) error {
	at := entry.CompletedAt
	dir := filepath.Join(j.userDir(userID), at.Format("2006"), at.Format("01"), at.Format("02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.md", at.Format("150405"), slug.Make(entry.Title)))

	meta := journalMeta{
		SchemaVersion: journalSchemaVersion,
		ID:            entry.ID,
		ActivityID:    entry.ActivityID,
		Title:         entry.Title,
		Mood:          entry.Mood,
		Points:        entry.Points,
		CompletedAt:   at,
	}
	body := fmt.Sprintf("# %s\n\n- Completed: %s\n- Points: %d\n\n## Reflection\n\n", entry.Title, at.Format("Mon Jan 2 2006 15:04"), entry.Points)
	rendered, err := markdown.RenderFrontmatter(meta, body)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return fmt.Errorf("write journal note: %w", err)
	}
	return nil
}

func (j *VaultJournal) List(_ context.Context, userID string, limit int) ([]domain.LogEntry, error) {
	root := j.userDir(userID)
	var out []domain.LogEntry
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		var meta journalMeta
		if _, err := markdown.DecodeFrontmatter(string(content), &meta); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		if meta.ID == "" {
			return nil
		}
		out = append(out, domain.LogEntry{
			ID:          meta.ID,
			ActivityID:  meta.ActivityID,
			Title:       meta.Title,
			Mood:        meta.Mood,
			Points:      meta.Points,
			CompletedAt: meta.CompletedAt,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk journal: %w", err)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CompletedAt.After(out[b].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
