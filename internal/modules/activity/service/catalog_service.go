package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"mindmosaic/internal/modules/activity/domain"
	activityout "mindmosaic/internal/modules/activity/port/out"
	apperrors "mindmosaic/internal/platform/errors"
)

// CatalogService loads the catalog once and serves lookups from memory.
type CatalogService struct {
	source activityout.CatalogSource

	mu      sync.Mutex
	catalog domain.Catalog
	loaded  bool
}

func NewCatalogService(source activityout.CatalogSource) *CatalogService {
	return &CatalogService{source: source}
}

func (s *CatalogService) Catalog(ctx context.Context) (domain.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.catalog, nil
	}
	catalog, err := s.source.Load(ctx)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("load catalog: %w", err)
	}
	s.catalog = catalog
	s.loaded = true
	return catalog, nil
}

func (s *CatalogService) Moods(ctx context.Context) ([]domain.Mood, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	tags := catalog.Tags()
	moods := make([]domain.Mood, 0, len(tags))
	for _, tag := range tags {
		moods = append(moods, domain.Mood{Tag: tag, Activities: catalog.Activities(tag)})
	}
	return moods, nil
}

func (s *CatalogService) Activities(ctx context.Context, mood string) ([]domain.Descriptor, error) {
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Activities(mood), nil
}

func (s *CatalogService) Find(ctx context.Context, activityID string) (domain.Descriptor, error) {
	activityID = strings.TrimSpace(activityID)
	if activityID == "" {
		return domain.Descriptor{}, fmt.Errorf("%w: activity id is required", apperrors.ErrInvalidInput)
	}
	catalog, err := s.Catalog(ctx)
	if err != nil {
		return domain.Descriptor{}, err
	}
	d, ok := catalog.Find(activityID)
	if !ok {
		return domain.Descriptor{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownActivity, activityID)
	}
	return d, nil
}
