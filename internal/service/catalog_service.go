package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/batchpass-api/internal/models"
	appErrors "github.com/noah-isme/batchpass-api/pkg/errors"
)

type catalogRepository interface {
	FindBatch(ctx context.Context, id string) (*models.Batch, error)
	FindSubject(ctx context.Context, batchID, id string) (*models.Subject, error)
	FindChapter(ctx context.Context, subjectID, id string) (*models.Chapter, error)
	ListSubjects(ctx context.Context, batchID string) ([]models.Subject, error)
	ListChapters(ctx context.Context, batchID string) ([]models.Chapter, error)
}

// CatalogService is the read-only view of batches and their content tree.
type CatalogService struct {
	repo     catalogRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCatalogService constructs CatalogService. cache may be nil.
func NewCatalogService(repo catalogRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Batch loads batch metadata. It is always read from storage since pricing depends on it.
func (s *CatalogService) Batch(ctx context.Context, id string) (*models.Batch, error) {
	batch, err := s.repo.FindBatch(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrBatchNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}
	return batch, nil
}

// Subject loads a subject of the batch.
func (s *CatalogService) Subject(ctx context.Context, batchID, id string) (*models.Subject, error) {
	subject, err := s.repo.FindSubject(ctx, batchID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	return subject, nil
}

// Chapter loads a chapter of the subject.
func (s *CatalogService) Chapter(ctx context.Context, subjectID, id string) (*models.Chapter, error) {
	chapter, err := s.repo.FindChapter(ctx, subjectID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "chapter not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load chapter")
	}
	return chapter, nil
}

// Outline returns the ordered subjects and chapters of a resolved batch, served from cache when
// enabled. Taking the batch rather than an id keeps unknown ids out of the cache.
func (s *CatalogService) Outline(ctx context.Context, batch *models.Batch) (*models.BatchOutline, error) {
	batchID := batch.ID
	key := outlineCacheKey(batchID)
	var cached models.BatchOutline
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	var outline models.BatchOutline
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		subjects, err := s.repo.ListSubjects(gctx, batchID)
		outline.Subjects = subjects
		return err
	})
	g.Go(func() error {
		chapters, err := s.repo.ListChapters(gctx, batchID)
		outline.Chapters = chapters
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch outline")
	}

	s.cache.Set(ctx, key, outline, s.cacheTTL)
	return &outline, nil
}

// InvalidateOutline drops the cached outline after the catalog owner edits a batch.
func (s *CatalogService) InvalidateOutline(ctx context.Context, batchID string) error {
	return s.cache.Invalidate(ctx, outlineCacheKey(batchID))
}

func outlineCacheKey(batchID string) string {
	return "catalog:outline:" + batchID
}
