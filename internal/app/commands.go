package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"reviews_api/internal/domain"
)

const (
	CollectionAspects = "aspects"
	CollectionReviews = "reviews"
	CollectionLikes   = "likes"
)

// ImportOrder lists collections parents first: ratings reference aspects.
var ImportOrder = []string{CollectionAspects, CollectionReviews, CollectionLikes}

// PageResult summarises one imported page. Fetched == 0 marks the end of a collection.
type PageResult struct {
	Fetched  int
	Imported int
	Skipped  int
}

type ImportService struct {
	source domain.SourceClient
	repo   domain.ReviewRepository
}

func NewImportService(src domain.SourceClient, r domain.ReviewRepository) *ImportService {
	return &ImportService{source: src, repo: r}
}

// ImportPage copies one page of a collection from the legacy component.
// Missing or forbidden pages are recorded as misses and end the collection.
func (s *ImportService) ImportPage(ctx context.Context, collection string, page int) (PageResult, error) {
	items, err := s.source.ListCollection(ctx, collection, page)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			_ = s.repo.LogMiss(ctx, collection, page, 404, "not found")
			return PageResult{}, nil
		case errors.Is(err, domain.ErrForbidden):
			_ = s.repo.LogMiss(ctx, collection, page, 403, "forbidden")
			return PageResult{}, nil
		default:
			return PageResult{}, fmt.Errorf("list %s page %d: %w", collection, page, err)
		}
	}

	res := PageResult{Fetched: len(items)}
	bounds := map[uuid.UUID]*domain.Bounds{}
	for _, it := range items {
		var err error
		switch collection {
		case CollectionAspects:
			err = s.importAspect(ctx, it)
		case CollectionReviews:
			err = s.importReview(ctx, it, bounds)
		case CollectionLikes:
			err = s.importLike(ctx, it)
		default:
			return PageResult{}, fmt.Errorf("unknown collection %q", collection)
		}
		if errors.Is(err, errSkip) {
			log.Warn().Err(err).Str("collection", collection).Int("page", page).Msg("import item skipped")
			res.Skipped++
			continue
		}
		if err != nil {
			return res, err
		}
		res.Imported++
	}
	return res, nil
}

// errSkip marks item-level problems that skip the item without failing the page.
var errSkip = errors.New("skipped")

func (s *ImportService) importAspect(ctx context.Context, p map[string]any) error {
	a, err := mapAspect(p)
	if err != nil {
		return fmt.Errorf("%w: %v", errSkip, err)
	}
	if a.WorstRating > a.BestRating {
		return fmt.Errorf("%w: aspect %s worst %d > best %d", errSkip, a.ID, a.WorstRating, a.BestRating)
	}
	return s.repo.UpsertAspect(ctx, a)
}

// importReview validates every rating against its aspect bounds before writing.
func (s *ImportService) importReview(ctx context.Context, p map[string]any, cache map[uuid.UUID]*domain.Bounds) error {
	rv, err := mapReview(p)
	if err != nil {
		return fmt.Errorf("%w: %v", errSkip, err)
	}
	for i := range rv.Ratings {
		rt := &rv.Ratings[i]
		if rt.AspectID != nil {
			b, err := s.aspectBounds(ctx, *rt.AspectID, cache)
			if err != nil {
				return err
			}
			rt.Bounds = b
		}
		if err := rt.Validate(); err != nil {
			return fmt.Errorf("%w: %v", errSkip, err)
		}
	}
	if err := s.repo.UpsertReview(ctx, rv); err != nil {
		return fmt.Errorf("upsert review %s: %w", rv.ID, err)
	}
	return nil
}

func (s *ImportService) aspectBounds(ctx context.Context, id uuid.UUID, cache map[uuid.UUID]*domain.Bounds) (*domain.Bounds, error) {
	b, err := resolveBounds(ctx, s.repo, id, cache)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown aspect %s", errSkip, id)
	}
	return b, err
}

// resolveBounds loads an aspect's bounds once per cache; misses are cached too.
func resolveBounds(ctx context.Context, repo domain.ReviewRepository, id uuid.UUID, cache map[uuid.UUID]*domain.Bounds) (*domain.Bounds, error) {
	if b, ok := cache[id]; ok {
		if b == nil {
			return nil, fmt.Errorf("aspect %s: %w", id, domain.ErrNotFound)
		}
		return b, nil
	}
	a, err := repo.GetAspect(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		cache[id] = nil
		return nil, fmt.Errorf("aspect %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	b := a.Bounds()
	cache[id] = &b
	return &b, nil
}

func (s *ImportService) importLike(ctx context.Context, p map[string]any) error {
	l, err := mapLike(p)
	if err != nil {
		return fmt.Errorf("%w: %v", errSkip, err)
	}
	return s.repo.UpsertLike(ctx, l)
}
