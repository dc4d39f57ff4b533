package app

import (
	"context"

	"github.com/google/uuid"

	"reviews_api/internal/domain"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type QueryService struct {
	repo domain.ReviewRepository
}

func NewQueryService(r domain.ReviewRepository) *QueryService {
	return &QueryService{repo: r}
}

func (s *QueryService) GetReview(ctx context.Context, id uuid.UUID) (domain.Review, error) {
	return s.repo.GetReview(ctx, id)
}

func (s *QueryService) GetRating(ctx context.Context, id uuid.UUID) (domain.Rating, error) {
	return s.repo.GetRating(ctx, id)
}

func (s *QueryService) GetAspect(ctx context.Context, id uuid.UUID) (domain.Aspect, error) {
	return s.repo.GetAspect(ctx, id)
}

func (s *QueryService) GetLike(ctx context.Context, id uuid.UUID) (domain.Like, error) {
	return s.repo.GetLike(ctx, id)
}

// clampLimit keeps n within [1, MaxListLimit], defaulting to DefaultListLimit.
func clampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultListLimit
	case n > MaxListLimit:
		return MaxListLimit
	}
	return n
}

func (s *QueryService) ListRatings(ctx context.Context, q domain.RatingsQuery) ([]domain.Rating, error) {
	q.Limit = clampLimit(q.Limit)
	return s.repo.ListRatings(ctx, q)
}

func (s *QueryService) ListAspects(ctx context.Context, q domain.AspectsQuery) ([]domain.Aspect, error) {
	q.Limit = clampLimit(q.Limit)
	return s.repo.ListAspects(ctx, q)
}

func (s *QueryService) ListLikes(ctx context.Context, q domain.LikesQuery) ([]domain.Like, error) {
	q.Limit = clampLimit(q.Limit)
	return s.repo.ListLikes(ctx, q)
}

// ListReviews clamps the limit like every collection read.
func (s *QueryService) ListReviews(ctx context.Context, q domain.ReviewsQuery) ([]domain.Review, error) {
	q.Limit = clampLimit(q.Limit)
	rs, err := s.repo.ListReviews(ctx, q)
	if err != nil {
		return nil, err
	}
	// copy to avoid aliasing the repo's backing array
	out := make([]domain.Review, len(rs))
	copy(out, rs)
	return out, nil
}
