package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"reviews_api/internal/domain"
)

// TotalsService computes review/like totals for a scope.
type TotalsService struct {
	store domain.TotalsStore
}

func NewTotalsService(s domain.TotalsStore) *TotalsService {
	return &TotalsService{store: s}
}

// CalculateRating averages the rating values of every review matching the
// scope and rounds the result half-down to one decimal.
func (s *TotalsService) CalculateRating(ctx context.Context, sc domain.Scope) (float64, error) {
	st, err := s.store.AverageRating(ctx, sc)
	if err != nil {
		return 0, fmt.Errorf("average rating: %w", err)
	}
	return st.Average(), nil
}

func (s *TotalsService) CalculateReviews(ctx context.Context, sc domain.Scope) (int64, error) {
	n, err := s.store.CountReviews(ctx, sc)
	if err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	return n, nil
}

func (s *TotalsService) CalculateLikes(ctx context.Context, sc domain.Scope) (int64, error) {
	n, err := s.store.CountLikes(ctx, sc)
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return n, nil
}

// CheckLiked reports whether author liked exactly resource (within
// organization when given). Without an author or resource nothing is queried.
func (s *TotalsService) CheckLiked(ctx context.Context, author, resource, organization string) (bool, error) {
	if author == "" || resource == "" {
		return false, nil
	}
	ok, err := s.store.LikeExists(ctx, author, resource, organization)
	if err != nil {
		return false, fmt.Errorf("check liked: %w", err)
	}
	return ok, nil
}

// Calculate runs the four sub-queries concurrently and assembles a Total.
// The sub-queries are independent reads; any failure fails the whole Total.
func (s *TotalsService) Calculate(ctx context.Context, sc domain.Scope) (domain.Total, error) {
	if err := sc.Validate(); err != nil {
		return domain.Total{}, err
	}

	t := domain.Total{
		Organization: sc.Organization,
		Resource:     optional(sc.Resource),
		Author:       optional(sc.Author),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		t.Rating, err = s.CalculateRating(gctx, sc)
		return err
	})
	g.Go(func() (err error) {
		t.Reviews, err = s.CalculateReviews(gctx, sc)
		return err
	})
	g.Go(func() (err error) {
		t.Likes, err = s.CalculateLikes(gctx, sc)
		return err
	})
	g.Go(func() (err error) {
		t.Liked, err = s.CheckLiked(gctx, sc.Author, sc.Resource, sc.Organization)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Total{}, err
	}
	return t, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
