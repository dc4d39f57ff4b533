// Package memory is an in-process Store used for local development and tests.
// It mirrors the MySQL matching rules: substring filters for totals,
// exact matches for LikeExists and review listings.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reviews_api/internal/domain"
)

type Miss struct {
	Collection string
	Page       int
	Status     int
	Reason     string
}

type Store struct {
	mu      sync.RWMutex
	reviews map[uuid.UUID]domain.Review // ratings held in the ratings map
	aspects map[uuid.UUID]domain.Aspect
	ratings map[uuid.UUID]domain.Rating
	likes   map[uuid.UUID]domain.Like
	misses  []Miss
	now     func() time.Time
}

func New() *Store {
	return &Store{
		reviews: map[uuid.UUID]domain.Review{},
		aspects: map[uuid.UUID]domain.Aspect{},
		ratings: map[uuid.UUID]domain.Rating{},
		likes:   map[uuid.UUID]domain.Like{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ---- writes ----

func (s *Store) UpsertAspect(ctx context.Context, a domain.Aspect) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a = a.WithDefaults()
	a.DateCreated, a.DateModified = s.stamp(s.aspects[a.ID].DateCreated)
	s.aspects[a.ID] = a
	return nil
}

func (s *Store) UpsertReview(ctx context.Context, r domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.reviews[r.ID]
	var created *time.Time
	if existed {
		created = prev.DateCreated
	}
	// orphan removal: drop ratings no longer in the set
	keep := make(map[uuid.UUID]struct{}, len(r.Ratings))
	for _, rt := range r.Ratings {
		keep[rt.ID] = struct{}{}
	}
	for id, rt := range s.ratings {
		if rt.ReviewID != r.ID {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(s.ratings, id)
		}
	}
	for _, rt := range r.Ratings {
		rt.ReviewID = r.ID
		rt.Owner, rt.Bounds = nil, nil
		rt.DateCreated, rt.DateModified = s.stamp(s.ratings[rt.ID].DateCreated)
		s.ratings[rt.ID] = rt
	}

	r.Ratings = nil
	r.DateCreated, r.DateModified = s.stamp(created)
	s.reviews[r.ID] = r
	return nil
}

func (s *Store) UpsertLike(ctx context.Context, l domain.Like) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.DateCreated, l.DateModified = s.stamp(s.likes[l.ID].DateCreated)
	s.likes[l.ID] = l
	return nil
}

// DeleteReview removes a review and cascades to its ratings.
func (s *Store) DeleteReview(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.reviews, id)
	for rid, rt := range s.ratings {
		if rt.ReviewID == id {
			delete(s.ratings, rid)
		}
	}
	return nil
}

// DeleteAspect removes an aspect and cascades to the ratings referencing it.
func (s *Store) DeleteAspect(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.aspects[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.aspects, id)
	for rid, rt := range s.ratings {
		if rt.AspectID != nil && *rt.AspectID == id {
			delete(s.ratings, rid)
		}
	}
	return nil
}

func (s *Store) DeleteLike(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.likes[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.likes, id)
	return nil
}

func (s *Store) LogMiss(ctx context.Context, collection string, page, status int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.misses = append(s.misses, Miss{Collection: collection, Page: page, Status: status, Reason: reason})
	return nil
}

func (s *Store) Misses() []Miss {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Miss(nil), s.misses...)
}

func (s *Store) stamp(created *time.Time) (*time.Time, *time.Time) {
	now := s.now()
	if created == nil {
		created = &now
	}
	return created, &now
}

// ---- totals ----

func (s *Store) AverageRating(ctx context.Context, sc domain.Scope) (domain.RatingStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st domain.RatingStats
	for _, rt := range s.ratings {
		rv, ok := s.reviews[rt.ReviewID]
		if !ok || !matchesScope(rv.Organization, rv.Resource, sc) {
			continue
		}
		st.Sum += int64(rt.Value)
		st.Count++
	}
	return st, nil
}

func (s *Store) CountReviews(ctx context.Context, sc domain.Scope) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, rv := range s.reviews {
		if matchesScope(rv.Organization, rv.Resource, sc) {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountLikes(ctx context.Context, sc domain.Scope) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, l := range s.likes {
		res := l.Resource
		if matchesScope(l.Organization, &res, sc) {
			n++
		}
	}
	return n, nil
}

func (s *Store) LikeExists(ctx context.Context, author, resource, organization string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.likes {
		if l.Author != author || l.Resource != resource {
			continue
		}
		if organization != "" && l.Organization != organization {
			continue
		}
		return true, nil
	}
	return false, nil
}

func matchesScope(org string, resource *string, sc domain.Scope) bool {
	if sc.Organization != "" && !strings.Contains(org, sc.Organization) {
		return false
	}
	if sc.Resource != "" && (resource == nil || !strings.Contains(*resource, sc.Resource)) {
		return false
	}
	return true
}

// ---- reads ----

func (s *Store) GetReview(ctx context.Context, id uuid.UUID) (domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rv, ok := s.reviews[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return s.withRatings(rv), nil
}

func (s *Store) GetRating(ctx context.Context, id uuid.UUID) (domain.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.ratings[id]
	if !ok {
		return domain.Rating{}, domain.ErrNotFound
	}
	return s.resolve(rt), nil
}

func (s *Store) GetAspect(ctx context.Context, id uuid.UUID) (domain.Aspect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.aspects[id]
	if !ok {
		return domain.Aspect{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *Store) GetLike(ctx context.Context, id uuid.UUID) (domain.Like, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.likes[id]
	if !ok {
		return domain.Like{}, domain.ErrNotFound
	}
	return l, nil
}

func (s *Store) ListRatings(ctx context.Context, q domain.RatingsQuery) ([]domain.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Rating, 0)
	for _, rt := range s.ratings {
		if q.Review != uuid.Nil && rt.ReviewID != q.Review {
			continue
		}
		if q.Aspect != uuid.Nil && (rt.AspectID == nil || *rt.AspectID != q.Aspect) {
			continue
		}
		out = append(out, s.resolve(rt))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return limit(out, q.Limit), nil
}

func (s *Store) ListAspects(ctx context.Context, q domain.AspectsQuery) ([]domain.Aspect, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Aspect, 0)
	for _, a := range s.aspects {
		if q.Organization != "" && a.Organization != q.Organization {
			continue
		}
		if q.Item != "" && (a.Item == nil || *a.Item != q.Item) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return limit(out, q.Limit), nil
}

func (s *Store) ListLikes(ctx context.Context, q domain.LikesQuery) ([]domain.Like, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Like, 0)
	for _, l := range s.likes {
		if q.Organization != "" && l.Organization != q.Organization {
			continue
		}
		if q.Resource != "" && l.Resource != q.Resource {
			continue
		}
		if q.Author != "" && l.Author != q.Author {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].DateModified, out[j].DateModified
		if !ti.Equal(*tj) {
			return ti.After(*tj)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return limit(out, q.Limit), nil
}

func limit[T any](xs []T, n int) []T {
	if n > 0 && len(xs) > n {
		return xs[:n]
	}
	return xs
}

func (s *Store) ListReviews(ctx context.Context, q domain.ReviewsQuery) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Review, 0)
	for _, rv := range s.reviews {
		if q.Organization != "" && rv.Organization != q.Organization {
			continue
		}
		if q.Resource != "" && (rv.Resource == nil || *rv.Resource != q.Resource) {
			continue
		}
		if q.Author != "" && (rv.Author == nil || *rv.Author != q.Author) {
			continue
		}
		out = append(out, s.withRatings(rv))
	}
	// newest modification first, like the MySQL listing
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].DateModified, out[j].DateModified
		if !ti.Equal(*tj) {
			return ti.After(*tj)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return limit(out, q.Limit), nil
}

func (s *Store) withRatings(rv domain.Review) domain.Review {
	rv.Ratings = nil
	for _, rt := range s.ratings {
		if rt.ReviewID == rv.ID {
			rv.Ratings = append(rv.Ratings, s.resolve(rt))
		}
	}
	sort.Slice(rv.Ratings, func(i, j int) bool { return rv.Ratings[i].ID.String() < rv.Ratings[j].ID.String() })
	return rv
}

// resolve populates the delegated owner and bounds references.
func (s *Store) resolve(rt domain.Rating) domain.Rating {
	if rv, ok := s.reviews[rt.ReviewID]; ok {
		rt.Owner = &domain.ReviewRef{ID: rv.ID, Author: rv.Author}
	}
	if rt.AspectID != nil {
		if a, ok := s.aspects[*rt.AspectID]; ok {
			b := a.Bounds()
			rt.Bounds = &b
		}
	}
	return rt
}
