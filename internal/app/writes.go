package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"reviews_api/internal/domain"
)

// RatingInput is a rating as clients write it. Review is only read when a
// rating is written on its own; nested ratings belong to the enclosing review.
type RatingInput struct {
	ID                string  `json:"id,omitempty"`
	Review            string  `json:"review,omitempty"`
	ReviewAspect      string  `json:"reviewAspect,omitempty"`
	RatingValue       int     `json:"ratingValue"`
	RatingExplanation *string `json:"ratingExplanation,omitempty"`
}

type ReviewInput struct {
	Review       string        `json:"review"`
	Organization string        `json:"organization"`
	Resource     *string       `json:"resource,omitempty"`
	Author       *string       `json:"author,omitempty"`
	Ratings      []RatingInput `json:"ratings,omitempty"`
}

// AspectInput leaves zero bounds to the 10 / 1 defaults.
type AspectInput struct {
	Organization string  `json:"organization"`
	ItemType     *string `json:"itemType,omitempty"`
	Item         *string `json:"item,omitempty"`
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
	BestRating   int     `json:"bestRating,omitempty"`
	WorstRating  int     `json:"worstRating,omitempty"`
}

type LikeInput struct {
	Organization string `json:"organization"`
	Resource     string `json:"resource"`
	Author       string `json:"author"`
}

// WriteService creates, replaces and deletes reviews, ratings, aspects and
// likes. Every write returns the entity as the store reads it back.
type WriteService struct {
	repo  domain.ReviewRepository
	newID func() uuid.UUID
}

func NewWriteService(r domain.ReviewRepository) *WriteService {
	return &WriteService{repo: r, newID: uuid.New}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return invalid("%s is required", field)
	}
	return nil
}

// ---- reviews ----

func (s *WriteService) CreateReview(ctx context.Context, in ReviewInput) (domain.Review, error) {
	return s.saveReview(ctx, s.newID(), in)
}

func (s *WriteService) ReplaceReview(ctx context.Context, id uuid.UUID, in ReviewInput) (domain.Review, error) {
	if _, err := s.repo.GetReview(ctx, id); err != nil {
		return domain.Review{}, err
	}
	return s.saveReview(ctx, id, in)
}

func (s *WriteService) DeleteReview(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteReview(ctx, id)
}

// saveReview writes the review with exactly the given rating set; ratings
// missing from in are removed by the store.
func (s *WriteService) saveReview(ctx context.Context, id uuid.UUID, in ReviewInput) (domain.Review, error) {
	if err := required("organization", in.Organization); err != nil {
		return domain.Review{}, err
	}
	rv := domain.Review{
		ID:           id,
		Review:       in.Review,
		Organization: in.Organization,
		Resource:     nonBlank(in.Resource),
		Author:       nonBlank(in.Author),
	}
	cache := map[uuid.UUID]*domain.Bounds{}
	seen := map[uuid.UUID]bool{}
	for _, ri := range in.Ratings {
		rtID := s.newID()
		if ri.ID != "" {
			var ok bool
			if rtID, ok = ParseID(ri.ID); !ok {
				return domain.Review{}, invalid("rating id %q is not a UUID", ri.ID)
			}
			if err := s.ownedBy(ctx, rtID, id); err != nil {
				return domain.Review{}, err
			}
		}
		if seen[rtID] {
			return domain.Review{}, invalid("rating %s listed twice", rtID)
		}
		seen[rtID] = true
		rt, err := s.buildRating(ctx, rtID, ri, cache)
		if err != nil {
			return domain.Review{}, err
		}
		rv.AddRating(rt)
	}
	if err := s.repo.UpsertReview(ctx, rv); err != nil {
		return domain.Review{}, err
	}
	return s.repo.GetReview(ctx, id)
}

// ownedBy rejects a rating id that already belongs to another review.
func (s *WriteService) ownedBy(ctx context.Context, ratingID, reviewID uuid.UUID) error {
	cur, err := s.repo.GetRating(ctx, ratingID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case cur.ReviewID != reviewID:
		return invalid("rating %s belongs to review %s", ratingID, cur.ReviewID)
	}
	return nil
}

// buildRating resolves the aspect bounds and validates the value against them.
func (s *WriteService) buildRating(ctx context.Context, id uuid.UUID, in RatingInput, cache map[uuid.UUID]*domain.Bounds) (domain.Rating, error) {
	rt := domain.Rating{ID: id, Value: in.RatingValue, Explanation: in.RatingExplanation}
	if in.ReviewAspect != "" {
		aid, ok := ParseID(in.ReviewAspect)
		if !ok {
			return domain.Rating{}, invalid("reviewAspect %q is not an aspect reference", in.ReviewAspect)
		}
		b, err := resolveBounds(ctx, s.repo, aid, cache)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Rating{}, invalid("unknown aspect %s", aid)
		}
		if err != nil {
			return domain.Rating{}, err
		}
		rt.AspectID, rt.Bounds = &aid, b
	}
	if err := rt.Validate(); err != nil {
		return domain.Rating{}, err
	}
	return rt, nil
}

// ---- ratings ----
//
// A rating is stored as part of its review's rating set, so standalone
// rating writes rewrite that set.

func (s *WriteService) CreateRating(ctx context.Context, in RatingInput) (domain.Rating, error) {
	reviewID, ok := ParseID(in.Review)
	if !ok {
		return domain.Rating{}, invalid("review must reference a review")
	}
	rv, err := s.repo.GetReview(ctx, reviewID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Rating{}, invalid("unknown review %s", reviewID)
	}
	if err != nil {
		return domain.Rating{}, err
	}
	id := s.newID()
	if in.ID != "" {
		if id, ok = ParseID(in.ID); !ok {
			return domain.Rating{}, invalid("rating id %q is not a UUID", in.ID)
		}
		if _, err := s.repo.GetRating(ctx, id); err == nil {
			return domain.Rating{}, invalid("rating %s already exists", id)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return domain.Rating{}, err
		}
	}
	rt, err := s.buildRating(ctx, id, in, map[uuid.UUID]*domain.Bounds{})
	if err != nil {
		return domain.Rating{}, err
	}
	rv.AddRating(rt)
	if err := s.repo.UpsertReview(ctx, rv); err != nil {
		return domain.Rating{}, err
	}
	return s.repo.GetRating(ctx, id)
}

// ReplaceRating rewrites a rating in place. It cannot move to another review.
func (s *WriteService) ReplaceRating(ctx context.Context, id uuid.UUID, in RatingInput) (domain.Rating, error) {
	cur, err := s.repo.GetRating(ctx, id)
	if err != nil {
		return domain.Rating{}, err
	}
	if in.Review != "" {
		if rid, ok := ParseID(in.Review); !ok || rid != cur.ReviewID {
			return domain.Rating{}, invalid("rating %s cannot move to another review", id)
		}
	}
	rv, err := s.repo.GetReview(ctx, cur.ReviewID)
	if err != nil {
		return domain.Rating{}, err
	}
	rt, err := s.buildRating(ctx, id, in, map[uuid.UUID]*domain.Bounds{})
	if err != nil {
		return domain.Rating{}, err
	}
	rt.ReviewID, rt.Owner = rv.ID, &domain.ReviewRef{ID: rv.ID, Author: rv.Author}
	for i := range rv.Ratings {
		if rv.Ratings[i].ID == id {
			rv.Ratings[i] = rt
		}
	}
	if err := s.repo.UpsertReview(ctx, rv); err != nil {
		return domain.Rating{}, err
	}
	return s.repo.GetRating(ctx, id)
}

func (s *WriteService) DeleteRating(ctx context.Context, id uuid.UUID) error {
	cur, err := s.repo.GetRating(ctx, id)
	if err != nil {
		return err
	}
	rv, err := s.repo.GetReview(ctx, cur.ReviewID)
	if err != nil {
		return err
	}
	kept := rv.Ratings[:0]
	for _, rt := range rv.Ratings {
		if rt.ID != id {
			kept = append(kept, rt)
		}
	}
	rv.Ratings = kept
	return s.repo.UpsertReview(ctx, rv)
}

// ---- aspects ----

func (s *WriteService) CreateAspect(ctx context.Context, in AspectInput) (domain.Aspect, error) {
	return s.saveAspect(ctx, s.newID(), in)
}

func (s *WriteService) ReplaceAspect(ctx context.Context, id uuid.UUID, in AspectInput) (domain.Aspect, error) {
	if _, err := s.repo.GetAspect(ctx, id); err != nil {
		return domain.Aspect{}, err
	}
	return s.saveAspect(ctx, id, in)
}

func (s *WriteService) DeleteAspect(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteAspect(ctx, id)
}

func (s *WriteService) saveAspect(ctx context.Context, id uuid.UUID, in AspectInput) (domain.Aspect, error) {
	if err := required("organization", in.Organization); err != nil {
		return domain.Aspect{}, err
	}
	if err := required("name", in.Name); err != nil {
		return domain.Aspect{}, err
	}
	a := domain.Aspect{
		ID:           id,
		Organization: in.Organization,
		ItemType:     nonBlank(in.ItemType),
		Item:         nonBlank(in.Item),
		Name:         in.Name,
		Description:  in.Description,
		BestRating:   in.BestRating,
		WorstRating:  in.WorstRating,
	}.WithDefaults()
	if a.WorstRating < 1 || a.BestRating < a.WorstRating {
		return domain.Aspect{}, invalid("bounds [%d,%d] are not a positive range", a.WorstRating, a.BestRating)
	}
	if err := s.repo.UpsertAspect(ctx, a); err != nil {
		return domain.Aspect{}, err
	}
	return s.repo.GetAspect(ctx, id)
}

// ---- likes ----

func (s *WriteService) CreateLike(ctx context.Context, in LikeInput) (domain.Like, error) {
	return s.saveLike(ctx, s.newID(), in)
}

func (s *WriteService) ReplaceLike(ctx context.Context, id uuid.UUID, in LikeInput) (domain.Like, error) {
	if _, err := s.repo.GetLike(ctx, id); err != nil {
		return domain.Like{}, err
	}
	return s.saveLike(ctx, id, in)
}

func (s *WriteService) DeleteLike(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteLike(ctx, id)
}

func (s *WriteService) saveLike(ctx context.Context, id uuid.UUID, in LikeInput) (domain.Like, error) {
	for _, f := range [][2]string{{"organization", in.Organization}, {"resource", in.Resource}, {"author", in.Author}} {
		if err := required(f[0], f[1]); err != nil {
			return domain.Like{}, err
		}
	}
	l := domain.Like{ID: id, Organization: in.Organization, Resource: in.Resource, Author: in.Author}
	if err := s.repo.UpsertLike(ctx, l); err != nil {
		return domain.Like{}, err
	}
	return s.repo.GetLike(ctx, id)
}

func nonBlank(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
