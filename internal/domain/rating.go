package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultBestRating  = 10
	DefaultWorstRating = 1
)

// Aspect is a named, bounded dimension of an item that can be rated.
type Aspect struct {
	ID           uuid.UUID
	Organization string
	ItemType     *string
	Item         *string
	Name         string
	Description  *string
	BestRating   int
	WorstRating  int
	DateCreated  *time.Time
	DateModified *time.Time
}

// WithDefaults fills zero bounds with 10 / 1.
func (a Aspect) WithDefaults() Aspect {
	if a.BestRating == 0 {
		a.BestRating = DefaultBestRating
	}
	if a.WorstRating == 0 {
		a.WorstRating = DefaultWorstRating
	}
	return a
}

func (a Aspect) Bounds() Bounds { return Bounds{Best: a.BestRating, Worst: a.WorstRating} }

type Bounds struct{ Best, Worst int }

// ReviewRef is the slice of the owning review a rating delegates to.
type ReviewRef struct {
	ID     uuid.UUID
	Author *string
}

// Rating is a single score within a review, optionally tied to an aspect.
//
// Author, BestRating and WorstRating are not stored on the rating: they are
// resolved through Owner and Bounds, which repositories populate on read.
type Rating struct {
	ID           uuid.UUID
	ReviewID     uuid.UUID
	AspectID     *uuid.UUID
	Value        int
	Explanation  *string
	DateCreated  *time.Time
	DateModified *time.Time

	Owner  *ReviewRef
	Bounds *Bounds
}

func (r Rating) Author() (*string, error) {
	if r.Owner == nil {
		return nil, fmt.Errorf("rating %s has no review: %w", r.ID, ErrIncompleteRating)
	}
	return r.Owner.Author, nil
}

func (r Rating) BestRating() (int, error) {
	if r.Bounds == nil {
		return 0, fmt.Errorf("rating %s has no aspect: %w", r.ID, ErrIncompleteRating)
	}
	return r.Bounds.Best, nil
}

func (r Rating) WorstRating() (int, error) {
	if r.Bounds == nil {
		return 0, fmt.Errorf("rating %s has no aspect: %w", r.ID, ErrIncompleteRating)
	}
	return r.Bounds.Worst, nil
}

// Validate checks positivity and, when an aspect is attached, its bounds.
func (r Rating) Validate() error {
	if r.Value <= 0 {
		return fmt.Errorf("rating %s value %d: %w", r.ID, r.Value, ErrInvalidRating)
	}
	if r.Bounds != nil && (r.Value < r.Bounds.Worst || r.Value > r.Bounds.Best) {
		return fmt.Errorf("rating %s value %d not in [%d,%d]: %w",
			r.ID, r.Value, r.Bounds.Worst, r.Bounds.Best, ErrRatingOutOfBounds)
	}
	return nil
}

// RatingsQuery filters by owning review and aspect; uuid.Nil means any.
type RatingsQuery struct {
	Review uuid.UUID
	Aspect uuid.UUID
	Limit  int
}

// AspectsQuery filters are exact; empty means any.
type AspectsQuery struct {
	Organization string
	Item         string
	Limit        int
}
