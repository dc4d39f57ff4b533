package domain

import (
	"time"

	"github.com/google/uuid"
)

// Review is a free-text review of a resource within an organization.
// Ratings is the live rating set; AggregateRating is always derived from it.
type Review struct {
	ID           uuid.UUID
	Review       string
	Organization string
	Resource     *string
	Author       *string // nil for anonymous reviews
	Ratings      []Rating
	DateCreated  *time.Time
	DateModified *time.Time
}

// AddRating attaches rt to the review, wiring its owner reference.
func (r *Review) AddRating(rt Rating) {
	rt.ReviewID = r.ID
	rt.Owner = &ReviewRef{ID: r.ID, Author: r.Author}
	r.Ratings = append(r.Ratings, rt)
}

func (r Review) AggregateRating() float64 {
	values := make([]int, 0, len(r.Ratings))
	for _, rt := range r.Ratings {
		values = append(values, rt.Value)
	}
	return AggregateRating(values)
}

type ReviewsQuery struct {
	Organization string
	Resource     string // exact; empty = any
	Author       string // exact; empty = any
	Limit        int
}
