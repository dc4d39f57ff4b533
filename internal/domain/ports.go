package domain

import (
	"context"

	"github.com/google/uuid"
)

// TotalsStore is the query surface the totals aggregator needs.
// Organization and Resource in a Scope are substring filters here;
// LikeExists matches exactly.
type TotalsStore interface {
	AverageRating(ctx context.Context, s Scope) (RatingStats, error)
	CountReviews(ctx context.Context, s Scope) (int64, error)
	CountLikes(ctx context.Context, s Scope) (int64, error)
	LikeExists(ctx context.Context, author, resource, organization string) (bool, error)
}

type ReviewRepository interface {
	// Write paths
	UpsertAspect(ctx context.Context, a Aspect) error
	UpsertReview(ctx context.Context, r Review) error // replaces the rating set
	UpsertLike(ctx context.Context, l Like) error
	DeleteReview(ctx context.Context, id uuid.UUID) error // cascades to ratings
	DeleteAspect(ctx context.Context, id uuid.UUID) error // cascades to ratings
	DeleteLike(ctx context.Context, id uuid.UUID) error
	LogMiss(ctx context.Context, collection string, page, status int, reason string) error

	// Read paths
	GetReview(ctx context.Context, id uuid.UUID) (Review, error)
	GetRating(ctx context.Context, id uuid.UUID) (Rating, error)
	GetAspect(ctx context.Context, id uuid.UUID) (Aspect, error)
	GetLike(ctx context.Context, id uuid.UUID) (Like, error)
	ListReviews(ctx context.Context, q ReviewsQuery) ([]Review, error)
	ListRatings(ctx context.Context, q RatingsQuery) ([]Rating, error)
	ListAspects(ctx context.Context, q AspectsQuery) ([]Aspect, error)
	ListLikes(ctx context.Context, q LikesQuery) ([]Like, error)
}

// Store is what a storage backend provides.
type Store interface {
	TotalsStore
	ReviewRepository
}

// SourceClient reads collections from the legacy review component.
type SourceClient interface {
	ListCollection(ctx context.Context, collection string, page int) ([]map[string]any, error)
}
