package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned by source clients on 401/403 responses.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidScope is returned when a totals scope lacks its organization.
	ErrInvalidScope = errors.New("invalid scope: organization is required")

	// ErrIncompleteRating is returned when a rating is asked for a value it
	// delegates to a review or aspect that was never attached.
	ErrIncompleteRating = errors.New("incomplete rating")

	// ErrInvalidInput marks a write rejected before it reached the store.
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidRating     = errors.New("rating value must be positive")
	ErrRatingOutOfBounds = errors.New("rating value outside aspect bounds")
)
