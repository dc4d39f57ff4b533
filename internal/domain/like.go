package domain

import (
	"time"

	"github.com/google/uuid"
)

// Like records that Author approved of Resource within Organization.
type Like struct {
	ID           uuid.UUID
	Organization string
	Resource     string
	Author       string
	DateCreated  *time.Time
	DateModified *time.Time
}

type LikesQuery struct {
	Organization string // exact; empty = any
	Resource     string
	Author       string
	Limit        int
}
