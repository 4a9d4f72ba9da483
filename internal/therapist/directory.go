package therapist

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("therapist not found")

// Therapist is the read-only directory entry used to decorate appointment
// views. The scheduling engine never mutates this data.
type Therapist struct {
	ID        uuid.UUID
	Slug      string
	NameAR    string
	NameEN    string
	RoleAR    *string
	RoleEN    *string
	AvatarURL *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Directory is the lookup surface the scheduling engine consumes.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Therapist, error)
	GetBySlug(ctx context.Context, slug string) (*Therapist, error)
	List(ctx context.Context, activeOnly bool) ([]Therapist, error)
}
