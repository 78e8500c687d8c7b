package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("profile not found")
	ErrAlreadyExists    = errors.New("profile already exists")
	ErrCreateFailed     = errors.New("profile could not be created")
	ErrEmptyDisplayName = errors.New("display name is required")
)

// Profile is the application-side record of an identity.
type Profile struct {
	UserID      uuid.UUID
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository persists profiles keyed by identity id.
type Repository interface {
	// Get returns ErrNotFound when no profile exists.
	Get(ctx context.Context, userID uuid.UUID) (*Profile, error)
	// Create returns ErrAlreadyExists on a duplicate id.
	Create(ctx context.Context, p *Profile) error
	// UpdateDisplayName returns ErrNotFound when no profile exists.
	UpdateDisplayName(ctx context.Context, userID uuid.UUID, name string) error
}
