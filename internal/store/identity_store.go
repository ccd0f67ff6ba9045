package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
)

// Sentinel errors for identity store operations
var (
	ErrIdentityNotFound      = errors.New("identity not found")
	ErrIdentityAlreadyExists = errors.New("identity already exists")
)

// IdentityStore persists authenticated principals independently of any organization.
type IdentityStore interface {
	// Create creates a new identity.
	// Returns ErrIdentityAlreadyExists if the ID or (provider, subject) pair is taken.
	Create(ctx context.Context, identity *models.Identity) error

	// Get retrieves an identity by principal ID.
	// Returns ErrIdentityNotFound if the identity doesn't exist.
	Get(ctx context.Context, principalID uuid.UUID) (*models.Identity, error)

	// GetBySubject retrieves an identity by provider and provider subject.
	// Returns ErrIdentityNotFound if the identity doesn't exist.
	GetBySubject(ctx context.Context, provider, subject string) (*models.Identity, error)

	// Update updates the mutable attributes (display name, email, avatar, last login).
	// Returns ErrIdentityNotFound if the identity doesn't exist.
	Update(ctx context.Context, identity *models.Identity) error
}
