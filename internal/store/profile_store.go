package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
)

// Sentinel errors for profile store operations
var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileAlreadyExists = errors.New("profile already exists")
)

// ProfileStore persists tenant membership. A principal has at most one profile.
type ProfileStore interface {
	// Create creates a profile.
	// Returns ErrProfileAlreadyExists if the principal already has a profile.
	Create(ctx context.Context, profile *models.Profile) error

	// Get retrieves the profile for a principal.
	// Returns ErrProfileNotFound if the principal has not joined an organization.
	Get(ctx context.Context, principalID uuid.UUID) (*models.Profile, error)

	// ListByOrg returns all profiles in an organization ordered by creation time.
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Profile, error)

	// UpdateStatus sets the status of a profile within orgID.
	// Returns ErrProfileNotFound if no profile for principalID exists in orgID.
	UpdateStatus(ctx context.Context, orgID, principalID uuid.UUID, status string) error

	// Delete removes a profile within orgID.
	// Returns ErrProfileNotFound if no profile for principalID exists in orgID.
	Delete(ctx context.Context, orgID, principalID uuid.UUID) error
}
