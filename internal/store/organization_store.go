package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
)

var (
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")
)

// OrganizationStore persists tenants.
type OrganizationStore interface {
	Create(ctx context.Context, org *models.Organization) error
	Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)

	// Rename sets the display name and returns the updated organization.
	Rename(ctx context.Context, orgID uuid.UUID, name string) (*models.Organization, error)

	// Delete removes a tenant. It only exists to undo a failed onboarding.
	Delete(ctx context.Context, orgID uuid.UUID) error
}
