package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
	"github.com/wolfeidau/hrdesk/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrNotFound is returned when the principal has not joined an organization yet.
var ErrNotFound = errors.New("tenant not found: onboarding required")

// Resolver maps an authenticated principal to its organization.
// It is the only place the tenant of a request is derived.
type Resolver struct {
	profiles store.ProfileStore
}

// NewResolver creates a resolver backed by the profile store.
func NewResolver(profiles store.ProfileStore) *Resolver {
	return &Resolver{profiles: profiles}
}

// Resolve returns the organization ID of principalID.
func (r *Resolver) Resolve(ctx context.Context, principalID uuid.UUID) (uuid.UUID, error) {
	profile, err := r.Profile(ctx, principalID)
	if err != nil {
		return uuid.Nil, err
	}
	return profile.OrgID, nil
}

// Profile returns the principal's profile, which carries the organization ID.
// Suspended profiles resolve normally; status is enforced by the permission gate.
func (r *Resolver) Profile(ctx context.Context, principalID uuid.UUID) (*models.Profile, error) {
	profile, err := r.profiles.Get(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			record(ctx, "onboarding")
			return nil, ErrNotFound
		}
		record(ctx, "error")
		return nil, fmt.Errorf("failed to resolve tenant: %w", err)
	}

	record(ctx, "resolved")
	return profile, nil
}

func record(ctx context.Context, outcome string) {
	telemetry.GetMetrics().TenantResolutionsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}
