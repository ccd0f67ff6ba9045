package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/store"
	"github.com/wolfeidau/hrdesk/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Permission represents an authorized action
type Permission string

const (
	PermOrgManage         Permission = "org.manage"
	PermUsersManage       Permission = "users.manage"
	PermRolesManage       Permission = "roles.manage"
	PermInvitesManage     Permission = "invites.manage"
	PermDepartmentsManage Permission = "departments.manage"
	PermPositionsManage   Permission = "positions.manage"
	PermEmployeesCreate   Permission = "employees.create"
	PermEmployeesRead     Permission = "employees.read"
	PermEmployeesUpdate   Permission = "employees.update"
	PermEmployeesDelete   Permission = "employees.delete"
)

// AllPermissions returns every permission known to the service.
func AllPermissions() []Permission {
	return []Permission{
		PermOrgManage,
		PermUsersManage,
		PermRolesManage,
		PermInvitesManage,
		PermDepartmentsManage,
		PermPositionsManage,
		PermEmployeesCreate,
		PermEmployeesRead,
		PermEmployeesUpdate,
		PermEmployeesDelete,
	}
}

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrOnboardingRequired = errors.New("onboarding required")
)

// Gate answers permission questions for a principal. It fails closed: any
// lookup error, a missing profile, a suspended profile or zero roles deny.
type Gate struct {
	profiles store.ProfileStore
	roles    store.RoleStore
}

// NewGate creates a permission gate.
func NewGate(profiles store.ProfileStore, roles store.RoleStore) *Gate {
	return &Gate{
		profiles: profiles,
		roles:    roles,
	}
}

// Permissions returns the effective permission keys of a principal: the union
// over the principal's roles that belong to the principal's own organization.
func (g *Gate) Permissions(ctx context.Context, principalID uuid.UUID) ([]string, error) {
	profile, err := g.profiles.Get(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	if profile.IsSuspended() {
		return nil, nil
	}

	keys, err := g.roles.PermissionKeys(ctx, profile.OrgID, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}

	return keys, nil
}

// HasPermission checks if a principal holds a permission
func (g *Gate) HasPermission(ctx context.Context, principalID uuid.UUID, perm Permission) bool {
	keys, err := g.Permissions(ctx, principalID)
	if err != nil {
		log.Warn().
			Err(err).
			Str("principal_id", principalID.String()).
			Str("permission", string(perm)).
			Msg("Permission check failed, denying")
		return false
	}

	return slices.Contains(keys, string(perm))
}

// Require checks authorization and returns an error if not authorized
func (g *Gate) Require(ctx context.Context, ac *AuthContext, perm Permission) error {
	if ac == nil || ac.PrincipalID == uuid.Nil {
		return ErrNotAuthenticated
	}

	if !ac.HasTenant() {
		return ErrOnboardingRequired
	}

	metrics := telemetry.GetMetrics()
	attrs := metric.WithAttributes(attribute.String("permission", string(perm)))
	metrics.PermissionChecksTotal.Add(ctx, 1, attrs)

	if !g.HasPermission(ctx, ac.PrincipalID, perm) {
		metrics.PermissionDeniedTotal.Add(ctx, 1, attrs)

		log.Info().
			Str("principal_id", ac.PrincipalID.String()).
			Str("org_id", ac.OrgID.String()).
			Str("permission", string(perm)).
			Msg("Permission denied")

		return fmt.Errorf("%w: requires %s", ErrPermissionDenied, perm)
	}

	return nil
}

// RequireMember checks that the caller is authenticated and belongs to a tenant.
func RequireMember(ac *AuthContext) error {
	if ac == nil || ac.PrincipalID == uuid.Nil {
		return ErrNotAuthenticated
	}
	if !ac.HasTenant() {
		return ErrOnboardingRequired
	}
	return nil
}
