package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
)

// Sentinel errors for role store operations
var (
	ErrRoleNotFound           = errors.New("role not found")
	ErrRoleAlreadyExists      = errors.New("role already exists")
	ErrRoleAssignmentNotFound = errors.New("role assignment not found")
	ErrPermissionNotFound     = errors.New("permission not found")
	ErrLastRoleHolder         = errors.New("principal is the last holder of the role")
)

// RoleStore persists the permission catalog, tenant roles and role assignments.
// Every role operation is scoped by organization ID; a role ID from another
// organization behaves as if it does not exist.
type RoleStore interface {
	// SyncPermissions upserts the global permission catalog.
	SyncPermissions(ctx context.Context, permissions []*models.Permission) error

	// ListPermissions returns the global permission catalog ordered by key.
	ListPermissions(ctx context.Context) ([]*models.Permission, error)

	// Create creates a role together with its permission keys.
	// Returns ErrRoleAlreadyExists if the name is taken in the organization and
	// ErrPermissionNotFound if a key is not in the catalog.
	Create(ctx context.Context, role *models.Role) error

	// Get retrieves a role within orgID.
	// Returns ErrRoleNotFound if the role doesn't exist in orgID.
	Get(ctx context.Context, orgID, roleID uuid.UUID) (*models.Role, error)

	// GetByName retrieves a role within orgID by name.
	// Returns ErrRoleNotFound if the role doesn't exist in orgID.
	GetByName(ctx context.Context, orgID uuid.UUID, name string) (*models.Role, error)

	// ListByOrg returns all roles in an organization ordered by name.
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Role, error)

	// Update replaces the name, description and permission keys of a role within role.OrgID.
	// Returns ErrRoleNotFound if the role doesn't exist in that organization.
	Update(ctx context.Context, role *models.Role) error

	// Delete deletes a role within orgID, removing its assignments.
	// Returns ErrRoleNotFound if the role doesn't exist in orgID.
	Delete(ctx context.Context, orgID, roleID uuid.UUID) error

	// AssignToUser assigns a role in orgID to a principal. Assigning twice is a no-op.
	// Returns ErrRoleNotFound if the role doesn't exist in orgID.
	AssignToUser(ctx context.Context, orgID, principalID, roleID uuid.UUID) error

	// RemoveFromUser removes a role assignment within orgID.
	// Returns ErrRoleAssignmentNotFound if the principal doesn't hold the role.
	RemoveFromUser(ctx context.Context, orgID, principalID, roleID uuid.UUID) error

	// RemoveFromUserUnlessLast removes a role assignment within orgID unless the
	// principal is the only holder. The holder count and the delete are atomic
	// with respect to concurrent calls for the same role.
	// Returns ErrLastRoleHolder for the only holder and ErrRoleAssignmentNotFound
	// if the principal doesn't hold the role.
	RemoveFromUserUnlessLast(ctx context.Context, orgID, principalID, roleID uuid.UUID) error

	// ListUserRoles returns the roles held by a principal restricted to orgID.
	ListUserRoles(ctx context.Context, orgID, principalID uuid.UUID) ([]*models.Role, error)

	// CountMembers returns how many principals hold a role within orgID.
	CountMembers(ctx context.Context, orgID, roleID uuid.UUID) (int, error)

	// PermissionKeys returns the union of permission keys granted to a principal
	// by roles belonging to orgID. Roles from other organizations never contribute.
	PermissionKeys(ctx context.Context, orgID, principalID uuid.UUID) ([]string, error)
}
