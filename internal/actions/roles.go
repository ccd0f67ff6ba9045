package actions

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/auth"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

// RoleInput carries the editable fields of a role.
type RoleInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

func (s *Service) validateRole(in *RoleInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return invalid("name", "role name is required")
	}

	known := s.catalog.Keys()
	keys := make([]string, 0, len(in.Permissions))
	for _, key := range in.Permissions {
		if !slices.Contains(known, key) {
			return invalid("permissions", fmt.Sprintf("unknown permission %q", key))
		}
		if !slices.Contains(keys, key) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	in.Permissions = keys

	return nil
}

// ListRoles returns the roles of the caller's organization.
func (s *Service) ListRoles(ctx context.Context, ac *auth.AuthContext) (result []*models.Role, err error) {
	defer s.observe(ctx, "listRoles", time.Now(), &err)

	if err := auth.RequireMember(ac); err != nil {
		return nil, err
	}

	roles, err := s.stores.Roles.ListByOrg(ctx, ac.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	return roles, nil
}

// ListPermissions returns the global permission catalog.
func (s *Service) ListPermissions(ctx context.Context, ac *auth.AuthContext) (result []*models.Permission, err error) {
	defer s.observe(ctx, "listPermissions", time.Now(), &err)

	if err := auth.RequireMember(ac); err != nil {
		return nil, err
	}

	permissions, err := s.stores.Roles.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}

	return permissions, nil
}

func (s *Service) role(ctx context.Context, orgID, roleID uuid.UUID) (*models.Role, error) {
	role, err := s.stores.Roles.Get(ctx, orgID, roleID)
	if err != nil {
		if errors.Is(err, store.ErrRoleNotFound) {
			return nil, notFound("role")
		}
		return nil, fmt.Errorf("failed to load role: %w", err)
	}
	return role, nil
}

// CreateRole creates a role in the caller's organization.
func (s *Service) CreateRole(ctx context.Context, ac *auth.AuthContext, in RoleInput) (result *models.Role, err error) {
	defer s.observe(ctx, "createRole", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermRolesManage); err != nil {
		return nil, err
	}
	if err := s.validateRole(&in); err != nil {
		return nil, err
	}

	roleID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate role ID: %w", err)
	}

	now := s.now()
	role := &models.Role{
		RoleID:         roleID,
		OrgID:          ac.OrgID,
		Name:           in.Name,
		Description:    in.Description,
		PermissionKeys: in.Permissions,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.stores.Roles.Create(ctx, role); err != nil {
		switch {
		case errors.Is(err, store.ErrRoleAlreadyExists):
			return nil, conflict("role")
		case errors.Is(err, store.ErrPermissionNotFound):
			return nil, invalid("permissions", "unknown permission")
		}
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/admin/roles")

	return role, nil
}

// UpdateRole replaces the name, description and permissions of a role. The
// Owner role keeps its name and always grants the whole catalog.
func (s *Service) UpdateRole(ctx context.Context, ac *auth.AuthContext, roleID uuid.UUID, in RoleInput) (result *models.Role, err error) {
	defer s.observe(ctx, "updateRole", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermRolesManage); err != nil {
		return nil, err
	}
	if err := s.validateRole(&in); err != nil {
		return nil, err
	}

	role, err := s.role(ctx, ac.OrgID, roleID)
	if err != nil {
		return nil, err
	}

	if role.IsOwner() {
		if in.Name != models.RoleOwner {
			return nil, ErrOwnerRoleProtected
		}
		in.Permissions = s.catalog.Keys()
	} else if in.Name == models.RoleOwner {
		return nil, conflict("role")
	}

	role.Name = in.Name
	role.Description = in.Description
	role.PermissionKeys = in.Permissions

	if err := s.stores.Roles.Update(ctx, role); err != nil {
		switch {
		case errors.Is(err, store.ErrRoleNotFound):
			return nil, notFound("role")
		case errors.Is(err, store.ErrRoleAlreadyExists):
			return nil, conflict("role")
		case errors.Is(err, store.ErrPermissionNotFound):
			return nil, invalid("permissions", "unknown permission")
		}
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/admin/roles")

	return role, nil
}

// DeleteRole deletes a role of the caller's organization and its assignments.
func (s *Service) DeleteRole(ctx context.Context, ac *auth.AuthContext, roleID uuid.UUID) (err error) {
	defer s.observe(ctx, "deleteRole", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermRolesManage); err != nil {
		return err
	}

	role, err := s.role(ctx, ac.OrgID, roleID)
	if err != nil {
		return err
	}
	if role.IsOwner() {
		return ErrOwnerRoleProtected
	}

	if err := s.stores.Roles.Delete(ctx, ac.OrgID, roleID); err != nil {
		if errors.Is(err, store.ErrRoleNotFound) {
			return notFound("role")
		}
		return fmt.Errorf("failed to delete role: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/admin/roles", "/admin/users")

	return nil
}
