package actions

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/auth"
	"github.com/wolfeidau/hrdesk/internal/invite"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

// codeAttempts bounds retries when a generated invite code collides.
const codeAttempts = 3

// Me describes the caller for the console header and the LIFF app.
type Me struct {
	Identity     *models.Identity     `json:"identity"`
	Profile      *models.Profile      `json:"profile,omitempty"`
	Organization *models.Organization `json:"organization,omitempty"`
	Permissions  []string             `json:"permissions"`
}

// User is a member of the organization together with the roles it holds.
type User struct {
	*models.Profile
	Roles []*models.Role `json:"roles"`
}

// InviteCodeInput carries the fields of a new organization invite code.
type InviteCodeInput struct {
	RoleID    *uuid.UUID `json:"role_id,omitempty"`
	MaxUses   int        `json:"max_uses"` // 0 means models.DefaultInviteMaxUses
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// GetMe returns the caller's identity, membership and effective permissions.
// Callers that have not finished onboarding get an empty permission set.
func (s *Service) GetMe(ctx context.Context, ac *auth.AuthContext) (result *Me, err error) {
	defer s.observe(ctx, "getMe", time.Now(), &err)

	if ac == nil || ac.PrincipalID == uuid.Nil {
		return nil, auth.ErrNotAuthenticated
	}

	me := &Me{Identity: ac.Identity, Profile: ac.Profile, Permissions: []string{}}
	if !ac.HasTenant() {
		return me, nil
	}

	org, err := s.stores.Organizations.Get(ctx, ac.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}
	me.Organization = org

	permissions, err := s.gate.Permissions(ctx, ac.PrincipalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}
	if permissions != nil {
		me.Permissions = permissions
	}

	return me, nil
}

// ListUsers returns the members of the caller's organization with their roles.
func (s *Service) ListUsers(ctx context.Context, ac *auth.AuthContext) (result []*User, err error) {
	defer s.observe(ctx, "listUsers", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermUsersManage); err != nil {
		return nil, err
	}

	profiles, err := s.stores.Profiles.ListByOrg(ctx, ac.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]*User, 0, len(profiles))
	for _, p := range profiles {
		roles, err := s.stores.Roles.ListUserRoles(ctx, ac.OrgID, p.PrincipalID)
		if err != nil {
			return nil, fmt.Errorf("failed to list roles of user: %w", err)
		}
		users = append(users, &User{Profile: p, Roles: roles})
	}

	return users, nil
}

// member loads a profile and checks it belongs to orgID.
func (s *Service) member(ctx context.Context, orgID, principalID uuid.UUID) (*models.Profile, error) {
	profile, err := s.stores.Profiles.Get(ctx, principalID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return nil, notFound("user")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if profile.OrgID != orgID {
		return nil, notFound("user")
	}
	return profile, nil
}

// AssignRoleToUser grants a role of the caller's organization to a member.
func (s *Service) AssignRoleToUser(ctx context.Context, ac *auth.AuthContext, userID, roleID uuid.UUID) (err error) {
	defer s.observe(ctx, "assignRoleToUser", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermUsersManage); err != nil {
		return err
	}
	if _, err := s.member(ctx, ac.OrgID, userID); err != nil {
		return err
	}
	if _, err := s.role(ctx, ac.OrgID, roleID); err != nil {
		return err
	}

	if err := s.stores.Roles.AssignToUser(ctx, ac.OrgID, userID, roleID); err != nil {
		if errors.Is(err, store.ErrRoleNotFound) {
			return notFound("role")
		}
		return fmt.Errorf("failed to assign role: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/admin/users")

	return nil
}

// guardLastOwner rejects removing the only holder of the Owner role.
func (s *Service) guardLastOwner(ctx context.Context, orgID, userID uuid.UUID, role *models.Role) error {
	if !role.IsOwner() {
		return nil
	}

	holders, err := s.stores.Roles.CountMembers(ctx, orgID, role.RoleID)
	if err != nil {
		return fmt.Errorf("failed to count owners: %w", err)
	}
	if holders > 1 {
		return nil
	}

	held, err := s.stores.Roles.ListUserRoles(ctx, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to list roles of user: %w", err)
	}
	for _, r := range held {
		if r.RoleID == role.RoleID {
			return ErrLastOwner
		}
	}

	return nil
}

// removeRole revokes one assignment. Owner assignments go through the store's
// last-holder check so two Owners removing each other cannot both succeed.
func (s *Service) removeRole(ctx context.Context, orgID, userID uuid.UUID, role *models.Role) error {
	if !role.IsOwner() {
		return s.stores.Roles.RemoveFromUser(ctx, orgID, userID, role.RoleID)
	}

	err := s.stores.Roles.RemoveFromUserUnlessLast(ctx, orgID, userID, role.RoleID)
	if errors.Is(err, store.ErrLastRoleHolder) {
		return ErrLastOwner
	}
	return err
}

// RemoveRoleFromUser revokes a role from a member of the caller's organization.
func (s *Service) RemoveRoleFromUser(ctx context.Context, ac *auth.AuthContext, userID, roleID uuid.UUID) (err error) {
	defer s.observe(ctx, "removeRoleFromUser", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermUsersManage); err != nil {
		return err
	}
	if _, err := s.member(ctx, ac.OrgID, userID); err != nil {
		return err
	}

	role, err := s.role(ctx, ac.OrgID, roleID)
	if err != nil {
		return err
	}
	if err := s.guardLastOwner(ctx, ac.OrgID, userID, role); err != nil {
		return err
	}

	if err := s.removeRole(ctx, ac.OrgID, userID, role); err != nil {
		switch {
		case errors.Is(err, store.ErrRoleAssignmentNotFound):
			return notFound("role assignment")
		case errors.Is(err, ErrLastOwner):
			return err
		}
		return fmt.Errorf("failed to remove role: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/admin/users")

	return nil
}

// UpdateUserStatus suspends or reactivates a member of the caller's organization.
func (s *Service) UpdateUserStatus(ctx context.Context, ac *auth.AuthContext, userID uuid.UUID, status string) (err error) {
	defer s.observe(ctx, "updateUserStatus", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermUsersManage); err != nil {
		return err
	}

	switch status {
	case models.ProfileStatusActive, models.ProfileStatusSuspended:
	default:
		return invalid("status", "must be active or suspended")
	}
	if status == models.ProfileStatusSuspended && userID == ac.PrincipalID {
		return ErrCannotSuspendSelf
	}

	if err := s.stores.Profiles.UpdateStatus(ctx, ac.OrgID, userID, status); err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return notFound("user")
		}
		return fmt.Errorf("failed to update user status: %w", err)
	}
	if status == models.ProfileStatusSuspended {
		s.revokeSessions(ctx, userID)
	}

	s.invalidator.Invalidate(ctx, "/admin/users")

	return nil
}

// RemoveUser removes a member from the caller's organization. The identity is
// kept so the person can sign in again and join another organization.
func (s *Service) RemoveUser(ctx context.Context, ac *auth.AuthContext, userID uuid.UUID) (err error) {
	defer s.observe(ctx, "removeUser", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermUsersManage); err != nil {
		return err
	}
	if userID == ac.PrincipalID {
		return invalid("user_id", "you cannot remove yourself")
	}
	if _, err := s.member(ctx, ac.OrgID, userID); err != nil {
		return err
	}

	held, err := s.stores.Roles.ListUserRoles(ctx, ac.OrgID, userID)
	if err != nil {
		return fmt.Errorf("failed to list roles of user: %w", err)
	}
	for _, role := range held {
		if err := s.guardLastOwner(ctx, ac.OrgID, userID, role); err != nil {
			return err
		}
	}
	// Owner first, so a last-Owner refusal leaves the other roles in place.
	slices.SortStableFunc(held, func(a, b *models.Role) int {
		switch {
		case a.IsOwner() == b.IsOwner():
			return 0
		case a.IsOwner():
			return -1
		}
		return 1
	})
	for _, role := range held {
		err := s.removeRole(ctx, ac.OrgID, userID, role)
		switch {
		case err == nil, errors.Is(err, store.ErrRoleAssignmentNotFound):
		case errors.Is(err, ErrLastOwner):
			return err
		default:
			return fmt.Errorf("failed to remove role: %w", err)
		}
	}

	if err := s.stores.Profiles.Delete(ctx, ac.OrgID, userID); err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			return notFound("user")
		}
		return fmt.Errorf("failed to remove user: %w", err)
	}
	s.revokeSessions(ctx, userID)

	s.invalidator.Invalidate(ctx, "/admin/users")

	return nil
}

// ListInviteCodes returns the invite codes of the caller's organization.
func (s *Service) ListInviteCodes(ctx context.Context, ac *auth.AuthContext) (result []*models.InviteCode, err error) {
	defer s.observe(ctx, "listInviteCodes", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermInvitesManage); err != nil {
		return nil, err
	}

	invites, err := s.stores.Invites.ListByOrg(ctx, ac.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invite codes: %w", err)
	}

	return invites, nil
}

// CreateInviteCode creates an organization invite code, optionally granting a
// role of the caller's organization on redemption.
func (s *Service) CreateInviteCode(ctx context.Context, ac *auth.AuthContext, in InviteCodeInput) (result *models.InviteCode, err error) {
	defer s.observe(ctx, "createInviteCode", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermInvitesManage); err != nil {
		return nil, err
	}

	if in.MaxUses == 0 {
		in.MaxUses = models.DefaultInviteMaxUses
	}
	if in.MaxUses < 1 {
		return nil, invalid("max_uses", "must be at least 1")
	}

	now := s.now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, invalid("expires_at", "must be in the future")
	}

	if in.RoleID != nil {
		if _, err := s.role(ctx, ac.OrgID, *in.RoleID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, invalid("role_id", "role does not exist")
			}
			return nil, err
		}
	}

	inviteID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invite ID: %w", err)
	}

	code := &models.InviteCode{
		InviteID:  inviteID,
		OrgID:     ac.OrgID,
		RoleID:    in.RoleID,
		MaxUses:   in.MaxUses,
		ExpiresAt: in.ExpiresAt,
		CreatedBy: ac.PrincipalID,
		CreatedAt: now,
	}

	for attempt := 1; ; attempt++ {
		code.Code, err = invite.NewCode()
		if err != nil {
			return nil, err
		}

		err = s.stores.Invites.Create(ctx, code)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrInviteCodeAlreadyExists) || attempt == codeAttempts {
			return nil, fmt.Errorf("failed to create invite code: %w", err)
		}
	}

	s.invalidator.Invalidate(ctx, "/admin/users")

	return code, nil
}

// DeleteInviteCode revokes an invite code of the caller's organization.
func (s *Service) DeleteInviteCode(ctx context.Context, ac *auth.AuthContext, inviteID uuid.UUID) (err error) {
	defer s.observe(ctx, "deleteInviteCode", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermInvitesManage); err != nil {
		return err
	}

	if err := s.stores.Invites.Delete(ctx, ac.OrgID, inviteID); err != nil {
		if errors.Is(err, store.ErrInviteCodeNotFound) {
			return notFound("invite code")
		}
		return fmt.Errorf("failed to delete invite code: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/admin/users")

	return nil
}
