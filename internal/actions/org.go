package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/auth"
	"github.com/wolfeidau/hrdesk/internal/invite"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

const maxOrgNameLength = 200

// Onboarding is the result of creating or joining an organization.
type Onboarding struct {
	Organization *models.Organization `json:"organization"`
	Profile      *models.Profile      `json:"profile"`
}

// requireNewcomer checks the caller is authenticated but not yet a member.
func requireNewcomer(ac *auth.AuthContext) error {
	if ac == nil || ac.PrincipalID == uuid.Nil || ac.Identity == nil {
		return auth.ErrNotAuthenticated
	}
	if ac.HasTenant() {
		return invite.ErrAlreadyMember
	}
	return nil
}

// CreateOrg creates an organization with the caller as its first Owner. The
// steps run in order: organization, profile, default roles, Owner assignment.
// A failed profile insert removes the organization again; failures after that
// are logged and the organization is kept.
func (s *Service) CreateOrg(ctx context.Context, ac *auth.AuthContext, name string) (result *Onboarding, err error) {
	defer s.observe(ctx, "createOrg", time.Now(), &err)

	if err := requireNewcomer(ac); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "organization name is required")
	}
	if len(name) > maxOrgNameLength {
		return nil, invalid("name", fmt.Sprintf("must be at most %d characters", maxOrgNameLength))
	}

	// The AuthContext may be stale if another tab finished onboarding.
	if _, err := s.stores.Profiles.Get(ctx, ac.PrincipalID); err == nil {
		return nil, invite.ErrAlreadyMember
	} else if !errors.Is(err, store.ErrProfileNotFound) {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	orgID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate organization ID: %w", err)
	}

	now := s.now()
	org := &models.Organization{
		OrgID:     orgID,
		Name:      name,
		CreatedBy: ac.PrincipalID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.stores.Organizations.Create(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	profile := models.NewProfile(ac.Identity, orgID, now)
	if err := s.stores.Profiles.Create(ctx, profile); err != nil {
		if delErr := s.stores.Organizations.Delete(ctx, orgID); delErr != nil {
			log.Ctx(ctx).Error().Err(delErr).Str("org_id", orgID.String()).Msg("Failed to remove organization after profile failure")
		}
		if errors.Is(err, store.ErrProfileAlreadyExists) {
			return nil, invite.ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	s.seedOwner(ctx, orgID, ac.PrincipalID)

	log.Ctx(ctx).Info().
		Str("org_id", orgID.String()).
		Str("principal_id", ac.PrincipalID.String()).
		Msg("Organization created")

	s.invalidator.Invalidate(ctx, "/onboarding")

	return &Onboarding{Organization: org, Profile: profile}, nil
}

// seedOwner seeds the default roles and assigns Owner. Errors are logged only:
// the organization is usable and an Owner can be repaired later.
func (s *Service) seedOwner(ctx context.Context, orgID, principalID uuid.UUID) {
	seeded, err := s.catalog.SeedRoles(ctx, s.stores.Roles, orgID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("org_id", orgID.String()).Msg("Failed to seed default roles")
	}

	owner, ok := seeded[models.RoleOwner]
	if !ok {
		return
	}

	if err := s.stores.Roles.AssignToUser(ctx, orgID, principalID, owner.RoleID); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("org_id", orgID.String()).
			Str("principal_id", principalID.String()).
			Msg("Failed to assign Owner role")
	}
}

// RedeemInviteCode joins the caller to the organization of an invite code.
func (s *Service) RedeemInviteCode(ctx context.Context, ac *auth.AuthContext, code string) (result *Onboarding, err error) {
	defer s.observe(ctx, "redeemInviteCode", time.Now(), &err)

	if err := requireNewcomer(ac); err != nil {
		return nil, err
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, invalid("code", "invite code is required")
	}

	profile, err := s.ledger.RedeemOrgInvite(ctx, ac.Identity, code)
	if err != nil {
		return nil, err
	}

	org, err := s.stores.Organizations.Get(ctx, profile.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/onboarding")

	return &Onboarding{Organization: org, Profile: profile}, nil
}

// GetOrg returns the caller's organization.
func (s *Service) GetOrg(ctx context.Context, ac *auth.AuthContext) (result *models.Organization, err error) {
	defer s.observe(ctx, "getOrg", time.Now(), &err)

	if err := auth.RequireMember(ac); err != nil {
		return nil, err
	}

	org, err := s.stores.Organizations.Get(ctx, ac.OrgID)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, notFound("organization")
		}
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	return org, nil
}

// UpdateOrg renames the caller's organization.
func (s *Service) UpdateOrg(ctx context.Context, ac *auth.AuthContext, name string) (result *models.Organization, err error) {
	defer s.observe(ctx, "updateOrg", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermOrgManage); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "organization name is required")
	}
	if len(name) > maxOrgNameLength {
		return nil, invalid("name", fmt.Sprintf("must be at most %d characters", maxOrgNameLength))
	}

	org, err := s.stores.Organizations.Rename(ctx, ac.OrgID, name)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, notFound("organization")
		}
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/admin/settings")

	return org, nil
}
