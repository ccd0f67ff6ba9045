package login

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/line"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

// SyncLineIdentity finds or creates the identity of a LINE user and refreshes
// its display name, avatar and last login time from the verified profile.
func SyncLineIdentity(ctx context.Context, identities store.IdentityStore, profile *line.Profile, email string) (*models.Identity, error) {
	if profile == nil || profile.UserID == "" {
		return nil, fmt.Errorf("LINE profile is missing the user ID")
	}

	now := time.Now()

	identity, err := identities.GetBySubject(ctx, models.AuthProviderLINE, profile.UserID)
	switch {
	case errors.Is(err, store.ErrIdentityNotFound):
		identity, err = createLineIdentity(ctx, identities, profile, email, now)
		if errors.Is(err, store.ErrIdentityAlreadyExists) {
			// lost a race with a concurrent first login
			identity, err = identities.GetBySubject(ctx, models.AuthProviderLINE, profile.UserID)
			if err != nil {
				return nil, err
			}
			return identity, touchIdentity(ctx, identities, identity, profile, email, now)
		}
		return identity, err
	case err != nil:
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	return identity, touchIdentity(ctx, identities, identity, profile, email, now)
}

func createLineIdentity(ctx context.Context, identities store.IdentityStore, profile *line.Profile, email string, now time.Time) (*models.Identity, error) {
	principalID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate principal ID: %w", err)
	}

	identity := &models.Identity{
		PrincipalID: principalID,
		Provider:    models.AuthProviderLINE,
		Subject:     profile.UserID,
		DisplayName: profile.DisplayName,
		AvatarURL:   optional(profile.PictureURL),
		Email:       optional(email),
		CreatedAt:   now,
		UpdatedAt:   now,
		LastLoginAt: &now,
	}

	if err := identities.Create(ctx, identity); err != nil {
		return nil, err
	}

	log.Info().
		Str("principal_id", principalID.String()).
		Str("line_user_id", profile.UserID).
		Msg("Created LINE identity")

	return identity, nil
}

func touchIdentity(ctx context.Context, identities store.IdentityStore, identity *models.Identity, profile *line.Profile, email string, now time.Time) error {
	if profile.DisplayName != "" {
		identity.DisplayName = profile.DisplayName
	}
	if profile.PictureURL != "" {
		identity.AvatarURL = optional(profile.PictureURL)
	}
	if email != "" {
		identity.Email = optional(email)
	}
	identity.LastLoginAt = &now
	identity.UpdatedAt = now

	if err := identities.Update(ctx, identity); err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}

	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
