package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store/memory"
)

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	profiles := memory.NewProfileStore()
	resolver := NewResolver(profiles)

	orgID := uuid.Must(uuid.NewV7())
	member := &models.Identity{PrincipalID: uuid.Must(uuid.NewV7()), Provider: models.AuthProviderLINE, Subject: "U1"}
	require.NoError(t, profiles.Create(ctx, models.NewProfile(member, orgID, time.Now())))

	t.Run("member resolves to their organization", func(t *testing.T) {
		got, err := resolver.Resolve(ctx, member.PrincipalID)
		require.NoError(t, err)
		require.Equal(t, orgID, got)
	})

	t.Run("principal without profile needs onboarding", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, uuid.Must(uuid.NewV7()))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("suspended member still resolves", func(t *testing.T) {
		require.NoError(t, profiles.UpdateStatus(ctx, orgID, member.PrincipalID, models.ProfileStatusSuspended))

		profile, err := resolver.Profile(ctx, member.PrincipalID)
		require.NoError(t, err)
		require.Equal(t, orgID, profile.OrgID)
		require.True(t, profile.IsSuspended())
	})
}
