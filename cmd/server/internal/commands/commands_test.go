package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineFlags(t *testing.T) {
	f := LineFlags{ChannelID: "1001", ChannelSecret: "secret"}
	require.False(t, f.loginEnabled())
	require.Equal(t, []string{"1001"}, f.channelIDs())

	f.CallbackURL = "https://hr.example.com/auth/callback"
	f.LIFFChannelID = "2002"
	require.True(t, f.loginEnabled())
	require.Equal(t, []string{"1001", "2002"}, f.channelIDs())
}

func TestOpenBackendMemory(t *testing.T) {
	cmd := &ServeCmd{StoreType: "memory", SessionStore: "memory"}

	backend, err := cmd.openBackend(context.Background())
	require.NoError(t, err)
	defer backend.Close()

	require.NotNil(t, backend.actions.Organizations)
	require.NotNil(t, backend.actions.Positions)
	require.NotNil(t, backend.identities)
	require.NotNil(t, backend.sessions)
}

func TestOpenBackendPostgresSessionsNeedPostgresStore(t *testing.T) {
	cmd := &ServeCmd{StoreType: "memory", SessionStore: "postgres"}

	_, err := cmd.openBackend(context.Background())
	require.ErrorContains(t, err, "requires --store-type=postgres")
}

func TestPostgresFlagsRequireConnString(t *testing.T) {
	_, err := (&PostgresStoreFlags{}).connect(context.Background())
	require.ErrorContains(t, err, "connection string is required")
}
