package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

func newTestInvite(t *testing.T, code string, maxUses int) *models.InviteCode {
	t.Helper()

	inviteID, err := uuid.NewV7()
	require.NoError(t, err)

	return &models.InviteCode{
		InviteID:  inviteID,
		Code:      code,
		OrgID:     uuid.New(),
		MaxUses:   maxUses,
		CreatedBy: uuid.New(),
		CreatedAt: time.Now(),
	}
}

func TestInviteCodeStore_Create(t *testing.T) {
	st := NewInviteCodeStore()
	ctx := context.Background()

	invite := newTestInvite(t, "ABC123", 2)
	require.NoError(t, st.Create(ctx, invite))

	err := st.Create(ctx, newTestInvite(t, "ABC123", 1))
	require.Equal(t, store.ErrInviteCodeAlreadyExists, err)

	retrieved, err := st.GetByCode(ctx, "ABC123")
	require.NoError(t, err)
	require.Equal(t, invite.InviteID, retrieved.InviteID)
	require.Equal(t, 2, retrieved.MaxUses)

	_, err = st.GetByCode(ctx, "NOPE")
	require.Equal(t, store.ErrInviteCodeNotFound, err)
}

func TestInviteCodeStore_IncrementUsedCount(t *testing.T) {
	ctx := context.Background()

	t.Run("stale observed count conflicts", func(t *testing.T) {
		st := NewInviteCodeStore()
		invite := newTestInvite(t, "ABC123", 2)
		require.NoError(t, st.Create(ctx, invite))

		require.NoError(t, st.IncrementUsedCount(ctx, invite.InviteID, 0))

		err := st.IncrementUsedCount(ctx, invite.InviteID, 0)
		require.Equal(t, store.ErrInviteCodeConflict, err)

		require.NoError(t, st.IncrementUsedCount(ctx, invite.InviteID, 1))

		err = st.IncrementUsedCount(ctx, invite.InviteID, 2)
		require.Equal(t, store.ErrInviteCodeConflict, err, "exhausted code must not increment")
	})

	t.Run("concurrent increments on a single use code", func(t *testing.T) {
		st := NewInviteCodeStore()
		invite := newTestInvite(t, "ONCE", 1)
		require.NoError(t, st.Create(ctx, invite))

		var wg sync.WaitGroup
		var successes atomic.Int32
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := st.IncrementUsedCount(ctx, invite.InviteID, 0); err == nil {
					successes.Add(1)
				}
			}()
		}
		wg.Wait()

		require.Equal(t, int32(1), successes.Load())

		retrieved, err := st.GetByCode(ctx, "ONCE")
		require.NoError(t, err)
		require.Equal(t, 1, retrieved.UsedCount)
	})

	t.Run("release gives a use back", func(t *testing.T) {
		st := NewInviteCodeStore()
		invite := newTestInvite(t, "BACK", 1)
		require.NoError(t, st.Create(ctx, invite))

		require.NoError(t, st.IncrementUsedCount(ctx, invite.InviteID, 0))
		require.NoError(t, st.ReleaseUse(ctx, invite.InviteID))

		retrieved, err := st.GetByCode(ctx, "BACK")
		require.NoError(t, err)
		require.Equal(t, 0, retrieved.UsedCount)
	})
}

func TestInviteCodeStore_Delete(t *testing.T) {
	st := NewInviteCodeStore()
	ctx := context.Background()

	invite := newTestInvite(t, "GONE", 1)
	require.NoError(t, st.Create(ctx, invite))

	err := st.Delete(ctx, uuid.New(), invite.InviteID)
	require.Equal(t, store.ErrInviteCodeNotFound, err)

	require.NoError(t, st.Delete(ctx, invite.OrgID, invite.InviteID))

	_, err = st.GetByCode(ctx, "GONE")
	require.Equal(t, store.ErrInviteCodeNotFound, err)
}
