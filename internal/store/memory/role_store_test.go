package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

func newTestRoleStore(t *testing.T) *RoleStore {
	t.Helper()

	st := NewRoleStore()
	err := st.SyncPermissions(context.Background(), []*models.Permission{
		{Key: "departments.manage", Description: "Manage departments"},
		{Key: "employees.read", Description: "Read employees"},
		{Key: "employees.create", Description: "Create employees"},
	})
	require.NoError(t, err)

	return st
}

func newTestRole(t *testing.T, orgID uuid.UUID, name string, keys ...string) *models.Role {
	t.Helper()

	roleID, err := uuid.NewV7()
	require.NoError(t, err)

	now := time.Now()
	return &models.Role{
		RoleID:         roleID,
		OrgID:          orgID,
		Name:           name,
		PermissionKeys: keys,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestRoleStore_Create(t *testing.T) {
	t.Run("create role", func(t *testing.T) {
		st := newTestRoleStore(t)
		ctx := context.Background()
		orgID := uuid.New()

		role := newTestRole(t, orgID, "Manager", "employees.read")
		require.NoError(t, st.Create(ctx, role))

		retrieved, err := st.Get(ctx, orgID, role.RoleID)
		require.NoError(t, err)
		require.Equal(t, "Manager", retrieved.Name)
		require.Equal(t, []string{"employees.read"}, retrieved.PermissionKeys)
	})

	t.Run("duplicate name in same org", func(t *testing.T) {
		st := newTestRoleStore(t)
		ctx := context.Background()
		orgID := uuid.New()

		require.NoError(t, st.Create(ctx, newTestRole(t, orgID, "Manager")))

		err := st.Create(ctx, newTestRole(t, orgID, "Manager"))
		require.Equal(t, store.ErrRoleAlreadyExists, err)
	})

	t.Run("same name in different orgs", func(t *testing.T) {
		st := newTestRoleStore(t)
		ctx := context.Background()

		require.NoError(t, st.Create(ctx, newTestRole(t, uuid.New(), "Manager")))
		require.NoError(t, st.Create(ctx, newTestRole(t, uuid.New(), "Manager")))
	})

	t.Run("unknown permission key", func(t *testing.T) {
		st := newTestRoleStore(t)

		err := st.Create(context.Background(), newTestRole(t, uuid.New(), "Bad", "payroll.run"))
		require.Equal(t, store.ErrPermissionNotFound, err)
	})
}

func TestRoleStore_GetOtherOrg(t *testing.T) {
	st := newTestRoleStore(t)
	ctx := context.Background()

	role := newTestRole(t, uuid.New(), "Manager")
	require.NoError(t, st.Create(ctx, role))

	_, err := st.Get(ctx, uuid.New(), role.RoleID)
	require.Equal(t, store.ErrRoleNotFound, err)

	err = st.Delete(ctx, uuid.New(), role.RoleID)
	require.Equal(t, store.ErrRoleNotFound, err)
}

func TestRoleStore_PermissionKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("no roles grants nothing", func(t *testing.T) {
		st := newTestRoleStore(t)

		keys, err := st.PermissionKeys(ctx, uuid.New(), uuid.New())
		require.NoError(t, err)
		require.Empty(t, keys)
	})

	t.Run("union across roles", func(t *testing.T) {
		st := newTestRoleStore(t)
		orgID := uuid.New()
		principalID := uuid.New()

		r1 := newTestRole(t, orgID, "Reader", "employees.read")
		r2 := newTestRole(t, orgID, "Builder", "employees.read", "departments.manage")
		require.NoError(t, st.Create(ctx, r1))
		require.NoError(t, st.Create(ctx, r2))
		require.NoError(t, st.AssignToUser(ctx, orgID, principalID, r1.RoleID))
		require.NoError(t, st.AssignToUser(ctx, orgID, principalID, r2.RoleID))

		keys, err := st.PermissionKeys(ctx, orgID, principalID)
		require.NoError(t, err)
		require.Equal(t, []string{"departments.manage", "employees.read"}, keys)
	})

	t.Run("roles from another org never contribute", func(t *testing.T) {
		st := newTestRoleStore(t)
		orgA := uuid.New()
		orgB := uuid.New()
		principalID := uuid.New()

		foreign := newTestRole(t, orgB, "Admin", "employees.create")
		require.NoError(t, st.Create(ctx, foreign))
		require.NoError(t, st.AssignToUser(ctx, orgB, principalID, foreign.RoleID))

		keys, err := st.PermissionKeys(ctx, orgA, principalID)
		require.NoError(t, err)
		require.Empty(t, keys)
	})

	t.Run("assigning a role from another org fails", func(t *testing.T) {
		st := newTestRoleStore(t)
		role := newTestRole(t, uuid.New(), "Admin")
		require.NoError(t, st.Create(ctx, role))

		err := st.AssignToUser(ctx, uuid.New(), uuid.New(), role.RoleID)
		require.Equal(t, store.ErrRoleNotFound, err)
	})
}

func TestRoleStore_DeleteRemovesAssignments(t *testing.T) {
	st := newTestRoleStore(t)
	ctx := context.Background()
	orgID := uuid.New()
	principalID := uuid.New()

	role := newTestRole(t, orgID, "Reader", "employees.read")
	require.NoError(t, st.Create(ctx, role))
	require.NoError(t, st.AssignToUser(ctx, orgID, principalID, role.RoleID))

	count, err := st.CountMembers(ctx, orgID, role.RoleID)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, st.Delete(ctx, orgID, role.RoleID))

	roles, err := st.ListUserRoles(ctx, orgID, principalID)
	require.NoError(t, err)
	require.Empty(t, roles)
}

func TestRoleStore_RemoveFromUser(t *testing.T) {
	st := newTestRoleStore(t)
	ctx := context.Background()
	orgID := uuid.New()
	principalID := uuid.New()

	role := newTestRole(t, orgID, "Reader", "employees.read")
	require.NoError(t, st.Create(ctx, role))

	err := st.RemoveFromUser(ctx, orgID, principalID, role.RoleID)
	require.Equal(t, store.ErrRoleAssignmentNotFound, err)

	require.NoError(t, st.AssignToUser(ctx, orgID, principalID, role.RoleID))
	require.NoError(t, st.AssignToUser(ctx, orgID, principalID, role.RoleID))
	require.NoError(t, st.RemoveFromUser(ctx, orgID, principalID, role.RoleID))

	keys, err := st.PermissionKeys(ctx, orgID, principalID)
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestRoleStore_RemoveFromUserUnlessLast(t *testing.T) {
	st := newTestRoleStore(t)
	ctx := context.Background()
	orgID := uuid.New()
	first, second := uuid.New(), uuid.New()

	role := newTestRole(t, orgID, "Owner", "employees.read")
	require.NoError(t, st.Create(ctx, role))

	err := st.RemoveFromUserUnlessLast(ctx, orgID, first, role.RoleID)
	require.Equal(t, store.ErrRoleAssignmentNotFound, err)

	require.NoError(t, st.AssignToUser(ctx, orgID, first, role.RoleID))
	err = st.RemoveFromUserUnlessLast(ctx, orgID, first, role.RoleID)
	require.Equal(t, store.ErrLastRoleHolder, err)

	err = st.RemoveFromUserUnlessLast(ctx, uuid.New(), first, role.RoleID)
	require.Equal(t, store.ErrRoleAssignmentNotFound, err)

	require.NoError(t, st.AssignToUser(ctx, orgID, second, role.RoleID))
	require.NoError(t, st.RemoveFromUserUnlessLast(ctx, orgID, first, role.RoleID))

	count, err := st.CountMembers(ctx, orgID, role.RoleID)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRoleStore_RemoveFromUserUnlessLastConcurrent(t *testing.T) {
	ctx := context.Background()

	for range 50 {
		st := newTestRoleStore(t)
		orgID := uuid.New()
		holders := []uuid.UUID{uuid.New(), uuid.New()}

		role := newTestRole(t, orgID, "Owner", "employees.read")
		require.NoError(t, st.Create(ctx, role))
		for _, p := range holders {
			require.NoError(t, st.AssignToUser(ctx, orgID, p, role.RoleID))
		}

		var wg sync.WaitGroup
		for _, p := range holders {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = st.RemoveFromUserUnlessLast(ctx, orgID, p, role.RoleID)
			}()
		}
		wg.Wait()

		count, err := st.CountMembers(ctx, orgID, role.RoleID)
		require.NoError(t, err)
		require.Equal(t, 1, count)
	}
}
