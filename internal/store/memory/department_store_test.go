package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

func newTestDepartment(t *testing.T, orgID uuid.UUID, name string) *models.Department {
	t.Helper()

	departmentID, err := uuid.NewV7()
	require.NoError(t, err)

	now := time.Now()
	return &models.Department{
		DepartmentID: departmentID,
		OrgID:        orgID,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestDepartmentStore_ListIsolatedByOrg(t *testing.T) {
	st := NewDepartmentStore()
	ctx := context.Background()
	orgA := uuid.New()
	orgB := uuid.New()

	require.NoError(t, st.Create(ctx, newTestDepartment(t, orgA, "Sales")))
	require.NoError(t, st.Create(ctx, newTestDepartment(t, orgA, "Engineering")))
	require.NoError(t, st.Create(ctx, newTestDepartment(t, orgB, "Finance")))

	list, err := st.ListByOrg(ctx, orgA)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "Engineering", list[0].Name)
	for _, d := range list {
		require.Equal(t, orgA, d.OrgID)
	}
}

func TestDepartmentStore_CrossTenantWrites(t *testing.T) {
	st := NewDepartmentStore()
	ctx := context.Background()
	orgA := uuid.New()

	d := newTestDepartment(t, orgA, "Sales")
	require.NoError(t, st.Create(ctx, d))

	err := st.Delete(ctx, uuid.New(), d.DepartmentID)
	require.Equal(t, store.ErrDepartmentNotFound, err)

	update := *d
	update.OrgID = uuid.New()
	update.Name = "Renamed"
	require.Equal(t, store.ErrDepartmentNotFound, st.Update(ctx, &update))

	retrieved, err := st.Get(ctx, orgA, d.DepartmentID)
	require.NoError(t, err)
	require.Equal(t, "Sales", retrieved.Name)
}

func TestDepartmentStore_DeleteDetachesChildren(t *testing.T) {
	st := NewDepartmentStore()
	ctx := context.Background()
	orgID := uuid.New()

	parent := newTestDepartment(t, orgID, "Operations")
	child := newTestDepartment(t, orgID, "Logistics")
	child.ParentID = &parent.DepartmentID
	require.NoError(t, st.Create(ctx, parent))
	require.NoError(t, st.Create(ctx, child))

	require.NoError(t, st.Delete(ctx, orgID, parent.DepartmentID))

	retrieved, err := st.Get(ctx, orgID, child.DepartmentID)
	require.NoError(t, err)
	require.Nil(t, retrieved.ParentID)
}

func TestPositionStore_ListByDepartment(t *testing.T) {
	st := NewPositionStore()
	ctx := context.Background()
	orgID := uuid.New()
	deptID := uuid.New()
	now := time.Now()

	require.NoError(t, st.Create(ctx, &models.Position{PositionID: uuid.New(), OrgID: orgID, DepartmentID: &deptID, Name: "Engineer", Level: 3, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, st.Create(ctx, &models.Position{PositionID: uuid.New(), OrgID: orgID, DepartmentID: &deptID, Name: "Lead", Level: 2, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, st.Create(ctx, &models.Position{PositionID: uuid.New(), OrgID: orgID, Name: "Receptionist", Level: 4, CreatedAt: now, UpdatedAt: now}))

	all, err := st.ListByOrg(ctx, orgID, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)

	inDept, err := st.ListByOrg(ctx, orgID, &deptID)
	require.NoError(t, err)
	require.Len(t, inDept, 2)
	require.Equal(t, "Lead", inDept[0].Name)

	_, err = st.Get(ctx, uuid.New(), inDept[0].PositionID)
	require.Equal(t, store.ErrPositionNotFound, err)
}
