package invite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
	"github.com/wolfeidau/hrdesk/internal/store/memory"
)

type ledgerFixture struct {
	ledger    *Ledger
	invites   *memory.InviteCodeStore
	profiles  *memory.ProfileStore
	roles     *memory.RoleStore
	employees *memory.EmployeeStore
	orgID     uuid.UUID
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	f := &ledgerFixture{
		invites:   memory.NewInviteCodeStore(),
		profiles:  memory.NewProfileStore(),
		roles:     memory.NewRoleStore(),
		employees: memory.NewEmployeeStore(),
		orgID:     uuid.Must(uuid.NewV7()),
	}
	f.ledger = NewLedger(f.invites, f.profiles, f.roles, f.employees)
	f.ledger.retryDelay = time.Millisecond

	return f
}

func newIdentity(subject string) *models.Identity {
	return &models.Identity{
		PrincipalID: uuid.Must(uuid.NewV7()),
		Provider:    models.AuthProviderLINE,
		Subject:     subject,
		DisplayName: subject,
	}
}

func (f *ledgerFixture) createInvite(t *testing.T, code string, maxUses int, expiresAt *time.Time, roleID *uuid.UUID) *models.InviteCode {
	t.Helper()

	invite := &models.InviteCode{
		InviteID:  uuid.Must(uuid.NewV7()),
		Code:      code,
		OrgID:     f.orgID,
		RoleID:    roleID,
		MaxUses:   maxUses,
		ExpiresAt: expiresAt,
		CreatedBy: uuid.Must(uuid.NewV7()),
		CreatedAt: time.Now(),
	}
	require.NoError(t, f.invites.Create(context.Background(), invite))

	return invite
}

func (f *ledgerFixture) createPendingEmployee(t *testing.T, orgID uuid.UUID, employeeCode, inviteCode string, expiresAt time.Time) *models.Employee {
	t.Helper()
	ctx := context.Background()

	employee := &models.Employee{
		EmployeeID:     uuid.Must(uuid.NewV7()),
		OrgID:          orgID,
		EmployeeCode:   employeeCode,
		FirstName:      "Somchai",
		LastName:       "Jaidee",
		EmploymentType: models.EmploymentTypeFullTime,
		StartDate:      time.Now(),
		Status:         models.EmployeeStatusPending,
	}
	require.NoError(t, f.employees.Create(ctx, employee))
	require.NoError(t, f.employees.SetInvite(ctx, orgID, employee.EmployeeID, inviteCode, expiresAt, time.Now()))

	return employee
}

func TestRedeemOrgInvite_SequentialUsesUntilExhausted(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.createInvite(t, "ABC123", 2, nil, nil)

	first, err := f.ledger.RedeemOrgInvite(ctx, newIdentity("U1"), "ABC123")
	require.NoError(t, err)
	require.Equal(t, f.orgID, first.OrgID)

	second, err := f.ledger.RedeemOrgInvite(ctx, newIdentity("U2"), "ABC123")
	require.NoError(t, err)
	require.Equal(t, f.orgID, second.OrgID)

	invite, err := f.invites.GetByCode(ctx, "ABC123")
	require.NoError(t, err)
	require.Equal(t, 2, invite.UsedCount)

	_, err = f.ledger.RedeemOrgInvite(ctx, newIdentity("U3"), "ABC123")
	require.ErrorIs(t, err, ErrExhausted)

	members, err := f.profiles.ListByOrg(ctx, f.orgID)
	require.NoError(t, err)
	require.Len(t, members, 2)
}

func TestRedeemOrgInvite_ConcurrentSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.createInvite(t, "ONCE", 1, nil, nil)

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.RedeemOrgInvite(ctx, newIdentity(uuid.NewString()), "ONCE")

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Len(t, failures, attempts-1)
	for _, err := range failures {
		require.True(t, errors.Is(err, ErrConcurrentConflict) || errors.Is(err, ErrExhausted), "unexpected error: %v", err)
	}

	invite, err := f.invites.GetByCode(ctx, "ONCE")
	require.NoError(t, err)
	require.Equal(t, 1, invite.UsedCount)
}

func TestRedeemOrgInvite_Failures(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	past := time.Now().Add(-time.Hour)
	f.createInvite(t, "OLD", 5, &past, nil)

	member := newIdentity("member")
	require.NoError(t, f.profiles.Create(ctx, models.NewProfile(member, f.orgID, time.Now())))
	f.createInvite(t, "OPEN", 5, nil, nil)

	tests := []struct {
		name     string
		identity *models.Identity
		code     string
		want     error
	}{
		{name: "unknown code", identity: newIdentity("a"), code: "NOPE", want: ErrInvalidCode},
		{name: "empty code", identity: newIdentity("b"), code: "", want: ErrInvalidCode},
		{name: "expired with uses left", identity: newIdentity("c"), code: "OLD", want: ErrExpired},
		{name: "already a member", identity: member, code: "OPEN", want: ErrAlreadyMember},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.RedeemOrgInvite(ctx, tt.identity, tt.code)
			require.ErrorIs(t, err, tt.want)
		})
	}

	open, err := f.invites.GetByCode(ctx, "OPEN")
	require.NoError(t, err)
	require.Equal(t, 0, open.UsedCount)
}

func TestRedeemOrgInvite_AssignsRole(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)

	role := &models.Role{RoleID: uuid.Must(uuid.NewV7()), OrgID: f.orgID, Name: "Staff"}
	require.NoError(t, f.roles.Create(ctx, role))
	f.createInvite(t, "STAFF", 1, nil, &role.RoleID)

	identity := newIdentity("staff-1")
	_, err := f.ledger.RedeemOrgInvite(ctx, identity, "STAFF")
	require.NoError(t, err)

	held, err := f.roles.ListUserRoles(ctx, f.orgID, identity.PrincipalID)
	require.NoError(t, err)
	require.Len(t, held, 1)
	require.Equal(t, role.RoleID, held[0].RoleID)
}

type failingProfileStore struct {
	*memory.ProfileStore
}

func (s *failingProfileStore) Create(ctx context.Context, profile *models.Profile) error {
	return errors.New("connection reset")
}

func TestRedeemOrgInvite_ReleasesUseWhenProfileFails(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.ledger.profiles = &failingProfileStore{ProfileStore: f.profiles}
	f.createInvite(t, "RETRY", 1, nil, nil)

	_, err := f.ledger.RedeemOrgInvite(ctx, newIdentity("u"), "RETRY")
	require.ErrorContains(t, err, "connection reset")

	invite, err := f.invites.GetByCode(ctx, "RETRY")
	require.NoError(t, err)
	require.Equal(t, 0, invite.UsedCount)
}

func TestEmployeeInvite_LinkOnce(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	created := f.createPendingEmployee(t, f.orgID, "EMP1", "XYZ9", time.Now().Add(24*time.Hour))

	found, err := f.ledger.LookupEmployeeInvite(ctx, "XYZ9")
	require.NoError(t, err)
	require.Equal(t, created.EmployeeID, found.EmployeeID)

	linked, err := f.ledger.LinkEmployee(ctx, LinkRequest{EmployeeCode: "EMP1", InviteCode: "XYZ9", LineUserID: "line-uid-1"})
	require.NoError(t, err)
	require.Equal(t, models.EmployeeStatusActive, linked.Status)
	require.Equal(t, "line-uid-1", *linked.LineUserID)
	require.Nil(t, linked.InviteCode)

	_, err = f.ledger.LookupEmployeeInvite(ctx, "XYZ9")
	require.ErrorIs(t, err, ErrInvalidCode)

	_, err = f.ledger.LinkEmployee(ctx, LinkRequest{EmployeeCode: "EMP1", InviteCode: "XYZ9", LineUserID: "line-uid-2"})
	require.ErrorIs(t, err, ErrInvalidCode)
}

func TestLinkEmployee_RequiresOwnInviteCode(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	otherOrg := uuid.Must(uuid.NewV7())

	victim := &models.Employee{
		EmployeeID:     uuid.Must(uuid.NewV7()),
		OrgID:          otherOrg,
		FirstName:      "Malee",
		LastName:       "Srisuk",
		EmploymentType: models.EmploymentTypeFullTime,
		StartDate:      time.Now(),
		Status:         models.EmployeeStatusPending,
	}
	require.NoError(t, f.employees.Create(ctx, victim))
	require.Equal(t, "EMP0001", victim.EmployeeCode)

	victimCode, _, err := f.ledger.IssueEmployeeInvite(ctx, otherOrg, victim.EmployeeID, time.Hour)
	require.NoError(t, err)

	f.createPendingEmployee(t, f.orgID, "EMP0002", "MINE", time.Now().Add(time.Hour))

	tests := []struct {
		name       string
		inviteCode string
	}{
		{name: "no invite code", inviteCode: ""},
		{name: "unknown invite code", inviteCode: "GUESS"},
		{name: "another employee's invite code", inviteCode: "MINE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.LinkEmployee(ctx, LinkRequest{
				EmployeeCode: "EMP0001",
				InviteCode:   tt.inviteCode,
				LineUserID:   "someone-else",
			})
			require.ErrorIs(t, err, ErrInvalidCode)
		})
	}

	still, err := f.employees.Get(ctx, otherOrg, victim.EmployeeID)
	require.NoError(t, err)
	require.Equal(t, models.EmployeeStatusPending, still.Status)
	require.Nil(t, still.LineUserID)

	linked, err := f.ledger.LinkEmployee(ctx, LinkRequest{EmployeeCode: "EMP0001", InviteCode: victimCode, LineUserID: "malee"})
	require.NoError(t, err)
	require.Equal(t, victim.EmployeeID, linked.EmployeeID)
}

func TestEmployeeInvite_ConcurrentLink(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.createPendingEmployee(t, f.orgID, "EMP7", "RACE7", time.Now().Add(time.Hour))

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)

	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.LinkEmployee(ctx, LinkRequest{
				EmployeeCode: "EMP7",
				InviteCode:   "RACE7",
				LineUserID:   uuid.NewString(),
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
}

func TestLinkEmployee_Failures(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	otherOrg := uuid.Must(uuid.NewV7())

	f.createPendingEmployee(t, f.orgID, "EMP2", "LATE", time.Now().Add(-time.Minute))
	f.createPendingEmployee(t, f.orgID, "EMP3", "SHARED-A", time.Now().Add(time.Hour))
	f.createPendingEmployee(t, otherOrg, "EMP3", "SHARED-B", time.Now().Add(time.Hour))

	tests := []struct {
		name string
		req  LinkRequest
		want error
	}{
		{name: "unknown employee code", req: LinkRequest{EmployeeCode: "EMP404", InviteCode: "SHARED-A", LineUserID: "l1"}, want: ErrInvalidCode},
		{name: "expired invite", req: LinkRequest{EmployeeCode: "EMP2", InviteCode: "LATE", LineUserID: "l2"}, want: ErrExpired},
		{name: "wrong invite code", req: LinkRequest{EmployeeCode: "EMP3", InviteCode: "NOPE", LineUserID: "l3"}, want: ErrInvalidCode},
		{name: "missing invite code", req: LinkRequest{EmployeeCode: "EMP3", LineUserID: "l4"}, want: ErrInvalidCode},
		{name: "expired code under another employee code", req: LinkRequest{EmployeeCode: "EMP3", InviteCode: "LATE", LineUserID: "l7"}, want: ErrInvalidCode},
		{name: "missing LINE identity", req: LinkRequest{EmployeeCode: "EMP3", InviteCode: "SHARED-A"}, want: ErrLineIdentityRequired},
		{name: "missing employee code", req: LinkRequest{InviteCode: "SHARED-A", LineUserID: "l5"}, want: ErrInvalidCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.LinkEmployee(ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}

	linked, err := f.ledger.LinkEmployee(ctx, LinkRequest{EmployeeCode: "EMP3", InviteCode: "SHARED-B", LineUserID: "l6"})
	require.NoError(t, err)
	require.Equal(t, otherOrg, linked.OrgID)
}

func TestLinkEmployee_LineUserAlreadyLinkedInOrg(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.createPendingEmployee(t, f.orgID, "EMP10", "FIRST", time.Now().Add(time.Hour))
	f.createPendingEmployee(t, f.orgID, "EMP11", "SECOND", time.Now().Add(time.Hour))

	_, err := f.ledger.LinkEmployee(ctx, LinkRequest{EmployeeCode: "EMP10", InviteCode: "FIRST", LineUserID: "same-line-user"})
	require.NoError(t, err)

	_, err = f.ledger.LinkEmployee(ctx, LinkRequest{EmployeeCode: "EMP11", InviteCode: "SECOND", LineUserID: "same-line-user"})
	require.ErrorIs(t, err, ErrAlreadyLinked)
}

func TestIssueEmployeeInvite(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	employee := f.createPendingEmployee(t, f.orgID, "EMP20", "INITIAL", time.Now().Add(time.Hour))

	code, expiresAt, err := f.ledger.IssueEmployeeInvite(ctx, f.orgID, employee.EmployeeID, 0)
	require.NoError(t, err)
	require.Len(t, code, CodeLength)
	require.WithinDuration(t, time.Now().Add(DefaultEmployeeInviteTTL), expiresAt, time.Minute)

	_, err = f.ledger.LookupEmployeeInvite(ctx, "INITIAL")
	require.ErrorIs(t, err, ErrInvalidCode)

	found, err := f.ledger.LookupEmployeeInvite(ctx, code)
	require.NoError(t, err)
	require.Equal(t, employee.EmployeeID, found.EmployeeID)

	// Invites are only issued within the employee's own organization.
	_, _, err = f.ledger.IssueEmployeeInvite(ctx, uuid.Must(uuid.NewV7()), employee.EmployeeID, time.Hour)
	require.ErrorIs(t, err, store.ErrEmployeeNotFound)
}

func TestIssueEmployeeInvite_RetriesCollidingCode(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	f.createPendingEmployee(t, f.orgID, "EMP30", "TAKEN", time.Now().Add(time.Hour))
	employee := f.createPendingEmployee(t, f.orgID, "EMP31", "OLD31", time.Now().Add(time.Hour))

	codes := []string{"TAKEN", "FRESH"}
	f.ledger.newCode = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	code, _, err := f.ledger.IssueEmployeeInvite(ctx, f.orgID, employee.EmployeeID, time.Hour)
	require.NoError(t, err)
	require.Equal(t, "FRESH", code)

	f.ledger.newCode = func() (string, error) { return "TAKEN", nil }
	_, _, err = f.ledger.IssueEmployeeInvite(ctx, f.orgID, employee.EmployeeID, time.Hour)
	require.ErrorIs(t, err, store.ErrEmployeeInviteTaken)
}

func TestNewCode(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		code, err := NewCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		require.NotContains(t, code, "0")
		require.NotContains(t, code, "O")
		seen[code] = struct{}{}
	}
	require.Len(t, seen, 100)
}
