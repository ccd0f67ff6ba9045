package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/hrdesk/internal/actions"
	"github.com/wolfeidau/hrdesk/internal/auth"
	httpmiddleware "github.com/wolfeidau/hrdesk/internal/http"
	"github.com/wolfeidau/hrdesk/internal/invite"
	"github.com/wolfeidau/hrdesk/internal/line"
	"github.com/wolfeidau/hrdesk/internal/rbac"
	"github.com/wolfeidau/hrdesk/internal/store/memory"
	"github.com/wolfeidau/hrdesk/internal/tenant"
	"github.com/wolfeidau/hrdesk/internal/website/oidc"
)

const testIssuer = "https://hr.example.com"

// lineUsers stands in for the LINE verify and profile endpoints: the access
// token is the LINE user ID.
type lineUsers struct{}

func (lineUsers) VerifiedProfile(_ context.Context, accessToken string) (*line.Profile, error) {
	if !strings.HasPrefix(accessToken, "U") {
		return nil, line.ErrInvalidAccessToken
	}
	return &line.Profile{UserID: accessToken, DisplayName: "user " + accessToken}, nil
}

type noSessions struct{}

func (noSessions) GetSessionData(*http.Request) (*auth.SessionData, error) {
	return nil, fmt.Errorf("no session")
}

type server struct {
	handler http.Handler
}

func newServer(t *testing.T) *server {
	t.Helper()

	catalog, err := rbac.Load()
	require.NoError(t, err)

	stores := actions.Stores{
		Organizations: memory.NewOrganizationStore(),
		Profiles:      memory.NewProfileStore(),
		Roles:         memory.NewRoleStore(),
		Invites:       memory.NewInviteCodeStore(),
		Employees:     memory.NewEmployeeStore(),
		Departments:   memory.NewDepartmentStore(),
		Positions:     memory.NewPositionStore(),
	}
	require.NoError(t, catalog.Sync(context.Background(), stores.Roles))

	identities := memory.NewIdentityStore()
	gate := auth.NewGate(stores.Profiles, stores.Roles)
	ledger := invite.NewLedger(stores.Invites, stores.Profiles, stores.Roles, stores.Employees)
	service := actions.NewService(stores, gate, ledger, catalog)

	km, err := oidc.NewKeyManager()
	require.NoError(t, err)

	authenticator := auth.NewAuthenticator(
		auth.NewTokenVerifier(testIssuer, km),
		noSessions{},
		identities,
		tenant.NewResolver(stores.Profiles),
	)

	handler, err := NewHandler(Config{
		API:              NewAPI(service),
		Authenticator:    authenticator,
		Tokens:           oidc.NewHandler(km, identities, testIssuer, time.Hour),
		LIFFAccessTokens: lineUsers{},
		Metrics:          httpmiddleware.NewMetrics(nil),
		Logger:           zerolog.Nop(),
		CORSOrigins:      []string{"https://liff.example.com"},
	})
	require.NoError(t, err)

	return &server{handler: handler}
}

type response struct {
	Code   int
	Header http.Header
	Data   json.RawMessage
	Error  string
	Field  string
}

func (s *server) do(t *testing.T, method, path, token string, body any) response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	resp := response{Code: rec.Code, Header: rec.Header()}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		var envelope struct {
			Data  json.RawMessage `json:"data"`
			Error string          `json:"error"`
			Field string          `json:"field"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
		resp.Data, resp.Error, resp.Field = envelope.Data, envelope.Error, envelope.Field
	}
	return resp
}

// signIn exchanges a LINE access token for a bearer token.
func (s *server) signIn(t *testing.T, lineUserID string) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/liff/session", strings.NewReader(`{"access_token":"`+lineUserID+`"}`))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var token oidc.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))
	return token.AccessToken
}

func decodeData[T any](t *testing.T, resp response) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	return v
}

type idOnly struct {
	ID string `json:"id"`
}

func TestOnboardingAndEmployeeLink(t *testing.T) {
	s := newServer(t)

	owner := s.signIn(t, "Uowner")

	// console gate sends a principal without an organization to onboarding
	resp := s.do(t, http.MethodGet, AdminPath, owner, nil)
	require.Equal(t, http.StatusFound, resp.Code)
	require.Equal(t, OnboardingPath, resp.Header.Get("Location"))

	resp = s.do(t, http.MethodGet, "/api/departments", owner, nil)
	require.Equal(t, http.StatusConflict, resp.Code)

	resp = s.do(t, http.MethodPost, "/api/orgs", owner, map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = s.do(t, http.MethodGet, OnboardingPath, owner, nil)
	require.Equal(t, http.StatusFound, resp.Code)
	require.Equal(t, AdminPath, resp.Header.Get("Location"))

	resp = s.do(t, http.MethodGet, AdminPath, owner, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	me := decodeData[actions.Me](t, resp)
	require.Equal(t, "Acme", me.Organization.Name)
	require.Contains(t, me.Permissions, string(auth.PermEmployeesCreate))

	resp = s.do(t, http.MethodPost, "/api/departments", owner, map[string]string{"name": "Engineering"})
	require.Equal(t, http.StatusCreated, resp.Code)
	department := decodeData[idOnly](t, resp)

	resp = s.do(t, http.MethodPost, "/api/employees", owner, map[string]any{
		"employee_code": "EMP1",
		"first_name":    "Somchai",
		"last_name":     "Jaidee",
		"department_id": department.ID,
		"start_date":    "2026-01-05T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	employee := decodeData[struct {
		InviteCode string `json:"invite_code"`
		Status     string `json:"status"`
	}](t, resp)
	require.Len(t, employee.InviteCode, invite.CodeLength)
	require.Equal(t, "pending", employee.Status)

	// the invite page is public
	resp = s.do(t, http.MethodGet, "/liff/invite/"+employee.InviteCode, "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotContains(t, string(resp.Data), "base_salary")

	// linking needs a LINE identity
	resp = s.do(t, http.MethodPost, "/liff/link", "", map[string]string{"employee_code": "EMP1", "invite_code": employee.InviteCode})
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	staff := s.signIn(t, "Ustaff")

	// the employee code alone is not enough
	resp = s.do(t, http.MethodPost, "/liff/link", staff, map[string]string{"employee_code": "EMP1"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	resp = s.do(t, http.MethodPost, "/liff/link", staff, map[string]string{"employee_code": "EMP1", "invite_code": "WRONG1"})
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = s.do(t, http.MethodPost, "/liff/link", staff, map[string]string{"employee_code": "EMP1", "invite_code": employee.InviteCode})
	require.Equal(t, http.StatusOK, resp.Code)

	// the code is single use
	other := s.signIn(t, "Uother")
	resp = s.do(t, http.MethodPost, "/liff/link", other, map[string]string{"employee_code": "EMP1", "invite_code": employee.InviteCode})
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = s.do(t, http.MethodGet, "/liff/invite/"+employee.InviteCode, "", nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestInviteCodeRedemption(t *testing.T) {
	s := newServer(t)

	owner := s.signIn(t, "Uowner")
	resp := s.do(t, http.MethodPost, "/api/orgs", owner, map[string]string{"name": "Acme"})
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = s.do(t, http.MethodPost, "/api/invite-codes", owner, map[string]any{"max_uses": 1})
	require.Equal(t, http.StatusCreated, resp.Code)
	code := decodeData[struct {
		Code string `json:"code"`
	}](t, resp)

	joiner := s.signIn(t, "Ujoiner")
	resp = s.do(t, http.MethodPost, "/api/invite-codes/redeem", joiner, map[string]string{"code": code.Code})
	require.Equal(t, http.StatusOK, resp.Code)

	late := s.signIn(t, "Ulate")
	resp = s.do(t, http.MethodPost, "/api/invite-codes/redeem", late, map[string]string{"code": code.Code})
	require.Equal(t, http.StatusGone, resp.Code)

	resp = s.do(t, http.MethodPost, "/api/invite-codes/redeem", late, map[string]string{"code": "nope"})
	require.Equal(t, http.StatusNotFound, resp.Code)

	// members without invites.manage are denied
	resp = s.do(t, http.MethodPost, "/api/invite-codes", joiner, map[string]any{"max_uses": 5})
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestTenantIsolation(t *testing.T) {
	s := newServer(t)

	alice := s.signIn(t, "Ualice")
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/orgs", alice, map[string]string{"name": "Acme"}).Code)
	bob := s.signIn(t, "Ubob")
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/orgs", bob, map[string]string{"name": "Globex"}).Code)

	resp := s.do(t, http.MethodPost, "/api/departments", alice, map[string]string{"name": "Finance"})
	require.Equal(t, http.StatusCreated, resp.Code)
	department := decodeData[idOnly](t, resp)

	resp = s.do(t, http.MethodGet, "/api/departments", bob, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.JSONEq(t, `[]`, string(resp.Data))

	resp = s.do(t, http.MethodDelete, "/api/departments/"+department.ID, bob, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = s.do(t, http.MethodGet, "/api/departments/"+department.ID, alice, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = s.do(t, http.MethodDelete, "/api/departments/"+department.ID, alice, nil)
	require.Equal(t, http.StatusNoContent, resp.Code)
}

func TestRequestErrors(t *testing.T) {
	s := newServer(t)

	resp := s.do(t, http.MethodGet, "/api/departments", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Equal(t, auth.ErrNotAuthenticated.Error(), resp.Error)

	resp = s.do(t, http.MethodGet, "/api/departments", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = s.do(t, http.MethodGet, AdminPath, "", nil)
	require.Equal(t, http.StatusFound, resp.Code)
	require.Equal(t, LoginPath, resp.Header.Get("Location"))

	owner := s.signIn(t, "Uowner")
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/orgs", owner, map[string]string{"name": "Acme"}).Code)

	resp = s.do(t, http.MethodGet, "/api/departments/not-a-uuid", owner, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = s.do(t, http.MethodPost, "/api/departments", owner, map[string]string{"name": " "})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "name", resp.Field)

	resp = s.do(t, http.MethodGet, "/api/positions?department_id=nope", owner, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "department_id", resp.Field)

	resp = s.do(t, http.MethodGet, "/api/employees", owner, nil)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	req := httptest.NewRequest(http.MethodPost, "/api/orgs", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+owner)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCrossOriginProtection(t *testing.T) {
	s := newServer(t)
	owner := s.signIn(t, "Uowner")

	req := httptest.NewRequest(http.MethodPost, "/api/orgs", strings.NewReader(`{"name":"Acme"}`))
	req.Header.Set("Authorization", "Bearer "+owner)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/orgs", strings.NewReader(`{"name":"Acme"}`))
	req.Header.Set("Authorization", "Bearer "+owner)
	req.Header.Set("Origin", "https://liff.example.com")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "https://liff.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestDiscovery(t *testing.T) {
	s := newServer(t)

	resp := s.do(t, http.MethodGet, "/.well-known/openid-configuration", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{auth.ErrNotAuthenticated, http.StatusUnauthorized},
		{fmt.Errorf("%w: requires roles.manage", auth.ErrPermissionDenied), http.StatusForbidden},
		{auth.ErrOnboardingRequired, http.StatusConflict},
		{&actions.ValidationError{Field: "name", Message: "required"}, http.StatusBadRequest},
		{invite.ErrLineIdentityRequired, http.StatusBadRequest},
		{fmt.Errorf("department %w", actions.ErrNotFound), http.StatusNotFound},
		{invite.ErrInvalidCode, http.StatusNotFound},
		{invite.ErrExpired, http.StatusGone},
		{invite.ErrExhausted, http.StatusGone},
		{invite.ErrConcurrentConflict, http.StatusConflict},
		{invite.ErrAlreadyLinked, http.StatusConflict},
		{actions.ErrLastOwner, http.StatusConflict},
		{fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			require.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
