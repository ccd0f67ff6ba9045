package login

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/hrdesk/internal/line"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store/memory"
)

const (
	testChannelID     = "1650000000"
	testChannelSecret = "test-channel-secret-0123456789abcdef"
)

func createTestStores() Stores {
	return Stores{
		Sessions:   memory.NewSessionStore(),
		Identities: memory.NewIdentityStore(),
	}
}

func newTestLine(t *testing.T, stores Stores, tokenURL string) *Line {
	t.Helper()

	config := line.NewOAuthConfig(testChannelID, testChannelSecret, "http://localhost:8080/auth/callback")
	if tokenURL != "" {
		config.Endpoint.TokenURL = tokenURL
	}

	verifier := line.NewIDTokenVerifier(testChannelSecret, nil, line.DefaultJWKSURL, testChannelID)

	l, err := NewLine(config, verifier, stores, time.Hour)
	require.NoError(t, err)
	return l
}

func signIDToken(t *testing.T, subject, nonce string) string {
	t.Helper()

	now := time.Now()
	claims := &line.IDTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    line.Issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{testChannelID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Nonce:   nonce,
		Name:    "Somchai",
		Picture: "https://profile.line-scdn.net/abc",
		Email:   "somchai@example.com",
	}

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testChannelSecret))
	require.NoError(t, err)
	return s
}

// tokenServer mimics the LINE token endpoint, returning idToken for any code.
func tokenServer(t *testing.T, idToken string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "line-access-token",
			"token_type":   "Bearer",
			"expires_in":   2592000,
			"id_token":     idToken,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func createTestSession(t *testing.T, stores Stores, ttl time.Duration) uuid.UUID {
	t.Helper()

	sessionID, err := uuid.NewV7()
	require.NoError(t, err)

	now := time.Now()
	err = stores.Sessions.Create(context.Background(), &models.Session{
		SessionID:   sessionID,
		PrincipalID: uuid.Must(uuid.NewV7()),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		LastUsedAt:  now,
	})
	require.NoError(t, err)

	return sessionID
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestNewLine_Validation(t *testing.T) {
	stores := createTestStores()
	verifier := line.NewIDTokenVerifier(testChannelSecret, nil, line.DefaultJWKSURL, testChannelID)
	config := line.NewOAuthConfig(testChannelID, testChannelSecret, "http://localhost/cb")

	_, err := NewLine(line.NewOAuthConfig("", testChannelSecret, "http://localhost/cb"), verifier, stores, time.Hour)
	require.Error(t, err)

	_, err = NewLine(config, nil, stores, time.Hour)
	require.Error(t, err)

	_, err = NewLine(config, verifier, Stores{}, time.Hour)
	require.Error(t, err)

	_, err = NewLine(config, verifier, stores, 0)
	require.Error(t, err)
}

func TestLoginHandler(t *testing.T) {
	l := newTestLine(t, createTestStores(), "")

	req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	rec := httptest.NewRecorder()

	l.LoginHandler(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)

	state := cookieNamed(rec, stateCookie)
	require.NotNil(t, state)
	require.NotEmpty(t, state.Value)
	require.True(t, state.HttpOnly)
	require.Equal(t, 300, state.MaxAge)

	nonce := cookieNamed(rec, nonceCookie)
	require.NotNil(t, nonce)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "access.line.me", location.Host)
	require.Equal(t, state.Value, location.Query().Get("state"))
	require.Equal(t, nonce.Value, location.Query().Get("nonce"))
	require.Equal(t, testChannelID, location.Query().Get("client_id"))
}

func TestCallbackHandler_InvalidRequests(t *testing.T) {
	l := newTestLine(t, createTestStores(), "")

	tests := []struct {
		name   string
		query  string
		cookie string
	}{
		{name: "missing code", query: "state=abc", cookie: "abc"},
		{name: "missing state", query: "code=xyz", cookie: "abc"},
		{name: "missing cookie", query: "state=abc&code=xyz"},
		{name: "state mismatch", query: "state=abc&code=xyz", cookie: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/callback?"+tt.query, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: stateCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()

			l.CallbackHandler(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Nil(t, cookieNamed(rec, SessionCookie))
		})
	}
}

func TestCallbackHandler_AuthorizationDenied(t *testing.T) {
	l := newTestLine(t, createTestStores(), "")

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?error=access_denied&state=abc", nil)
	rec := httptest.NewRecorder()

	l.CallbackHandler(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/?error_code=access_denied", rec.Header().Get("Location"))
}

func TestCallbackHandler_CreatesIdentityAndSession(t *testing.T) {
	stores := createTestStores()
	srv := tokenServer(t, signIDToken(t, "U1234", "n-123"))
	l := newTestLine(t, stores, srv.URL)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?state=s-1&code=c-1", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "s-1"})
	req.AddCookie(&http.Cookie{Name: nonceCookie, Value: "n-123"})
	rec := httptest.NewRecorder()

	l.CallbackHandler(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/admin", rec.Header().Get("Location"))

	sessionCookie := cookieNamed(rec, SessionCookie)
	require.NotNil(t, sessionCookie)
	require.Equal(t, 3600, sessionCookie.MaxAge)

	ctx := context.Background()
	identity, err := stores.Identities.GetBySubject(ctx, models.AuthProviderLINE, "U1234")
	require.NoError(t, err)
	require.Equal(t, "Somchai", identity.DisplayName)
	require.NotNil(t, identity.Email)
	require.Equal(t, "somchai@example.com", *identity.Email)
	require.NotNil(t, identity.LastLoginAt)

	// the cookie resolves to the identity's principal
	follow := httptest.NewRequest(http.MethodGet, "/admin", nil)
	follow.AddCookie(sessionCookie)
	data, err := l.GetSessionData(follow)
	require.NoError(t, err)
	require.Equal(t, identity.PrincipalID, data.PrincipalID)
}

func TestCallbackHandler_ReusesIdentity(t *testing.T) {
	stores := createTestStores()
	srv := tokenServer(t, signIDToken(t, "U1234", ""))
	l := newTestLine(t, stores, srv.URL)

	login := func() {
		req := httptest.NewRequest(http.MethodGet, "/auth/callback?state=s&code=c", nil)
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: "s"})
		rec := httptest.NewRecorder()
		l.CallbackHandler(rec, req)
		require.Equal(t, http.StatusFound, rec.Code)
	}

	login()
	first, err := stores.Identities.GetBySubject(context.Background(), models.AuthProviderLINE, "U1234")
	require.NoError(t, err)

	login()
	second, err := stores.Identities.GetBySubject(context.Background(), models.AuthProviderLINE, "U1234")
	require.NoError(t, err)

	require.Equal(t, first.PrincipalID, second.PrincipalID)
}

func TestCallbackHandler_NonceMismatch(t *testing.T) {
	stores := createTestStores()
	srv := tokenServer(t, signIDToken(t, "U1234", "replayed"))
	l := newTestLine(t, stores, srv.URL)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?state=s&code=c", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "s"})
	req.AddCookie(&http.Cookie{Name: nonceCookie, Value: "expected"})
	rec := httptest.NewRecorder()

	l.CallbackHandler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, cookieNamed(rec, SessionCookie))
}

func TestGetSessionData(t *testing.T) {
	stores := createTestStores()
	l := newTestLine(t, stores, "")

	valid := createTestSession(t, stores, time.Hour)
	expired := createTestSession(t, stores, -time.Minute)

	tests := []struct {
		name    string
		cookie  string
		wantErr error
	}{
		{name: "valid", cookie: valid.String()},
		{name: "no cookie", wantErr: ErrInvalidSession},
		{name: "malformed", cookie: "not-a-uuid", wantErr: ErrInvalidSession},
		{name: "unknown", cookie: uuid.NewString(), wantErr: ErrInvalidSession},
		{name: "expired", cookie: expired.String(), wantErr: ErrExpiredSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}

			data, err := l.GetSessionData(req)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, valid, data.SessionID)
		})
	}
}

func TestRequireSession(t *testing.T) {
	stores := createTestStores()
	l := newTestLine(t, stores, "")

	handler := l.RequireSession("/")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/?error_code=invalid", rec.Header().Get("Location"))

	expired := createTestSession(t, stores, -time.Minute)
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: expired.String()})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, "/?error_code=expired", rec.Header().Get("Location"))

	valid := createTestSession(t, stores, time.Hour)
	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: valid.String()})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutHandler(t *testing.T) {
	stores := createTestStores()
	l := newTestLine(t, stores, "")

	sessionID := createTestSession(t, stores, time.Hour)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sessionID.String()})
	rec := httptest.NewRecorder()

	l.LogoutHandler(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	cleared := cookieNamed(rec, SessionCookie)
	require.NotNil(t, cleared)
	require.Equal(t, -1, cleared.MaxAge)

	_, err := stores.Sessions.Get(context.Background(), sessionID)
	require.Error(t, err)
}
