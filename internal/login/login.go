package login

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/auth"
	"github.com/wolfeidau/hrdesk/internal/line"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
	"github.com/wolfeidau/hrdesk/internal/telemetry"
	"golang.org/x/oauth2"
)

const (
	SessionCookie = "_session"
	stateCookie   = "state"
	nonceCookie   = "nonce"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrExpiredSession = errors.New("session expired")
)

// Stores groups the stores used by the login flow.
type Stores struct {
	Sessions   store.SessionStore
	Identities store.IdentityStore
}

// Line implements LINE Login for the admin console with server-side sessions.
type Line struct {
	config     *oauth2.Config
	idTokens   *line.IDTokenVerifier
	stores     Stores
	sessionTTL time.Duration

	// AfterLogin is where the browser lands after a successful callback.
	AfterLogin string
}

func NewLine(config *oauth2.Config, idTokens *line.IDTokenVerifier, stores Stores, sessionTTL time.Duration) (*Line, error) {
	if config == nil || config.ClientID == "" || config.ClientSecret == "" || config.RedirectURL == "" {
		return nil, fmt.Errorf("channel ID, channel secret, and callback URL are required")
	}

	if idTokens == nil {
		return nil, fmt.Errorf("ID token verifier is required")
	}

	if stores.Sessions == nil || stores.Identities == nil {
		return nil, fmt.Errorf("session and identity stores are required")
	}

	if sessionTTL <= 0 {
		return nil, fmt.Errorf("session TTL must be greater than 0")
	}

	return &Line{
		config:     config,
		idTokens:   idTokens,
		stores:     stores,
		sessionTTL: sessionTTL,
		AfterLogin: "/admin",
	}, nil
}

// GetSessionData extracts and validates the session from a request.
func (l *Line) GetSessionData(r *http.Request) (*auth.SessionData, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, ErrInvalidSession
	}

	sessionID, err := uuid.Parse(cookie.Value)
	if err != nil {
		log.Debug().Msg("Invalid session cookie format")
		return nil, ErrInvalidSession
	}

	ctx := r.Context()

	session, err := l.stores.Sessions.Get(ctx, sessionID)
	switch {
	case errors.Is(err, store.ErrSessionExpired):
		log.Debug().Str("session_id", sessionID.String()).Msg("Session expired")
		return nil, ErrExpiredSession
	case err != nil:
		return nil, ErrInvalidSession
	}

	if err := l.stores.Sessions.UpdateLastUsed(ctx, sessionID); err != nil {
		log.Debug().Err(err).Str("session_id", sessionID.String()).Msg("Failed to touch session")
	}

	return &auth.SessionData{
		SessionID:   session.SessionID,
		PrincipalID: session.PrincipalID,
	}, nil
}

// RequireSession is a middleware that redirects to redirectURL with an
// error_code query parameter when the request has no valid session.
func (l *Line) RequireSession(redirectURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := l.GetSessionData(r); err != nil {
				errorCode := "invalid"
				if errors.Is(err, ErrExpiredSession) {
					errorCode = "expired"
				}
				log.Debug().Str("path", r.URL.Path).Str("error_code", errorCode).Msg("No session, redirecting to login")
				http.Redirect(w, r, redirectURL+"?error_code="+errorCode, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *Line) saveFlowCookie(w http.ResponseWriter, name string) string {
	value := rand.Text()

	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300, // 5 minutes - enough time for OAuth flow
	})

	return value
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (l *Line) LoginHandler(w http.ResponseWriter, r *http.Request) {
	log.Debug().Msg("Initiating LINE login flow")

	state := l.saveFlowCookie(w, stateCookie)
	nonce := l.saveFlowCookie(w, nonceCookie)

	http.Redirect(w, r, l.config.AuthCodeURL(state, oauth2.SetAuthURLParam("nonce", nonce)), http.StatusFound)
}

func (l *Line) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	log.Debug().Msg("OAuth callback received")

	if errCode := r.FormValue("error"); errCode != "" {
		log.Warn().Str("error", errCode).Str("description", r.FormValue("error_description")).Msg("LINE login was not authorized")
		http.Redirect(w, r, "/?error_code="+errCode, http.StatusFound)
		return
	}

	state := r.FormValue("state")
	code := r.FormValue("code")

	if state == "" || code == "" {
		log.Warn().Msg("OAuth callback missing state or code")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		log.Warn().Err(err).Msg("OAuth callback missing state cookie")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	if state != cookie.Value {
		log.Warn().Msg("OAuth callback state mismatch")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	nonce := ""
	if c, err := r.Cookie(nonceCookie); err == nil {
		nonce = c.Value
	}

	log.Debug().Msg("OAuth state validated successfully")

	clearCookie(w, stateCookie)
	clearCookie(w, nonceCookie)

	ctx := r.Context()

	token, err := l.ExchangeCode(ctx, code)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to exchange OAuth code for token")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" {
		log.Warn().Msg("LINE token response missing id_token")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	claims, err := l.idTokens.Verify(ctx, rawIDToken, nonce)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to verify LINE ID token")
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	identity, err := SyncLineIdentity(ctx, l.stores.Identities, claims.Profile(), claims.Email)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sync LINE identity")
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	session, err := l.createSession(ctx, r, identity.PrincipalID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create session")
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	log.Info().
		Str("principal_id", identity.PrincipalID.String()).
		Str("session_id", session.SessionID.String()).
		Msg("User authenticated successfully")

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.SessionID.String(),
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(l.sessionTTL.Seconds()),
	})

	http.Redirect(w, r, l.AfterLogin, http.StatusFound)
}

// LogoutHandler deletes the server-side session and clears the cookie.
func (l *Line) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if sessionID, err := uuid.Parse(cookie.Value); err == nil {
			if err := l.stores.Sessions.Delete(r.Context(), sessionID); err != nil && !errors.Is(err, store.ErrSessionNotFound) {
				log.Error().Err(err).Str("session_id", sessionID.String()).Msg("Failed to delete session")
			}
		}
	}

	clearCookie(w, SessionCookie)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (l *Line) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	return l.config.Exchange(ctx, code)
}

func (l *Line) createSession(ctx context.Context, r *http.Request, principalID uuid.UUID) (*models.Session, error) {
	sessionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &models.Session{
		SessionID:   sessionID,
		PrincipalID: principalID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(l.sessionTTL),
		LastUsedAt:  now,
		UserAgent:   r.UserAgent(),
		IPAddress:   r.RemoteAddr,
	}

	if err := l.stores.Sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	telemetry.GetMetrics().SessionsCreated.Add(ctx, 1)

	return session, nil
}
