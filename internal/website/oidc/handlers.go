package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/auth"
	"github.com/wolfeidau/hrdesk/internal/line"
	"github.com/wolfeidau/hrdesk/internal/login"
	"github.com/wolfeidau/hrdesk/internal/store"
)

// DefaultTokenTTL is the lifetime of access tokens issued to LIFF clients.
const DefaultTokenTTL = time.Hour

// AccessTokenVerifier verifies a LIFF access token and returns the LINE profile.
type AccessTokenVerifier interface {
	VerifiedProfile(ctx context.Context, accessToken string) (*line.Profile, error)
}

// IDTokenVerifier verifies a LIFF ID token.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawToken, expectedNonce string) (*line.IDTokenClaims, error)
}

// Handler issues the service's own ES256 access tokens and publishes the keys
// needed to verify them.
type Handler struct {
	keyManager *KeyManager
	identities store.IdentityStore
	baseURL    string // issuer and audience of issued tokens
	tokenTTL   time.Duration
}

func NewHandler(keyManager *KeyManager, identities store.IdentityStore, baseURL string, tokenTTL time.Duration) *Handler {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Handler{
		keyManager: keyManager,
		identities: identities,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tokenTTL:   tokenTTL,
	}
}

// DiscoveryHandler serves /.well-known/openid-configuration.
func (h *Handler) DiscoveryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Msg("OIDC discovery request")

		config := map[string]any{
			"issuer":                                h.baseURL,
			"jwks_uri":                              h.baseURL + "/.well-known/jwks.json",
			"token_endpoint":                        h.baseURL + "/liff/session",
			"response_types_supported":              []string{"token"},
			"subject_types_supported":               []string{"public"},
			"id_token_signing_alg_values_supported": []string{"ES256"},
		}

		w.Header().Set("Cache-Control", "public, max-age=86400")
		writeJSON(w, http.StatusOK, config)
	}
}

// JWKSHandler serves /.well-known/jwks.json.
func (h *Handler) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Str("kid", h.keyManager.Kid()).Msg("JWKS request")

		jwks := map[string]any{
			"keys": []auth.JWK{h.keyManager.JWK()},
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		writeJSON(w, http.StatusOK, jwks)
	}
}

// TokenResponse is returned by the token endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type liffSessionRequest struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

// LIFFSessionHandler exchanges a LIFF access token or ID token for an access
// token of this service at POST /liff/session. The LINE identity is created on
// first use.
func (h *Handler) LIFFSessionHandler(accessTokens AccessTokenVerifier, idTokens IDTokenVerifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req liffSessionRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		var (
			profile *line.Profile
			email   string
			err     error
		)

		switch {
		case req.IDToken != "" && idTokens != nil:
			var claims *line.IDTokenClaims
			claims, err = idTokens.Verify(ctx, req.IDToken, "")
			if err == nil {
				profile, email = claims.Profile(), claims.Email
			}
		case req.AccessToken != "":
			profile, err = accessTokens.VerifiedProfile(ctx, req.AccessToken)
		default:
			writeError(w, http.StatusBadRequest, "access_token or id_token is required")
			return
		}

		if err != nil {
			log.Warn().Err(err).Msg("LIFF token verification failed")
			if errors.Is(err, line.ErrInvalidAccessToken) || errors.Is(err, line.ErrInvalidIDToken) || errors.Is(err, line.ErrChannelMismatch) {
				writeError(w, http.StatusUnauthorized, auth.ErrNotAuthenticated.Error())
				return
			}
			writeError(w, http.StatusBadGateway, "LINE verification unavailable")
			return
		}

		identity, err := login.SyncLineIdentity(ctx, h.identities, profile, email)
		if err != nil {
			log.Error().Err(err).Msg("Failed to sync LINE identity")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		h.issue(w, identity.PrincipalID.String(), func() (string, time.Time, error) {
			return auth.IssueToken(h.keyManager, h.baseURL, identity.PrincipalID, h.tokenTTL)
		})
	}
}

// TokenHandler issues an access token for the principal of a console session
// at POST /auth/token, so the console can call the API with a bearer token.
func (h *Handler) TokenHandler(sessions auth.SessionProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessions.GetSessionData(r)
		if err != nil {
			log.Debug().Err(err).Msg("Token request without valid session")
			writeError(w, http.StatusUnauthorized, auth.ErrNotAuthenticated.Error())
			return
		}

		h.issue(w, session.PrincipalID.String(), func() (string, time.Time, error) {
			return auth.IssueToken(h.keyManager, h.baseURL, session.PrincipalID, h.tokenTTL)
		})
	}
}

func (h *Handler) issue(w http.ResponseWriter, principalID string, sign func() (string, time.Time, error)) {
	token, expiresAt, err := sign()
	if err != nil {
		log.Error().Err(err).Msg("Failed to sign JWT")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	log.Info().Str("principal_id", principalID).Msg("Issued access token")

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Round(time.Second).Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
