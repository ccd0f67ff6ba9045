package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/store"
	"github.com/wolfeidau/hrdesk/internal/tenant"
)

// Authenticator builds the AuthContext of a request. It supports both bearer
// access tokens (LIFF clients) and session cookies (admin console).
type Authenticator struct {
	verifier   *TokenVerifier
	sessions   SessionProvider
	identities store.IdentityStore
	resolver   *tenant.Resolver
}

// NewAuthenticator creates an Authenticator. verifier may be nil to disable
// bearer authentication and sessions may be nil to disable session cookies.
func NewAuthenticator(
	verifier *TokenVerifier,
	sessions SessionProvider,
	identities store.IdentityStore,
	resolver *tenant.Resolver,
) *Authenticator {
	return &Authenticator{
		verifier:   verifier,
		sessions:   sessions,
		identities: identities,
		resolver:   resolver,
	}
}

// Middleware authenticates the request and, when successful, resolves the
// tenant once and stores the AuthContext in the request context.
// Requests without credentials continue anonymously. A bearer token that was
// provided but is invalid is rejected with 401 rather than falling back to the
// session cookie.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			ac := &AuthContext{}

			if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") && a.verifier != nil {
				principalID, err := a.verifier.VerifyRequest(r)
				if err != nil {
					log.Debug().Err(err).Msg("Auth: bearer verification failed")
					WriteUnauthorized(w)
					return
				}
				ac.PrincipalID = principalID
				ac.Method = MethodBearer
			} else {
				if a.sessions == nil {
					next.ServeHTTP(w, r)
					return
				}
				session, err := a.sessions.GetSessionData(r)
				if err != nil {
					next.ServeHTTP(w, r)
					return
				}
				ac.PrincipalID = session.PrincipalID
				ac.SessionID = session.SessionID
				ac.Method = MethodSession
			}

			identity, err := a.identities.Get(ctx, ac.PrincipalID)
			if err != nil {
				log.Warn().Err(err).Str("principal_id", ac.PrincipalID.String()).Msg("Auth: identity lookup failed")
				WriteUnauthorized(w)
				return
			}
			ac.Identity = identity

			profile, err := a.resolver.Profile(ctx, ac.PrincipalID)
			switch {
			case err == nil:
				ac.Profile = profile
				ac.OrgID = profile.OrgID
			case errors.Is(err, tenant.ErrNotFound):
				// authenticated but not onboarded
			default:
				log.Error().Err(err).Str("principal_id", ac.PrincipalID.String()).Msg("Auth: tenant resolution failed")
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			log.Debug().
				Str("principal_id", ac.PrincipalID.String()).
				Str("org_id", ac.OrgID.String()).
				Str("method", ac.Method).
				Msg("Auth: authenticated")

			next.ServeHTTP(w, r.WithContext(WithAuthContext(ctx, ac)))
		})
	}
}

// RequireAuthenticated rejects anonymous requests with 401.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			WriteUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WriteUnauthorized writes a JSON 401 response.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": ErrNotAuthenticated.Error()})
}
