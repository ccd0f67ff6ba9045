package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
)

// Authentication methods recorded on the AuthContext.
const (
	MethodSession = "session"
	MethodBearer  = "bearer"
)

// AuthContext is built once per request after authentication and tenant
// resolution, then passed explicitly to every action.
type AuthContext struct {
	PrincipalID uuid.UUID
	OrgID       uuid.UUID // uuid.Nil until the principal joins an organization
	Identity    *models.Identity
	Profile     *models.Profile // nil until the principal joins an organization
	SessionID   uuid.UUID       // uuid.Nil for bearer authentication
	Method      string
}

// HasTenant reports whether the principal belongs to an organization.
func (ac *AuthContext) HasTenant() bool {
	return ac != nil && ac.OrgID != uuid.Nil
}

// LineUserID returns the LINE user ID of the authenticated identity, if any.
func (ac *AuthContext) LineUserID() string {
	if ac == nil || ac.Identity == nil {
		return ""
	}
	if id := ac.Identity.LineUserID(); id != nil {
		return *id
	}
	return ""
}

type contextKey int

const (
	authContextKey contextKey = iota
)

// WithAuthContext returns a context carrying ac.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, ac)
}

// FromContext extracts the AuthContext from the request context.
// Returns false for anonymous requests.
func FromContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey).(*AuthContext)
	return ac, ok && ac != nil
}

// SessionData represents session information from a session store.
type SessionData struct {
	SessionID   uuid.UUID
	PrincipalID uuid.UUID
}

// SessionProvider provides access to session data from HTTP requests.
// This interface allows the middleware to be decoupled from the login package.
type SessionProvider interface {
	// GetSessionData extracts and validates the session from a request.
	GetSessionData(r *http.Request) (*SessionData, error)
}
