package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is a server-side console session. Only SessionID travels in the
// cookie. The tenant is not cached here; it is resolved from the principal's
// profile on every request.
type Session struct {
	SessionID   uuid.UUID `json:"session_id" db:"session_id"`
	PrincipalID uuid.UUID `json:"principal_id" db:"principal_id"`

	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
	LastUsedAt time.Time `json:"last_used_at" db:"last_used_at"`

	UserAgent string `json:"user_agent,omitempty" db:"user_agent"`
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
