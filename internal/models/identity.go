package models

import (
	"time"

	"github.com/google/uuid"
)

// Authentication providers supported for identities.
const (
	AuthProviderLINE  = "line"  // LINE Login (console) or LIFF (mini-site)
	AuthProviderEmail = "email" // Email based sign-in
)

// Identity is an authenticated principal as known to the identity provider.
// It exists before the principal joins an organization; joining creates a Profile
// with the same PrincipalID.
type Identity struct {
	PrincipalID uuid.UUID `json:"id"`       // UUIDv7
	Provider    string    `json:"provider"` // "line" or "email"
	Subject     string    `json:"subject"`  // LINE user ID or email address

	Email       *string `json:"email,omitempty"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// LineUserID returns the LINE user ID for LINE identities, nil otherwise.
func (i *Identity) LineUserID() *string {
	if i.Provider != AuthProviderLINE {
		return nil
	}
	subject := i.Subject
	return &subject
}
