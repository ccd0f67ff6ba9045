package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile statuses.
const (
	ProfileStatusActive    = "active"
	ProfileStatusSuspended = "suspended"
)

// Profile binds a principal to exactly one organization.
// The organization cannot change after the profile is created.
type Profile struct {
	PrincipalID uuid.UUID `json:"id"`     // Same ID as the principal's Identity
	OrgID       uuid.UUID `json:"org_id"` // Immutable

	Email        *string `json:"email,omitempty"`
	DisplayName  string  `json:"display_name"`
	AvatarURL    *string `json:"avatar_url,omitempty"`
	AuthProvider string  `json:"auth_provider"`
	LineUserID   *string `json:"line_user_id,omitempty"`
	Status       string  `json:"status"` // "active" or "suspended"

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsSuspended returns true if the profile has been suspended by an administrator.
func (p *Profile) IsSuspended() bool {
	return p.Status == ProfileStatusSuspended
}

// NewProfile builds an active profile in orgID for the given identity.
func NewProfile(identity *Identity, orgID uuid.UUID, now time.Time) *Profile {
	return &Profile{
		PrincipalID:  identity.PrincipalID,
		OrgID:        orgID,
		Email:        identity.Email,
		DisplayName:  identity.DisplayName,
		AvatarURL:    identity.AvatarURL,
		AuthProvider: identity.Provider,
		LineUserID:   identity.LineUserID(),
		Status:       ProfileStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
