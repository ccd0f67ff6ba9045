package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultInviteMaxUses is applied when an invite code is created without a use limit.
const DefaultInviteMaxUses = 1

// InviteCode lets a new principal join an organization, optionally with a role.
// A code is redeemable while UsedCount < MaxUses and it has not expired.
type InviteCode struct {
	InviteID  uuid.UUID  `json:"id"` // UUIDv7
	Code      string     `json:"code"`
	OrgID     uuid.UUID  `json:"org_id"`
	RoleID    *uuid.UUID `json:"role_id,omitempty"`
	MaxUses   int        `json:"max_uses"`
	UsedCount int        `json:"used_count"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // nil never expires
	CreatedBy uuid.UUID  `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsExpired reports whether the code has passed its expiry at now.
func (c *InviteCode) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// IsExhausted reports whether the code has no uses left.
func (c *InviteCode) IsExhausted() bool {
	return c.UsedCount >= c.MaxUses
}
