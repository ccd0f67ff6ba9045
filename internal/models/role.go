package models

import (
	"time"

	"github.com/google/uuid"
)

// RoleOwner is the name of the role seeded for every organization and assigned
// to its creator. It cannot be renamed or deleted.
const RoleOwner = "Owner"

// Permission is an entry in the global permission catalog. Permissions are not
// tenant scoped; roles reference them by key.
type Permission struct {
	Key         string `json:"key"` // e.g. "employees.create"
	Description string `json:"description"`
	Category    string `json:"category"`
}

// Role is a named set of permissions within one organization.
type Role struct {
	RoleID         uuid.UUID `json:"id"`     // UUIDv7
	OrgID          uuid.UUID `json:"org_id"` // Owning organization
	Name           string    `json:"name"`   // Unique per organization
	Description    string    `json:"description"`
	PermissionKeys []string  `json:"permissions"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsOwner returns true for the protected Owner role.
func (r *Role) IsOwner() bool {
	return r.Name == RoleOwner
}
