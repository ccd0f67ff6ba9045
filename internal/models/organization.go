package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a tenant. Every tenant-scoped row carries its OrgID.
type Organization struct {
	OrgID     uuid.UUID `json:"id" db:"org_id"`
	Name      string    `json:"name" db:"name"`
	CreatedBy uuid.UUID `json:"created_by" db:"created_by"` // principal that ran onboarding
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
