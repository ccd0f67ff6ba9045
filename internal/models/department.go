package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultPositionLevel is used when a position is created without a level.
const DefaultPositionLevel = 3

// Department groups employees. Departments may be nested via ParentID within
// the same organization.
type Department struct {
	DepartmentID uuid.UUID  `json:"id"`
	OrgID        uuid.UUID  `json:"org_id"`
	Name         string     `json:"name"`
	Description  *string    `json:"description,omitempty"`
	ParentID     *uuid.UUID `json:"parent_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Position is a job title, optionally belonging to a department.
type Position struct {
	PositionID   uuid.UUID  `json:"id"`
	OrgID        uuid.UUID  `json:"org_id"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	Name         string     `json:"name"`
	Level        int        `json:"level"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
