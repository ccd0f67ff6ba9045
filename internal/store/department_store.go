package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
)

// Sentinel errors for department and position store operations
var (
	ErrDepartmentNotFound      = errors.New("department not found")
	ErrDepartmentAlreadyExists = errors.New("department already exists")
	ErrPositionNotFound        = errors.New("position not found")
	ErrPositionAlreadyExists   = errors.New("position already exists")
)

// DepartmentStore persists departments scoped by organization.
type DepartmentStore interface {
	// Create creates a department.
	// Returns ErrDepartmentAlreadyExists if the ID is taken.
	Create(ctx context.Context, department *models.Department) error

	// Get retrieves a department within orgID.
	// Returns ErrDepartmentNotFound if the department doesn't exist in orgID.
	Get(ctx context.Context, orgID, departmentID uuid.UUID) (*models.Department, error)

	// ListByOrg returns all departments of an organization ordered by name.
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Department, error)

	// Update updates a department within department.OrgID.
	// Returns ErrDepartmentNotFound if the department doesn't exist in that organization.
	Update(ctx context.Context, department *models.Department) error

	// Delete deletes a department within orgID. Child departments, positions and
	// employees keep existing with the reference cleared.
	// Returns ErrDepartmentNotFound if the department doesn't exist in orgID.
	Delete(ctx context.Context, orgID, departmentID uuid.UUID) error
}

// PositionStore persists positions scoped by organization.
type PositionStore interface {
	// Create creates a position.
	// Returns ErrPositionAlreadyExists if the ID is taken.
	Create(ctx context.Context, position *models.Position) error

	// Get retrieves a position within orgID.
	// Returns ErrPositionNotFound if the position doesn't exist in orgID.
	Get(ctx context.Context, orgID, positionID uuid.UUID) (*models.Position, error)

	// ListByOrg returns positions of an organization ordered by level then name,
	// optionally restricted to one department.
	ListByOrg(ctx context.Context, orgID uuid.UUID, departmentID *uuid.UUID) ([]*models.Position, error)

	// Update updates a position within position.OrgID.
	// Returns ErrPositionNotFound if the position doesn't exist in that organization.
	Update(ctx context.Context, position *models.Position) error

	// Delete deletes a position within orgID.
	// Returns ErrPositionNotFound if the position doesn't exist in orgID.
	Delete(ctx context.Context, orgID, positionID uuid.UUID) error
}
