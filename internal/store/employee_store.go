package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
)

// Sentinel errors for employee store operations
var (
	ErrEmployeeNotFound      = errors.New("employee not found")
	ErrEmployeeAlreadyExists = errors.New("employee already exists")
	ErrEmployeeAmbiguous     = errors.New("employee code matches more than one pending employee")
	ErrLineUserAlreadyLinked = errors.New("LINE account already linked to another employee")
	ErrEmployeeInviteTaken   = errors.New("employee invite code is already in use")
)

// EmployeeFilter narrows ListByOrg. Zero values match everything.
type EmployeeFilter struct {
	DepartmentID *uuid.UUID
	PositionID   *uuid.UUID
	Status       string
}

// LinkParams describes a LINE identity link against a pending employee.
type LinkParams struct {
	EmployeeCode string
	InviteCode   string
	LineUserID   string
	UserID       *uuid.UUID
	Now          time.Time
}

// EmployeeStore persists employees. All reads and writes issued on behalf of a
// console user are scoped by organization ID; the invite lookups are not, since
// they run before the caller belongs to a tenant.
type EmployeeStore interface {
	// Create creates an employee. An empty EmployeeCode is assigned the next
	// sequential code for the organization (EMP0001, EMP0002, ...).
	// Returns ErrEmployeeAlreadyExists if the employee code is taken in the organization.
	Create(ctx context.Context, employee *models.Employee) error

	// Get retrieves an employee within orgID.
	// Returns ErrEmployeeNotFound if the employee doesn't exist in orgID.
	Get(ctx context.Context, orgID, employeeID uuid.UUID) (*models.Employee, error)

	// ListByOrg returns employees of an organization ordered by employee code.
	ListByOrg(ctx context.Context, orgID uuid.UUID, filter EmployeeFilter) ([]*models.Employee, error)

	// Update updates the editable attributes of an employee within employee.OrgID.
	// Returns ErrEmployeeNotFound if the employee doesn't exist in that organization.
	Update(ctx context.Context, employee *models.Employee) error

	// Delete deletes an employee within orgID.
	// Returns ErrEmployeeNotFound if the employee doesn't exist in orgID.
	Delete(ctx context.Context, orgID, employeeID uuid.UUID) error

	// SetInvite stores a fresh personal invite for a pending employee within orgID.
	// Returns ErrEmployeeNotFound if no pending employee matches and
	// ErrEmployeeInviteTaken if another employee holds the code.
	SetInvite(ctx context.Context, orgID, employeeID uuid.UUID, code string, expiresAt, sentAt time.Time) error

	// GetPendingByInviteCode returns the pending employee whose unexpired invite matches code.
	// Returns ErrEmployeeNotFound otherwise.
	GetPendingByInviteCode(ctx context.Context, code string, now time.Time) (*models.Employee, error)

	// FindByEmployeeCode returns every employee carrying the code, across organizations.
	FindByEmployeeCode(ctx context.Context, employeeCode string) ([]*models.Employee, error)

	// LinkIdentity atomically binds a LINE identity to the single pending employee
	// matching params, activating it and consuming its invite. The update is
	// conditional on status, invite code and expiry so concurrent attempts cannot
	// both succeed.
	// Returns ErrEmployeeNotFound when no row matched, ErrEmployeeAmbiguous when
	// more than one did, and ErrLineUserAlreadyLinked when the LINE user is already
	// bound to another employee of the same organization.
	LinkIdentity(ctx context.Context, params LinkParams) (*models.Employee, error)
}
