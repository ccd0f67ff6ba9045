package models

import (
	"time"

	"github.com/google/uuid"
)

// Employee statuses. New employees start pending until they link a LINE account
// using their personal invite code.
const (
	EmployeeStatusPending  = "pending"
	EmployeeStatusActive   = "active"
	EmployeeStatusInactive = "inactive"
)

// Employment types.
const (
	EmploymentTypeFullTime = "full-time"
	EmploymentTypePartTime = "part-time"
	EmploymentTypeContract = "contract"
	EmploymentTypeIntern   = "intern"
)

// Employee is an HR record within an organization. It is not the same thing as a
// Profile: an employee may never sign in, and linking binds a LINE identity to it.
type Employee struct {
	EmployeeID   uuid.UUID `json:"id"` // UUIDv7
	OrgID        uuid.UUID `json:"org_id"`
	EmployeeCode string    `json:"employee_code"` // Unique per organization

	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Nickname  *string `json:"nickname,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`

	DepartmentID   *uuid.UUID `json:"department_id,omitempty"`
	PositionID     *uuid.UUID `json:"position_id,omitempty"`
	EmploymentType string     `json:"employment_type"`
	BaseSalary     *float64   `json:"base_salary,omitempty"`
	StartDate      time.Time  `json:"start_date"`
	Status         string     `json:"status"`

	// Personal invite used to link a LINE identity; cleared once linked.
	InviteCode      *string    `json:"invite_code,omitempty"`
	InviteExpiresAt *time.Time `json:"invite_expires_at,omitempty"`
	InviteSentAt    *time.Time `json:"invite_sent_at,omitempty"`

	LineUserID *string    `json:"line_user_id,omitempty"`
	UserID     *uuid.UUID `json:"user_id,omitempty"`

	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// InviteRedeemable reports whether the employee's invite can still be used at now.
func (e *Employee) InviteRedeemable(now time.Time) bool {
	return e.Status == EmployeeStatusPending &&
		e.InviteCode != nil &&
		e.InviteExpiresAt != nil &&
		now.Before(*e.InviteExpiresAt)
}

// FullName returns the employee's first and last name.
func (e *Employee) FullName() string {
	return e.FirstName + " " + e.LastName
}
