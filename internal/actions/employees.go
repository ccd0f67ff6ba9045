package actions

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/auth"
	"github.com/wolfeidau/hrdesk/internal/invite"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

// EmployeeInput carries the editable fields of an employee. An empty
// EmployeeCode on create assigns the next code for the organization.
type EmployeeInput struct {
	EmployeeCode   string     `json:"employee_code"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Nickname       *string    `json:"nickname,omitempty"`
	Email          *string    `json:"email,omitempty"`
	Phone          *string    `json:"phone,omitempty"`
	DepartmentID   *uuid.UUID `json:"department_id,omitempty"`
	PositionID     *uuid.UUID `json:"position_id,omitempty"`
	EmploymentType string     `json:"employment_type"`
	BaseSalary     *float64   `json:"base_salary,omitempty"`
	StartDate      time.Time  `json:"start_date"`
	Status         string     `json:"status,omitempty"` // update only: active or inactive
}

func (in *EmployeeInput) validate() error {
	in.EmployeeCode = strings.TrimSpace(in.EmployeeCode)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Nickname = optional(in.Nickname)
	in.Email = optional(in.Email)
	in.Phone = optional(in.Phone)

	if in.FirstName == "" {
		return invalid("first_name", "first name is required")
	}
	if in.LastName == "" {
		return invalid("last_name", "last name is required")
	}
	if in.Email != nil {
		if _, err := mail.ParseAddress(*in.Email); err != nil {
			return invalid("email", "invalid email address")
		}
	}

	switch in.EmploymentType {
	case "":
		in.EmploymentType = models.EmploymentTypeFullTime
	case models.EmploymentTypeFullTime, models.EmploymentTypePartTime,
		models.EmploymentTypeContract, models.EmploymentTypeIntern:
	default:
		return invalid("employment_type", "must be one of full-time, part-time, contract, intern")
	}

	if in.BaseSalary != nil && *in.BaseSalary < 0 {
		return invalid("base_salary", "must not be negative")
	}
	if in.StartDate.IsZero() {
		return invalid("start_date", "start date is required")
	}

	return nil
}

// checkEmployeeRefs verifies department and position references belong to orgID.
func (s *Service) checkEmployeeRefs(ctx context.Context, orgID uuid.UUID, in *EmployeeInput) error {
	if err := s.checkDepartmentRef(ctx, orgID, "department_id", in.DepartmentID); err != nil {
		return err
	}
	if in.PositionID == nil {
		return nil
	}
	if _, err := s.position(ctx, orgID, *in.PositionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalid("position_id", "position does not exist")
		}
		return err
	}
	return nil
}

// ListEmployees returns the employees of the caller's organization.
func (s *Service) ListEmployees(ctx context.Context, ac *auth.AuthContext, filter store.EmployeeFilter) (result []*models.Employee, err error) {
	defer s.observe(ctx, "listEmployees", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermEmployeesRead); err != nil {
		return nil, err
	}

	employees, err := s.stores.Employees.ListByOrg(ctx, ac.OrgID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}

	return employees, nil
}

// GetEmployee returns one employee of the caller's organization.
func (s *Service) GetEmployee(ctx context.Context, ac *auth.AuthContext, employeeID uuid.UUID) (result *models.Employee, err error) {
	defer s.observe(ctx, "getEmployee", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermEmployeesRead); err != nil {
		return nil, err
	}

	return s.employee(ctx, ac.OrgID, employeeID)
}

func (s *Service) employee(ctx context.Context, orgID, employeeID uuid.UUID) (*models.Employee, error) {
	employee, err := s.stores.Employees.Get(ctx, orgID, employeeID)
	if err != nil {
		if errors.Is(err, store.ErrEmployeeNotFound) {
			return nil, notFound("employee")
		}
		return nil, fmt.Errorf("failed to load employee: %w", err)
	}
	return employee, nil
}

// CreateEmployee creates a pending employee and issues a personal invite code
// the employee later redeems from LINE.
func (s *Service) CreateEmployee(ctx context.Context, ac *auth.AuthContext, in EmployeeInput) (result *models.Employee, err error) {
	defer s.observe(ctx, "createEmployee", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermEmployeesCreate); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkEmployeeRefs(ctx, ac.OrgID, &in); err != nil {
		return nil, err
	}

	employeeID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate employee ID: %w", err)
	}

	now := s.now()
	createdBy := ac.PrincipalID
	employee := &models.Employee{
		EmployeeID:     employeeID,
		OrgID:          ac.OrgID,
		EmployeeCode:   in.EmployeeCode,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Nickname:       in.Nickname,
		Email:          in.Email,
		Phone:          in.Phone,
		DepartmentID:   in.DepartmentID,
		PositionID:     in.PositionID,
		EmploymentType: in.EmploymentType,
		BaseSalary:     in.BaseSalary,
		StartDate:      in.StartDate,
		Status:         models.EmployeeStatusPending,
		CreatedBy:      &createdBy,
		UpdatedBy:      &createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.stores.Employees.Create(ctx, employee); err != nil {
		if errors.Is(err, store.ErrEmployeeAlreadyExists) {
			return nil, invalid("employee_code", "employee code is already in use")
		}
		return nil, fmt.Errorf("failed to create employee: %w", err)
	}

	// The employee stays pending without an invite on failure; ResendEmployeeInvite issues one.
	code, expiresAt, err := s.ledger.IssueEmployeeInvite(ctx, ac.OrgID, employeeID, s.employeeInviteTTL)
	if err != nil {
		log.Error().Err(err).Str("employee_id", employeeID.String()).Msg("Failed to issue employee invite")
	} else {
		employee.InviteCode = &code
		employee.InviteExpiresAt = &expiresAt
		employee.InviteSentAt = &now
	}

	s.invalidator.Invalidate(ctx, "/admin/employees")

	return employee, nil
}

// UpdateEmployee updates an employee of the caller's organization.
func (s *Service) UpdateEmployee(ctx context.Context, ac *auth.AuthContext, employeeID uuid.UUID, in EmployeeInput) (result *models.Employee, err error) {
	defer s.observe(ctx, "updateEmployee", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermEmployeesUpdate); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkEmployeeRefs(ctx, ac.OrgID, &in); err != nil {
		return nil, err
	}

	employee, err := s.employee(ctx, ac.OrgID, employeeID)
	if err != nil {
		return nil, err
	}

	status, err := nextEmployeeStatus(employee.Status, in.Status)
	if err != nil {
		return nil, err
	}

	if in.EmployeeCode != "" {
		employee.EmployeeCode = in.EmployeeCode
	}
	updatedBy := ac.PrincipalID
	employee.FirstName = in.FirstName
	employee.LastName = in.LastName
	employee.Nickname = in.Nickname
	employee.Email = in.Email
	employee.Phone = in.Phone
	employee.DepartmentID = in.DepartmentID
	employee.PositionID = in.PositionID
	employee.EmploymentType = in.EmploymentType
	employee.BaseSalary = in.BaseSalary
	employee.StartDate = in.StartDate
	employee.Status = status
	employee.UpdatedBy = &updatedBy

	if err := s.stores.Employees.Update(ctx, employee); err != nil {
		switch {
		case errors.Is(err, store.ErrEmployeeNotFound):
			return nil, notFound("employee")
		case errors.Is(err, store.ErrEmployeeAlreadyExists):
			return nil, invalid("employee_code", "employee code is already in use")
		}
		return nil, fmt.Errorf("failed to update employee: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/admin/employees", "/admin/employees/"+employeeID.String())

	return employee, nil
}

// nextEmployeeStatus applies a requested status change. Pending employees
// only become active by linking LINE.
func nextEmployeeStatus(current, requested string) (string, error) {
	switch requested {
	case "", current:
		return current, nil
	case models.EmployeeStatusActive:
		if current == models.EmployeeStatusPending {
			return "", invalid("status", "pending employees become active by linking their LINE account")
		}
		return requested, nil
	case models.EmployeeStatusInactive:
		return requested, nil
	default:
		return "", invalid("status", "must be active or inactive")
	}
}

// DeleteEmployee deletes an employee of the caller's organization.
func (s *Service) DeleteEmployee(ctx context.Context, ac *auth.AuthContext, employeeID uuid.UUID) (err error) {
	defer s.observe(ctx, "deleteEmployee", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermEmployeesDelete); err != nil {
		return err
	}

	if err := s.stores.Employees.Delete(ctx, ac.OrgID, employeeID); err != nil {
		if errors.Is(err, store.ErrEmployeeNotFound) {
			return notFound("employee")
		}
		return fmt.Errorf("failed to delete employee: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/admin/employees", "/admin/employees/"+employeeID.String())

	return nil
}

// ResendEmployeeInvite replaces the invite code of a pending employee.
func (s *Service) ResendEmployeeInvite(ctx context.Context, ac *auth.AuthContext, employeeID uuid.UUID) (result *models.Employee, err error) {
	defer s.observe(ctx, "resendEmployeeInvite", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermEmployeesUpdate); err != nil {
		return nil, err
	}

	employee, err := s.employee(ctx, ac.OrgID, employeeID)
	if err != nil {
		return nil, err
	}
	if employee.Status != models.EmployeeStatusPending {
		return nil, invite.ErrAlreadyLinked
	}

	if _, _, err := s.ledger.IssueEmployeeInvite(ctx, ac.OrgID, employeeID, s.employeeInviteTTL); err != nil {
		if errors.Is(err, store.ErrEmployeeNotFound) {
			return nil, notFound("employee")
		}
		return nil, err
	}

	s.invalidator.Invalidate(ctx, "/admin/employees/"+employeeID.String())

	return s.employee(ctx, ac.OrgID, employeeID)
}

// GetEmployeeByInviteCode returns the pending employee holding an unexpired
// invite code. It runs before the caller belongs to an organization.
func (s *Service) GetEmployeeByInviteCode(ctx context.Context, code string) (result *models.Employee, err error) {
	defer s.observe(ctx, "getEmployeeByInviteCode", time.Now(), &err)

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, invalid("code", "invite code is required")
	}

	return s.ledger.LookupEmployeeInvite(ctx, code)
}

// LinkEmployeeWithLine binds the caller's LINE identity to a pending employee.
func (s *Service) LinkEmployeeWithLine(ctx context.Context, ac *auth.AuthContext, employeeCode, inviteCode string) (result *models.Employee, err error) {
	defer s.observe(ctx, "linkEmployeeWithLine", time.Now(), &err)

	if ac == nil || ac.PrincipalID == uuid.Nil {
		return nil, auth.ErrNotAuthenticated
	}

	lineUserID := ac.LineUserID()
	if lineUserID == "" {
		return nil, invite.ErrLineIdentityRequired
	}

	employeeCode = strings.TrimSpace(employeeCode)
	if employeeCode == "" {
		return nil, invalid("employee_code", "employee code is required")
	}
	inviteCode = strings.TrimSpace(inviteCode)
	if inviteCode == "" {
		return nil, invalid("invite_code", "invite code is required")
	}

	principalID := ac.PrincipalID
	employee, err := s.ledger.LinkEmployee(ctx, invite.LinkRequest{
		EmployeeCode: employeeCode,
		InviteCode:   inviteCode,
		LineUserID:   lineUserID,
		UserID:       &principalID,
	})
	if err != nil {
		return nil, err
	}

	s.invalidator.Invalidate(ctx, "/admin/employees")

	return employee, nil
}
