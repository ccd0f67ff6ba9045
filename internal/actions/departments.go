package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/auth"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

// DepartmentInput carries the editable fields of a department.
type DepartmentInput struct {
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
}

func (in *DepartmentInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return invalid("name", "department name is required")
	}
	in.Description = optional(in.Description)
	return nil
}

// ListDepartments returns the departments of the caller's organization.
func (s *Service) ListDepartments(ctx context.Context, ac *auth.AuthContext) (result []*models.Department, err error) {
	defer s.observe(ctx, "listDepartments", time.Now(), &err)

	if err := auth.RequireMember(ac); err != nil {
		return nil, err
	}

	departments, err := s.stores.Departments.ListByOrg(ctx, ac.OrgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}

	return departments, nil
}

// GetDepartment returns one department of the caller's organization.
func (s *Service) GetDepartment(ctx context.Context, ac *auth.AuthContext, departmentID uuid.UUID) (result *models.Department, err error) {
	defer s.observe(ctx, "getDepartment", time.Now(), &err)

	if err := auth.RequireMember(ac); err != nil {
		return nil, err
	}

	return s.department(ctx, ac.OrgID, departmentID)
}

func (s *Service) department(ctx context.Context, orgID, departmentID uuid.UUID) (*models.Department, error) {
	department, err := s.stores.Departments.Get(ctx, orgID, departmentID)
	if err != nil {
		if errors.Is(err, store.ErrDepartmentNotFound) {
			return nil, notFound("department")
		}
		return nil, fmt.Errorf("failed to load department: %w", err)
	}
	return department, nil
}

// checkDepartmentRef verifies an optional department reference belongs to orgID.
func (s *Service) checkDepartmentRef(ctx context.Context, orgID uuid.UUID, field string, departmentID *uuid.UUID) error {
	if departmentID == nil {
		return nil
	}
	if _, err := s.department(ctx, orgID, *departmentID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalid(field, "department does not exist")
		}
		return err
	}
	return nil
}

// CreateDepartment creates a department in the caller's organization.
func (s *Service) CreateDepartment(ctx context.Context, ac *auth.AuthContext, in DepartmentInput) (result *models.Department, err error) {
	defer s.observe(ctx, "createDepartment", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermDepartmentsManage); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkDepartmentRef(ctx, ac.OrgID, "parent_id", in.ParentID); err != nil {
		return nil, err
	}

	departmentID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate department ID: %w", err)
	}

	now := s.now()
	department := &models.Department{
		DepartmentID: departmentID,
		OrgID:        ac.OrgID,
		Name:         in.Name,
		Description:  in.Description,
		ParentID:     in.ParentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.stores.Departments.Create(ctx, department); err != nil {
		if errors.Is(err, store.ErrDepartmentAlreadyExists) {
			return nil, conflict("department")
		}
		return nil, fmt.Errorf("failed to create department: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/admin/departments", "/admin/departments/new", "/admin/employees/new")

	return department, nil
}

// UpdateDepartment updates a department of the caller's organization.
func (s *Service) UpdateDepartment(ctx context.Context, ac *auth.AuthContext, departmentID uuid.UUID, in DepartmentInput) (result *models.Department, err error) {
	defer s.observe(ctx, "updateDepartment", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermDepartmentsManage); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.ParentID != nil && *in.ParentID == departmentID {
		return nil, invalid("parent_id", "a department cannot be its own parent")
	}
	if err := s.checkDepartmentRef(ctx, ac.OrgID, "parent_id", in.ParentID); err != nil {
		return nil, err
	}

	department, err := s.department(ctx, ac.OrgID, departmentID)
	if err != nil {
		return nil, err
	}

	department.Name = in.Name
	department.Description = in.Description
	department.ParentID = in.ParentID

	if err := s.stores.Departments.Update(ctx, department); err != nil {
		if errors.Is(err, store.ErrDepartmentNotFound) {
			return nil, notFound("department")
		}
		return nil, fmt.Errorf("failed to update department: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/admin/departments", "/admin/departments/"+departmentID.String())

	return department, nil
}

// DeleteDepartment deletes a department of the caller's organization. A
// department ID from another organization is reported as not found.
func (s *Service) DeleteDepartment(ctx context.Context, ac *auth.AuthContext, departmentID uuid.UUID) (err error) {
	defer s.observe(ctx, "deleteDepartment", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermDepartmentsManage); err != nil {
		return err
	}

	if err := s.stores.Departments.Delete(ctx, ac.OrgID, departmentID); err != nil {
		if errors.Is(err, store.ErrDepartmentNotFound) {
			return notFound("department")
		}
		return fmt.Errorf("failed to delete department: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/admin/departments")

	return nil
}
