package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

const departmentColumns = `department_id, org_id, name, description, parent_id, created_at, updated_at`

// DepartmentStore implements store.DepartmentStore using PostgreSQL.
type DepartmentStore struct {
	pool *pgxpool.Pool
}

// NewDepartmentStore creates a new PostgreSQL-backed department store.
func NewDepartmentStore(pool *pgxpool.Pool) *DepartmentStore {
	return &DepartmentStore{
		pool: pool,
	}
}

// Create creates a department.
func (s *DepartmentStore) Create(ctx context.Context, department *models.Department) error {
	query := `INSERT INTO departments (` + departmentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		department.DepartmentID,
		department.OrgID,
		department.Name,
		department.Description,
		department.ParentID,
		department.CreatedAt,
		department.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDepartmentAlreadyExists
		}
		return fmt.Errorf("failed to create department: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("department_id", department.DepartmentID.String()).
		Str("org_id", department.OrgID.String()).
		Msg("Created department")

	return nil
}

// Get retrieves a department within orgID.
func (s *DepartmentStore) Get(ctx context.Context, orgID, departmentID uuid.UUID) (*models.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE org_id = $1 AND department_id = $2`

	department, err := scanDepartment(s.pool.QueryRow(ctx, query, orgID, departmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrDepartmentNotFound
		}
		return nil, fmt.Errorf("failed to get department: %w", err)
	}

	return department, nil
}

// ListByOrg returns the departments of an organization ordered by name.
func (s *DepartmentStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Department, error) {
	query := `SELECT ` + departmentColumns + ` FROM departments WHERE org_id = $1 ORDER BY name`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	var departments []*models.Department
	for rows.Next() {
		department, err := scanDepartment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		departments = append(departments, department)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating departments: %w", err)
	}

	return departments, nil
}

// Update updates a department within department.OrgID.
func (s *DepartmentStore) Update(ctx context.Context, department *models.Department) error {
	department.UpdatedAt = time.Now()

	query := `
		UPDATE departments SET
			name = $3,
			description = $4,
			parent_id = $5,
			updated_at = $6
		WHERE org_id = $1 AND department_id = $2
	`

	result, err := s.pool.Exec(ctx, query,
		department.OrgID,
		department.DepartmentID,
		department.Name,
		department.Description,
		department.ParentID,
		department.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update department: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrDepartmentNotFound
	}

	return nil
}

// Delete deletes a department; references from children, positions and
// employees are cleared by ON DELETE SET NULL.
func (s *DepartmentStore) Delete(ctx context.Context, orgID, departmentID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM departments WHERE org_id = $1 AND department_id = $2`, orgID, departmentID)
	if err != nil {
		return fmt.Errorf("failed to delete department: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrDepartmentNotFound
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("department_id", departmentID.String()).
		Msg("Deleted department")

	return nil
}

func scanDepartment(row pgx.Row) (*models.Department, error) {
	var d models.Department
	err := row.Scan(
		&d.DepartmentID,
		&d.OrgID,
		&d.Name,
		&d.Description,
		&d.ParentID,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
