package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

const employeeColumns = `
	employee_id, org_id, employee_code, first_name, last_name, nickname,
	email, phone, department_id, position_id, employment_type, base_salary,
	start_date, status, invite_code, invite_expires_at, invite_sent_at,
	line_user_id, user_id, created_by, updated_by, created_at, updated_at
`

// EmployeeStore implements store.EmployeeStore using PostgreSQL.
type EmployeeStore struct {
	pool *pgxpool.Pool
}

// NewEmployeeStore creates a new PostgreSQL-backed employee store.
func NewEmployeeStore(pool *pgxpool.Pool) *EmployeeStore {
	return &EmployeeStore{
		pool: pool,
	}
}

// Create creates an employee, assigning the next EMP code when none is given.
// Code assignment is serialised per organization with a transaction-scoped
// advisory lock.
func (s *EmployeeStore) Create(ctx context.Context, employee *models.Employee) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	if employee.EmployeeCode == "" {
		code, err := nextEmployeeCode(ctx, tx, employee.OrgID)
		if err != nil {
			return err
		}
		employee.EmployeeCode = code
	}

	query := `INSERT INTO employees (` + employeeColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23
	)`

	_, err = tx.Exec(ctx, query,
		employee.EmployeeID,
		employee.OrgID,
		employee.EmployeeCode,
		employee.FirstName,
		employee.LastName,
		employee.Nickname,
		employee.Email,
		employee.Phone,
		employee.DepartmentID,
		employee.PositionID,
		employee.EmploymentType,
		employee.BaseSalary,
		employee.StartDate,
		employee.Status,
		employee.InviteCode,
		employee.InviteExpiresAt,
		employee.InviteSentAt,
		employee.LineUserID,
		employee.UserID,
		employee.CreatedBy,
		employee.UpdatedBy,
		employee.CreatedAt,
		employee.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create employee: %w", mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit employee: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("employee_id", employee.EmployeeID.String()).
		Str("org_id", employee.OrgID.String()).
		Str("employee_code", employee.EmployeeCode).
		Msg("Created employee")

	return nil
}

func nextEmployeeCode(ctx context.Context, tx pgx.Tx, orgID uuid.UUID) (string, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "employees:"+orgID.String()); err != nil {
		return "", fmt.Errorf("failed to lock employee codes: %w", err)
	}

	var n int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM employees WHERE org_id = $1`, orgID).Scan(&n); err != nil {
		return "", fmt.Errorf("failed to count employees: %w", err)
	}

	for {
		n++
		code := fmt.Sprintf("EMP%04d", n)

		var taken bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM employees WHERE org_id = $1 AND employee_code = $2)`,
			orgID, code,
		).Scan(&taken)
		if err != nil {
			return "", fmt.Errorf("failed to check employee code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
}

// Get retrieves an employee within orgID.
func (s *EmployeeStore) Get(ctx context.Context, orgID, employeeID uuid.UUID) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE org_id = $1 AND employee_id = $2`

	employee, err := scanEmployee(s.pool.QueryRow(ctx, query, orgID, employeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}

	return employee, nil
}

// ListByOrg returns the employees of an organization ordered by employee code.
func (s *EmployeeStore) ListByOrg(ctx context.Context, orgID uuid.UUID, filter store.EmployeeFilter) ([]*models.Employee, error) {
	conditions := []string{"org_id = $1"}
	args := []any{orgID}

	if filter.DepartmentID != nil {
		args = append(args, *filter.DepartmentID)
		conditions = append(conditions, fmt.Sprintf("department_id = $%d", len(args)))
	}
	if filter.PositionID != nil {
		args = append(args, *filter.PositionID)
		conditions = append(conditions, fmt.Sprintf("position_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + employeeColumns + ` FROM employees WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY employee_code`

	return s.queryMany(ctx, query, args...)
}

func (s *EmployeeStore) queryMany(ctx context.Context, query string, args ...any) ([]*models.Employee, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []*models.Employee
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, employee)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating employees: %w", err)
	}

	return employees, nil
}

// Update updates the editable attributes of an employee.
func (s *EmployeeStore) Update(ctx context.Context, employee *models.Employee) error {
	employee.UpdatedAt = time.Now()

	query := `
		UPDATE employees SET
			employee_code = $3,
			first_name = $4,
			last_name = $5,
			nickname = $6,
			email = $7,
			phone = $8,
			department_id = $9,
			position_id = $10,
			employment_type = $11,
			base_salary = $12,
			start_date = $13,
			status = $14,
			updated_by = $15,
			updated_at = $16
		WHERE org_id = $1 AND employee_id = $2
	`

	result, err := s.pool.Exec(ctx, query,
		employee.OrgID,
		employee.EmployeeID,
		employee.EmployeeCode,
		employee.FirstName,
		employee.LastName,
		employee.Nickname,
		employee.Email,
		employee.Phone,
		employee.DepartmentID,
		employee.PositionID,
		employee.EmploymentType,
		employee.BaseSalary,
		employee.StartDate,
		employee.Status,
		employee.UpdatedBy,
		employee.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update employee: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrEmployeeNotFound
	}

	log.Debug().
		Str("employee_id", employee.EmployeeID.String()).
		Msg("Updated employee")

	return nil
}

// Delete deletes an employee within orgID.
func (s *EmployeeStore) Delete(ctx context.Context, orgID, employeeID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM employees WHERE org_id = $1 AND employee_id = $2`, orgID, employeeID)
	if err != nil {
		return fmt.Errorf("failed to delete employee: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrEmployeeNotFound
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("employee_id", employeeID.String()).
		Msg("Deleted employee")

	return nil
}

// SetInvite stores a fresh invite on a pending employee.
func (s *EmployeeStore) SetInvite(ctx context.Context, orgID, employeeID uuid.UUID, code string, expiresAt, sentAt time.Time) error {
	query := `
		UPDATE employees SET
			invite_code = $3,
			invite_expires_at = $4,
			invite_sent_at = $5,
			updated_at = now()
		WHERE org_id = $1 AND employee_id = $2 AND status = 'pending'
	`

	result, err := s.pool.Exec(ctx, query, orgID, employeeID, code, expiresAt, sentAt)
	if err != nil {
		return fmt.Errorf("failed to set employee invite: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrEmployeeNotFound
	}

	return nil
}

// GetPendingByInviteCode returns the pending employee with a matching unexpired invite.
func (s *EmployeeStore) GetPendingByInviteCode(ctx context.Context, code string, now time.Time) (*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees
		WHERE invite_code = $1 AND status = 'pending' AND invite_expires_at > $2`

	employee, err := scanEmployee(s.pool.QueryRow(ctx, query, code, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee by invite: %w", err)
	}

	return employee, nil
}

// FindByEmployeeCode returns every employee with the code, across organizations.
func (s *EmployeeStore) FindByEmployeeCode(ctx context.Context, employeeCode string) ([]*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees WHERE employee_code = $1 ORDER BY created_at`
	return s.queryMany(ctx, query, employeeCode)
}

// LinkIdentity binds a LINE identity to the matching pending employee.
// Candidate rows are locked with FOR UPDATE and the final UPDATE repeats the
// pending, invite code and expiry conditions, so only one concurrent attempt
// can succeed.
func (s *EmployeeStore) LinkIdentity(ctx context.Context, params store.LinkParams) (*models.Employee, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	rows, err := tx.Query(ctx, `
		SELECT employee_id FROM employees
		WHERE employee_code = $1
			AND status = 'pending'
			AND invite_code IS NOT NULL
			AND invite_expires_at > $2
			AND invite_code = $3
		FOR UPDATE
	`, params.EmployeeCode, params.Now, params.InviteCode)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending employee: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending employee: %w", err)
	}

	switch len(ids) {
	case 0:
		return nil, store.ErrEmployeeNotFound
	case 1:
	default:
		return nil, store.ErrEmployeeAmbiguous
	}

	query := `
		UPDATE employees SET
			status = 'active',
			line_user_id = $2,
			user_id = $3,
			invite_code = NULL,
			invite_expires_at = NULL,
			updated_at = $4
		WHERE employee_id = $1
			AND status = 'pending'
			AND invite_code = $5
			AND invite_expires_at > $4
		RETURNING ` + employeeColumns

	employee, err := scanEmployee(tx.QueryRow(ctx, query, ids[0], params.LineUserID, params.UserID, params.Now, params.InviteCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrEmployeeNotFound
		}
		if isUniqueViolation(err) && constraintName(err) == "idx_employees_org_line_user" {
			return nil, store.ErrLineUserAlreadyLinked
		}
		return nil, fmt.Errorf("failed to link employee: %w", mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit employee link: %w", mapPostgresError(err))
	}

	log.Info().
		Str("employee_id", employee.EmployeeID.String()).
		Str("org_id", employee.OrgID.String()).
		Msg("Linked LINE identity to employee")

	return employee, nil
}

func scanEmployee(row pgx.Row) (*models.Employee, error) {
	var e models.Employee
	err := row.Scan(
		&e.EmployeeID,
		&e.OrgID,
		&e.EmployeeCode,
		&e.FirstName,
		&e.LastName,
		&e.Nickname,
		&e.Email,
		&e.Phone,
		&e.DepartmentID,
		&e.PositionID,
		&e.EmploymentType,
		&e.BaseSalary,
		&e.StartDate,
		&e.Status,
		&e.InviteCode,
		&e.InviteExpiresAt,
		&e.InviteSentAt,
		&e.LineUserID,
		&e.UserID,
		&e.CreatedBy,
		&e.UpdatedBy,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
