package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfeidau/hrdesk/internal/store"
)

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// constraintName returns the violated constraint, or "" for non-PostgreSQL errors.
func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// mapPostgresError maps PostgreSQL-specific errors to sentinel errors.
// Returns the original error if it's not a PostgreSQL error or doesn't match known patterns.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		switch pgErr.ConstraintName {
		case "identities_provider_subject_key", "identities_pkey":
			return store.ErrIdentityAlreadyExists
		case "profiles_pkey":
			return store.ErrProfileAlreadyExists
		case "roles_org_id_name_key", "roles_pkey":
			return store.ErrRoleAlreadyExists
		case "invite_codes_code_key", "invite_codes_pkey":
			return store.ErrInviteCodeAlreadyExists
		case "employees_org_id_employee_code_key", "employees_pkey":
			return store.ErrEmployeeAlreadyExists
		case "idx_employees_invite_code":
			return store.ErrEmployeeInviteTaken
		case "idx_employees_org_line_user":
			return store.ErrLineUserAlreadyLinked
		case "departments_pkey":
			return store.ErrDepartmentAlreadyExists
		case "positions_pkey":
			return store.ErrPositionAlreadyExists
		case "organizations_pkey":
			return store.ErrOrganizationAlreadyExists
		}
		return fmt.Errorf("unique constraint violation: %s: %w", pgErr.ConstraintName, err)

	case pgerrcode.ForeignKeyViolation:
		switch pgErr.ConstraintName {
		case "role_permissions_permission_key_fkey":
			return fmt.Errorf("%w: %s", store.ErrPermissionNotFound, pgErr.Detail)
		case "user_roles_role_id_fkey", "invite_codes_role_id_fkey":
			return fmt.Errorf("%w: %s", store.ErrRoleNotFound, pgErr.Detail)
		case "employees_department_id_fkey", "positions_department_id_fkey", "departments_parent_id_fkey":
			return fmt.Errorf("%w: %s", store.ErrDepartmentNotFound, pgErr.Detail)
		case "employees_position_id_fkey":
			return fmt.Errorf("%w: %s", store.ErrPositionNotFound, pgErr.Detail)
		case "profiles_principal_id_fkey", "sessions_principal_id_fkey":
			return fmt.Errorf("%w: %s", store.ErrIdentityNotFound, pgErr.Detail)
		}
		return fmt.Errorf("%w: %s", store.ErrOrganizationNotFound, pgErr.Detail)

	case pgerrcode.CheckViolation:
		if pgErr.ConstraintName == "invite_codes_used_count_check" {
			return store.ErrInviteCodeConflict
		}
		return fmt.Errorf("check constraint violation: %s: %w", pgErr.ConstraintName, err)

	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return fmt.Errorf("transaction conflict (retryable): %w", err)

	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection:
		return fmt.Errorf("database connection error: %w", err)

	case pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown:
		return fmt.Errorf("database server unavailable: %w", err)

	case pgerrcode.QueryCanceled:
		return fmt.Errorf("query canceled: %w", err)

	case pgerrcode.InsufficientResources,
		pgerrcode.DiskFull,
		pgerrcode.OutOfMemory,
		pgerrcode.TooManyConnections:
		return fmt.Errorf("database resource limit: %w", err)

	default:
		return fmt.Errorf("postgres error [%s]: %s (detail: %s, hint: %s): %w",
			pgErr.Code, pgErr.Message, pgErr.Detail, pgErr.Hint, err)
	}
}
