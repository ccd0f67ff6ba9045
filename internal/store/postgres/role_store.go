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

// roleSelect aggregates each role's permission keys into a sorted array.
const roleSelect = `
	SELECT
		r.role_id, r.org_id, r.name, r.description,
		COALESCE(array_agg(rp.permission_key ORDER BY rp.permission_key)
			FILTER (WHERE rp.permission_key IS NOT NULL), '{}') AS permission_keys,
		r.created_at, r.updated_at
	FROM roles r
	LEFT JOIN role_permissions rp ON rp.role_id = r.role_id
`

// RoleStore implements store.RoleStore using PostgreSQL.
type RoleStore struct {
	pool *pgxpool.Pool
}

// NewRoleStore creates a new PostgreSQL-backed role store.
func NewRoleStore(pool *pgxpool.Pool) *RoleStore {
	return &RoleStore{
		pool: pool,
	}
}

// SyncPermissions upserts the permission catalog.
func (s *RoleStore) SyncPermissions(ctx context.Context, permissions []*models.Permission) error {
	batch := &pgx.Batch{}
	for _, p := range permissions {
		batch.Queue(`
			INSERT INTO permissions (key, description, category)
			VALUES ($1, $2, $3)
			ON CONFLICT (key) DO UPDATE SET
				description = EXCLUDED.description,
				category = EXCLUDED.category
		`, p.Key, p.Description, p.Category)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to sync permissions: %w", mapPostgresError(err))
	}

	log.Debug().Int("count", len(permissions)).Msg("Synced permission catalog")

	return nil
}

// ListPermissions returns the permission catalog ordered by key.
func (s *RoleStore) ListPermissions(ctx context.Context) ([]*models.Permission, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, description, category FROM permissions ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	var permissions []*models.Permission
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.Key, &p.Description, &p.Category); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permissions: %w", err)
	}

	return permissions, nil
}

// Create creates a role and its permission grants in one transaction.
func (s *RoleStore) Create(ctx context.Context, role *models.Role) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO roles (role_id, org_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, role.RoleID, role.OrgID, role.Name, role.Description, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrRoleAlreadyExists
		}
		return fmt.Errorf("failed to create role: %w", mapPostgresError(err))
	}

	if err := insertGrants(ctx, tx, role.RoleID, role.PermissionKeys); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit role: %w", err)
	}

	log.Debug().
		Str("role_id", role.RoleID.String()).
		Str("org_id", role.OrgID.String()).
		Str("name", role.Name).
		Msg("Created role")

	return nil
}

func insertGrants(ctx context.Context, tx pgx.Tx, roleID uuid.UUID, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO role_permissions (role_id, permission_key)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING
	`, roleID, keys)
	if err != nil {
		return fmt.Errorf("failed to grant permissions: %w", mapPostgresError(err))
	}

	return nil
}

// Get retrieves a role within orgID.
func (s *RoleStore) Get(ctx context.Context, orgID, roleID uuid.UUID) (*models.Role, error) {
	query := roleSelect + ` WHERE r.org_id = $1 AND r.role_id = $2 GROUP BY r.role_id`
	return s.queryOne(ctx, query, orgID, roleID)
}

// GetByName retrieves a role within orgID by name.
func (s *RoleStore) GetByName(ctx context.Context, orgID uuid.UUID, name string) (*models.Role, error) {
	query := roleSelect + ` WHERE r.org_id = $1 AND r.name = $2 GROUP BY r.role_id`
	return s.queryOne(ctx, query, orgID, name)
}

func (s *RoleStore) queryOne(ctx context.Context, query string, args ...any) (*models.Role, error) {
	role, err := scanRole(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// ListByOrg returns the roles of an organization ordered by name.
func (s *RoleStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Role, error) {
	query := roleSelect + ` WHERE r.org_id = $1 GROUP BY r.role_id ORDER BY r.name`
	return s.queryMany(ctx, query, orgID)
}

func (s *RoleStore) queryMany(ctx context.Context, query string, args ...any) ([]*models.Role, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []*models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roles: %w", err)
	}

	return roles, nil
}

// Update replaces a role's name, description and permission grants.
func (s *RoleStore) Update(ctx context.Context, role *models.Role) error {
	role.UpdatedAt = time.Now()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	result, err := tx.Exec(ctx, `
		UPDATE roles SET name = $3, description = $4, updated_at = $5
		WHERE org_id = $1 AND role_id = $2
	`, role.OrgID, role.RoleID, role.Name, role.Description, role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrRoleAlreadyExists
		}
		return fmt.Errorf("failed to update role: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrRoleNotFound
	}

	if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, role.RoleID); err != nil {
		return fmt.Errorf("failed to clear permissions: %w", err)
	}

	if err := insertGrants(ctx, tx, role.RoleID, role.PermissionKeys); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit role: %w", err)
	}

	log.Debug().
		Str("role_id", role.RoleID.String()).
		Msg("Updated role")

	return nil
}

// Delete deletes a role; grants and assignments cascade.
func (s *RoleStore) Delete(ctx context.Context, orgID, roleID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE org_id = $1 AND role_id = $2`, orgID, roleID)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrRoleNotFound
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("role_id", roleID.String()).
		Msg("Deleted role")

	return nil
}

// AssignToUser assigns a role in orgID to a principal.
// The INSERT ... SELECT only matches when the role belongs to orgID.
func (s *RoleStore) AssignToUser(ctx context.Context, orgID, principalID, roleID uuid.UUID) error {
	query := `
		INSERT INTO user_roles (principal_id, role_id, assigned_at)
		SELECT $2, role_id, now() FROM roles WHERE org_id = $1 AND role_id = $3
		ON CONFLICT (principal_id, role_id) DO NOTHING
	`

	if _, err := s.pool.Exec(ctx, query, orgID, principalID, roleID); err != nil {
		return fmt.Errorf("failed to assign role: %w", mapPostgresError(err))
	}

	// Nothing inserted is either an existing assignment or a foreign role.
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM roles WHERE org_id = $1 AND role_id = $2)`,
		orgID, roleID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check role: %w", err)
	}
	if !exists {
		return store.ErrRoleNotFound
	}

	log.Debug().
		Str("principal_id", principalID.String()).
		Str("role_id", roleID.String()).
		Msg("Assigned role")

	return nil
}

// RemoveFromUser removes a role assignment within orgID.
func (s *RoleStore) RemoveFromUser(ctx context.Context, orgID, principalID, roleID uuid.UUID) error {
	query := `
		DELETE FROM user_roles ur
		USING roles r
		WHERE ur.role_id = r.role_id
			AND r.org_id = $1
			AND ur.principal_id = $2
			AND ur.role_id = $3
	`

	result, err := s.pool.Exec(ctx, query, orgID, principalID, roleID)
	if err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrRoleAssignmentNotFound
	}

	return nil
}

// RemoveFromUserUnlessLast removes a role assignment unless the principal is
// the only holder. The role row is locked FOR UPDATE so concurrent removals of
// the same role count holders one at a time.
func (s *RoleStore) RemoveFromUserUnlessLast(ctx context.Context, orgID, principalID, roleID uuid.UUID) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT role_id FROM roles WHERE org_id = $1 AND role_id = $2 FOR UPDATE`, orgID, roleID).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return store.ErrRoleAssignmentNotFound
			}
			return fmt.Errorf("failed to lock role: %w", err)
		}

		var held bool
		var holders int
		err = tx.QueryRow(ctx, `
			SELECT
				EXISTS(SELECT 1 FROM user_roles WHERE role_id = $1 AND principal_id = $2),
				(SELECT count(*) FROM user_roles WHERE role_id = $1)
		`, roleID, principalID).Scan(&held, &holders)
		if err != nil {
			return fmt.Errorf("failed to count role members: %w", err)
		}

		switch {
		case !held:
			return store.ErrRoleAssignmentNotFound
		case holders <= 1:
			return store.ErrLastRoleHolder
		}

		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE role_id = $1 AND principal_id = $2`, roleID, principalID); err != nil {
			return fmt.Errorf("failed to remove role: %w", err)
		}

		return nil
	})
}

// ListUserRoles returns the roles a principal holds in orgID.
func (s *RoleStore) ListUserRoles(ctx context.Context, orgID, principalID uuid.UUID) ([]*models.Role, error) {
	query := roleSelect + `
		JOIN user_roles ur ON ur.role_id = r.role_id
		WHERE r.org_id = $1 AND ur.principal_id = $2
		GROUP BY r.role_id
		ORDER BY r.name
	`
	return s.queryMany(ctx, query, orgID, principalID)
}

// CountMembers returns how many principals hold a role in orgID.
func (s *RoleStore) CountMembers(ctx context.Context, orgID, roleID uuid.UUID) (int, error) {
	var exists bool
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT
			EXISTS(SELECT 1 FROM roles WHERE org_id = $1 AND role_id = $2),
			(SELECT count(*) FROM user_roles ur JOIN roles r ON r.role_id = ur.role_id
				WHERE r.org_id = $1 AND ur.role_id = $2)
	`, orgID, roleID).Scan(&exists, &count)
	if err != nil {
		return 0, fmt.Errorf("failed to count role members: %w", err)
	}

	if !exists {
		return 0, store.ErrRoleNotFound
	}

	return count, nil
}

// PermissionKeys returns the union of keys granted to a principal by roles in orgID.
func (s *RoleStore) PermissionKeys(ctx context.Context, orgID, principalID uuid.UUID) ([]string, error) {
	query := `
		SELECT DISTINCT rp.permission_key
		FROM user_roles ur
		JOIN roles r ON r.role_id = ur.role_id
		JOIN role_permissions rp ON rp.role_id = r.role_id
		WHERE ur.principal_id = $1 AND r.org_id = $2
		ORDER BY rp.permission_key
	`

	rows, err := s.pool.Query(ctx, query, principalID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load permission keys: %w", err)
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan permission keys: %w", err)
	}

	return keys, nil
}

func scanRole(row pgx.Row) (*models.Role, error) {
	var r models.Role
	err := row.Scan(
		&r.RoleID,
		&r.OrgID,
		&r.Name,
		&r.Description,
		&r.PermissionKeys,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
