package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

const positionColumns = `position_id, org_id, department_id, name, level, created_at, updated_at`

// PositionStore implements store.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PostgreSQL-backed position store.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{
		pool: pool,
	}
}

// Create creates a position.
func (s *PositionStore) Create(ctx context.Context, position *models.Position) error {
	query := `INSERT INTO positions (` + positionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		position.PositionID,
		position.OrgID,
		position.DepartmentID,
		position.Name,
		position.Level,
		position.CreatedAt,
		position.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrPositionAlreadyExists
		}
		return fmt.Errorf("failed to create position: %w", mapPostgresError(err))
	}

	return nil
}

// Get retrieves a position within orgID.
func (s *PositionStore) Get(ctx context.Context, orgID, positionID uuid.UUID) (*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE org_id = $1 AND position_id = $2`

	position, err := scanPosition(s.pool.QueryRow(ctx, query, orgID, positionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrPositionNotFound
		}
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	return position, nil
}

// ListByOrg returns positions ordered by level then name, optionally for one department.
func (s *PositionStore) ListByOrg(ctx context.Context, orgID uuid.UUID, departmentID *uuid.UUID) ([]*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions
		WHERE org_id = $1 AND ($2::uuid IS NULL OR department_id = $2)
		ORDER BY level, name`

	rows, err := s.pool.Query(ctx, query, orgID, departmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		position, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, position)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// Update updates a position within position.OrgID.
func (s *PositionStore) Update(ctx context.Context, position *models.Position) error {
	position.UpdatedAt = time.Now()

	query := `
		UPDATE positions SET
			department_id = $3,
			name = $4,
			level = $5,
			updated_at = $6
		WHERE org_id = $1 AND position_id = $2
	`

	result, err := s.pool.Exec(ctx, query,
		position.OrgID,
		position.PositionID,
		position.DepartmentID,
		position.Name,
		position.Level,
		position.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update position: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrPositionNotFound
	}

	return nil
}

// Delete deletes a position within orgID.
func (s *PositionStore) Delete(ctx context.Context, orgID, positionID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE org_id = $1 AND position_id = $2`, orgID, positionID)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrPositionNotFound
	}

	return nil
}

func scanPosition(row pgx.Row) (*models.Position, error) {
	var p models.Position
	err := row.Scan(
		&p.PositionID,
		&p.OrgID,
		&p.DepartmentID,
		&p.Name,
		&p.Level,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
