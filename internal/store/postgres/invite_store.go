package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

const inviteColumns = `
	invite_id, code, org_id, role_id, max_uses, used_count,
	expires_at, created_by, created_at
`

// InviteCodeStore implements store.InviteCodeStore using PostgreSQL.
type InviteCodeStore struct {
	pool *pgxpool.Pool
}

// NewInviteCodeStore creates a new PostgreSQL-backed invite code store.
func NewInviteCodeStore(pool *pgxpool.Pool) *InviteCodeStore {
	return &InviteCodeStore{
		pool: pool,
	}
}

// Create creates a new invite code.
func (s *InviteCodeStore) Create(ctx context.Context, invite *models.InviteCode) error {
	query := `INSERT INTO invite_codes (` + inviteColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		invite.InviteID,
		invite.Code,
		invite.OrgID,
		invite.RoleID,
		invite.MaxUses,
		invite.UsedCount,
		invite.ExpiresAt,
		invite.CreatedBy,
		invite.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInviteCodeAlreadyExists
		}
		return fmt.Errorf("failed to create invite code: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("invite_id", invite.InviteID.String()).
		Str("org_id", invite.OrgID.String()).
		Int("max_uses", invite.MaxUses).
		Msg("Created invite code")

	return nil
}

// GetByCode retrieves an invite code by its code string.
func (s *InviteCodeStore) GetByCode(ctx context.Context, code string) (*models.InviteCode, error) {
	query := `SELECT ` + inviteColumns + ` FROM invite_codes WHERE code = $1`

	invite, err := scanInvite(s.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrInviteCodeNotFound
		}
		return nil, fmt.Errorf("failed to get invite code: %w", err)
	}

	return invite, nil
}

// ListByOrg returns the invite codes of an organization, newest first.
func (s *InviteCodeStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.InviteCode, error) {
	query := `SELECT ` + inviteColumns + ` FROM invite_codes WHERE org_id = $1 ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invite codes: %w", err)
	}
	defer rows.Close()

	var invites []*models.InviteCode
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite code: %w", err)
		}
		invites = append(invites, invite)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invite codes: %w", err)
	}

	return invites, nil
}

// Delete revokes an invite code within orgID.
func (s *InviteCodeStore) Delete(ctx context.Context, orgID, inviteID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM invite_codes WHERE org_id = $1 AND invite_id = $2`, orgID, inviteID)
	if err != nil {
		return fmt.Errorf("failed to delete invite code: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrInviteCodeNotFound
	}

	return nil
}

// IncrementUsedCount consumes one use if used_count still equals observed.
func (s *InviteCodeStore) IncrementUsedCount(ctx context.Context, inviteID uuid.UUID, observed int) error {
	query := `
		UPDATE invite_codes
		SET used_count = used_count + 1
		WHERE invite_id = $1
			AND used_count = $2
			AND used_count < max_uses
	`

	result, err := s.pool.Exec(ctx, query, inviteID, observed)
	if err != nil {
		return fmt.Errorf("failed to increment invite use: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrInviteCodeConflict
	}

	log.Debug().
		Str("invite_id", inviteID.String()).
		Int("used_count", observed+1).
		Msg("Consumed invite use")

	return nil
}

// ReleaseUse decrements used_count, never below zero.
func (s *InviteCodeStore) ReleaseUse(ctx context.Context, inviteID uuid.UUID) error {
	query := `UPDATE invite_codes SET used_count = GREATEST(used_count - 1, 0) WHERE invite_id = $1`

	result, err := s.pool.Exec(ctx, query, inviteID)
	if err != nil {
		return fmt.Errorf("failed to release invite use: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrInviteCodeNotFound
	}

	return nil
}

func scanInvite(row pgx.Row) (*models.InviteCode, error) {
	var c models.InviteCode
	err := row.Scan(
		&c.InviteID,
		&c.Code,
		&c.OrgID,
		&c.RoleID,
		&c.MaxUses,
		&c.UsedCount,
		&c.ExpiresAt,
		&c.CreatedBy,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
