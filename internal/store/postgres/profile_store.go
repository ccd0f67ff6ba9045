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

const profileColumns = `
	principal_id, org_id, email, display_name, avatar_url,
	auth_provider, line_user_id, status, created_at, updated_at
`

// ProfileStore implements store.ProfileStore using PostgreSQL.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore creates a new PostgreSQL-backed profile store.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{
		pool: pool,
	}
}

// Create creates a new profile in the database.
func (s *ProfileStore) Create(ctx context.Context, profile *models.Profile) error {
	query := `INSERT INTO profiles (` + profileColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		profile.PrincipalID,
		profile.OrgID,
		profile.Email,
		profile.DisplayName,
		profile.AvatarURL,
		profile.AuthProvider,
		profile.LineUserID,
		profile.Status,
		profile.CreatedAt,
		profile.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrProfileAlreadyExists
		}
		return fmt.Errorf("failed to create profile: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("principal_id", profile.PrincipalID.String()).
		Str("org_id", profile.OrgID.String()).
		Msg("Created profile")

	return nil
}

// Get retrieves the profile of a principal.
func (s *ProfileStore) Get(ctx context.Context, principalID uuid.UUID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE principal_id = $1`

	profile, err := scanProfile(s.pool.QueryRow(ctx, query, principalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return profile, nil
}

// ListByOrg returns the profiles of an organization ordered by creation time.
func (s *ProfileStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE org_id = $1 ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}

// UpdateStatus sets the status of a profile within orgID.
func (s *ProfileStore) UpdateStatus(ctx context.Context, orgID, principalID uuid.UUID, status string) error {
	query := `UPDATE profiles SET status = $3, updated_at = $4 WHERE org_id = $1 AND principal_id = $2`

	result, err := s.pool.Exec(ctx, query, orgID, principalID, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update profile status: %w", mapPostgresError(err))
	}

	if result.RowsAffected() == 0 {
		return store.ErrProfileNotFound
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("principal_id", principalID.String()).
		Str("status", status).
		Msg("Updated profile status")

	return nil
}

// Delete removes a profile within orgID.
func (s *ProfileStore) Delete(ctx context.Context, orgID, principalID uuid.UUID) error {
	query := `DELETE FROM profiles WHERE org_id = $1 AND principal_id = $2`

	result, err := s.pool.Exec(ctx, query, orgID, principalID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrProfileNotFound
	}

	return nil
}

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(
		&p.PrincipalID,
		&p.OrgID,
		&p.Email,
		&p.DisplayName,
		&p.AvatarURL,
		&p.AuthProvider,
		&p.LineUserID,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
