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

const identityColumns = `
	principal_id, provider, subject, email, display_name, avatar_url,
	created_at, updated_at, last_login_at
`

// IdentityStore implements store.IdentityStore using PostgreSQL.
type IdentityStore struct {
	pool *pgxpool.Pool
}

// NewIdentityStore creates a new PostgreSQL-backed identity store.
func NewIdentityStore(pool *pgxpool.Pool) *IdentityStore {
	return &IdentityStore{
		pool: pool,
	}
}

// Create creates a new identity in the database.
func (s *IdentityStore) Create(ctx context.Context, identity *models.Identity) error {
	query := `INSERT INTO identities (` + identityColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		identity.PrincipalID,
		identity.Provider,
		identity.Subject,
		identity.Email,
		identity.DisplayName,
		identity.AvatarURL,
		identity.CreatedAt,
		identity.UpdatedAt,
		identity.LastLoginAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrIdentityAlreadyExists
		}
		return fmt.Errorf("failed to create identity: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("principal_id", identity.PrincipalID.String()).
		Str("provider", identity.Provider).
		Msg("Created identity")

	return nil
}

// Get retrieves an identity by principal ID.
func (s *IdentityStore) Get(ctx context.Context, principalID uuid.UUID) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE principal_id = $1`
	return s.queryOne(ctx, query, principalID)
}

// GetBySubject retrieves an identity by provider subject.
func (s *IdentityStore) GetBySubject(ctx context.Context, provider, subject string) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE provider = $1 AND subject = $2`
	return s.queryOne(ctx, query, provider, subject)
}

func (s *IdentityStore) queryOne(ctx context.Context, query string, args ...any) (*models.Identity, error) {
	var identity models.Identity
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&identity.PrincipalID,
		&identity.Provider,
		&identity.Subject,
		&identity.Email,
		&identity.DisplayName,
		&identity.AvatarURL,
		&identity.CreatedAt,
		&identity.UpdatedAt,
		&identity.LastLoginAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	return &identity, nil
}

// Update updates the mutable attributes of an identity.
func (s *IdentityStore) Update(ctx context.Context, identity *models.Identity) error {
	identity.UpdatedAt = time.Now()

	query := `
		UPDATE identities SET
			email = $2,
			display_name = $3,
			avatar_url = $4,
			last_login_at = $5,
			updated_at = $6
		WHERE principal_id = $1
	`

	result, err := s.pool.Exec(ctx, query,
		identity.PrincipalID,
		identity.Email,
		identity.DisplayName,
		identity.AvatarURL,
		identity.LastLoginAt,
		identity.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrIdentityNotFound
	}

	return nil
}
