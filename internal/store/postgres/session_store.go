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

const sessionColumns = `session_id, principal_id, created_at, expires_at, last_used_at,
	COALESCE(user_agent, '') AS user_agent, COALESCE(host(ip_address), '') AS ip_address`

// SessionStore implements store.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, principal_id, created_at, expires_at, last_used_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, '')::inet)`,
		session.SessionID, session.PrincipalID,
		session.CreatedAt, session.ExpiresAt, session.LastUsedAt,
		session.UserAgent, session.IPAddress,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", mapPostgresError(err))
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	rows, _ := s.pool.Query(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE session_id = $1`, sessionID)
	session, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.Session])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if session.IsExpired() {
		return nil, store.ErrSessionExpired
	}
	return session, nil
}

func (s *SessionStore) UpdateLastUsed(ctx context.Context, sessionID uuid.UUID) error {
	return s.expectOne(ctx, `UPDATE sessions SET last_used_at = now() WHERE session_id = $1`, sessionID)
}

func (s *SessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	return s.expectOne(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
}

func (s *SessionStore) DeleteByPrincipal(ctx context.Context, principalID uuid.UUID) (int, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE principal_id = $1`, principalID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return int(result.RowsAffected()), nil
}

func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	count := int(result.RowsAffected())
	if count > 0 {
		log.Debug().Int("count", count).Msg("Deleted expired sessions")
	}
	return count, nil
}

func (s *SessionStore) expectOne(ctx context.Context, sql string, sessionID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, sql, sessionID)
	if err != nil {
		return fmt.Errorf("session write failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrSessionNotFound
	}
	return nil
}
