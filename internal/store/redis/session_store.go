package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

const (
	sessionKeyPrefix   = "hrdesk:session:"
	principalKeyPrefix = "hrdesk:principal-sessions:"
)

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// SessionStore implements store.SessionStore using Redis.
// Each session is a JSON value whose TTL matches the session expiry, plus a
// per-principal set used for logout everywhere.
type SessionStore struct {
	client *goredis.Client
}

// NewSessionStore creates a new Redis-backed session store.
func NewSessionStore(client *goredis.Client) *SessionStore {
	return &SessionStore{
		client: client,
	}
}

func sessionKey(sessionID uuid.UUID) string {
	return sessionKeyPrefix + sessionID.String()
}

func principalKey(principalID uuid.UUID) string {
	return principalKeyPrefix + principalID.String()
}

// Create stores a new session.
func (s *SessionStore) Create(ctx context.Context, session *models.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return store.ErrSessionExpired
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.SessionID), data, ttl)
	pipe.SAdd(ctx, principalKey(session.PrincipalID), session.SessionID.String())
	pipe.Expire(ctx, principalKey(session.PrincipalID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	log.Debug().
		Str("session_id", session.SessionID.String()).
		Str("principal_id", session.PrincipalID.String()).
		Msg("Created session")

	return nil
}

func (s *SessionStore) load(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, store.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &session, nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, sessionID uuid.UUID) (*models.Session, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.IsExpired() {
		return nil, store.ErrSessionExpired
	}

	return session, nil
}

// UpdateLastUsed updates the last used timestamp, keeping the existing TTL.
func (s *SessionStore) UpdateLastUsed(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}

	session.LastUsedAt = time.Now()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, sessionKey(sessionID), data, goredis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("failed to update session last_used_at: %w", err)
	}

	return nil
}

// Delete deletes a session by ID.
func (s *SessionStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.SRem(ctx, principalKey(session.PrincipalID), sessionID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	log.Debug().
		Str("session_id", sessionID.String()).
		Msg("Deleted session")

	return nil
}

// DeleteByPrincipal deletes every session of a principal.
func (s *SessionStore) DeleteByPrincipal(ctx context.Context, principalID uuid.UUID) (int, error) {
	ids, err := s.client.SMembers(ctx, principalKey(principalID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list principal sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, sessionKeyPrefix+id)
	}

	count := 0
	if len(keys) > 0 {
		deleted, err := s.client.Del(ctx, keys...).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to delete sessions by principal: %w", err)
		}
		count = int(deleted)
	}

	if err := s.client.Del(ctx, principalKey(principalID)).Err(); err != nil {
		return count, fmt.Errorf("failed to delete principal session index: %w", err)
	}

	log.Info().
		Str("principal_id", principalID.String()).
		Int("count", count).
		Msg("Deleted all sessions for principal")

	return count, nil
}

// DeleteExpired is a no-op: Redis evicts sessions when their TTL lapses.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int, error) {
	return 0, nil
}
