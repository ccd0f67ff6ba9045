package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

// SessionStore implements store.SessionStore in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]models.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[uuid.UUID]models.Session)}
}

func (s *SessionStore) Create(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.SessionID] = *session
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID uuid.UUID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	if session.IsExpired() {
		return nil, store.ErrSessionExpired
	}
	return &session, nil
}

func (s *SessionStore) UpdateLastUsed(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return store.ErrSessionNotFound
	}
	session.LastUsedAt = time.Now()
	s.sessions[sessionID] = session
	return nil
}

func (s *SessionStore) Delete(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return store.ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *SessionStore) DeleteByPrincipal(_ context.Context, principalID uuid.UUID) (int, error) {
	return s.deleteWhere(func(session models.Session) bool {
		return session.PrincipalID == principalID
	}), nil
}

func (s *SessionStore) DeleteExpired(_ context.Context) (int, error) {
	return s.deleteWhere(func(session models.Session) bool {
		return session.IsExpired()
	}), nil
}

func (s *SessionStore) deleteWhere(match func(models.Session) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.sessions)
	maps.DeleteFunc(s.sessions, func(_ uuid.UUID, session models.Session) bool {
		return match(session)
	})
	return before - len(s.sessions)
}
