package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

// IdentityStore implements store.IdentityStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type IdentityStore struct {
	mu sync.RWMutex

	identities map[uuid.UUID]*models.Identity // principal_id -> Identity
	bySubject  map[string]uuid.UUID           // provider + ":" + subject -> principal_id
}

// NewIdentityStore creates a new in-memory identity store.
func NewIdentityStore() *IdentityStore {
	return &IdentityStore{
		identities: make(map[uuid.UUID]*models.Identity),
		bySubject:  make(map[string]uuid.UUID),
	}
}

func subjectKey(provider, subject string) string {
	return provider + ":" + subject
}

// Create creates a new identity in memory.
func (s *IdentityStore) Create(ctx context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.identities[identity.PrincipalID]; exists {
		return store.ErrIdentityAlreadyExists
	}

	key := subjectKey(identity.Provider, identity.Subject)
	if _, exists := s.bySubject[key]; exists {
		return store.ErrIdentityAlreadyExists
	}

	clone := *identity
	s.identities[identity.PrincipalID] = &clone
	s.bySubject[key] = identity.PrincipalID

	return nil
}

// Get retrieves an identity by principal ID.
func (s *IdentityStore) Get(ctx context.Context, principalID uuid.UUID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, exists := s.identities[principalID]
	if !exists {
		return nil, store.ErrIdentityNotFound
	}

	clone := *identity
	return &clone, nil
}

// GetBySubject retrieves an identity by provider and subject.
func (s *IdentityStore) GetBySubject(ctx context.Context, provider, subject string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	principalID, exists := s.bySubject[subjectKey(provider, subject)]
	if !exists {
		return nil, store.ErrIdentityNotFound
	}

	clone := *s.identities[principalID]
	return &clone, nil
}

// Update updates the mutable attributes of an identity.
func (s *IdentityStore) Update(ctx context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.identities[identity.PrincipalID]
	if !exists {
		return store.ErrIdentityNotFound
	}

	identity.UpdatedAt = time.Now()

	clone := *existing
	clone.Email = identity.Email
	clone.DisplayName = identity.DisplayName
	clone.AvatarURL = identity.AvatarURL
	clone.LastLoginAt = identity.LastLoginAt
	clone.UpdatedAt = identity.UpdatedAt
	s.identities[identity.PrincipalID] = &clone

	return nil
}
