package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

// ProfileStore implements store.ProfileStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type ProfileStore struct {
	mu sync.RWMutex

	profiles map[uuid.UUID]*models.Profile // principal_id -> Profile
}

// NewProfileStore creates a new in-memory profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[uuid.UUID]*models.Profile),
	}
}

// Create creates a new profile in memory.
func (s *ProfileStore) Create(ctx context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[profile.PrincipalID]; exists {
		return store.ErrProfileAlreadyExists
	}

	clone := *profile
	s.profiles[profile.PrincipalID] = &clone

	return nil
}

// Get retrieves the profile of a principal.
func (s *ProfileStore) Get(ctx context.Context, principalID uuid.UUID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, exists := s.profiles[principalID]
	if !exists {
		return nil, store.ErrProfileNotFound
	}

	clone := *profile
	return &clone, nil
}

// ListByOrg returns all profiles in an organization.
func (s *ProfileStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Profile
	for _, profile := range s.profiles {
		if profile.OrgID == orgID {
			clone := *profile
			result = append(result, &clone)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// UpdateStatus sets the status of a profile within orgID.
func (s *ProfileStore) UpdateStatus(ctx context.Context, orgID, principalID uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, exists := s.profiles[principalID]
	if !exists || profile.OrgID != orgID {
		return store.ErrProfileNotFound
	}

	profile.Status = status
	profile.UpdatedAt = time.Now()

	return nil
}

// Delete removes a profile within orgID.
func (s *ProfileStore) Delete(ctx context.Context, orgID, principalID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, exists := s.profiles[principalID]
	if !exists || profile.OrgID != orgID {
		return store.ErrProfileNotFound
	}

	delete(s.profiles, principalID)

	return nil
}
