package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

// OrganizationStore implements store.OrganizationStore in memory.
type OrganizationStore struct {
	mu   sync.RWMutex
	orgs map[uuid.UUID]models.Organization
}

func NewOrganizationStore() *OrganizationStore {
	return &OrganizationStore{orgs: make(map[uuid.UUID]models.Organization)}
}

func (s *OrganizationStore) Create(_ context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[org.OrgID]; ok {
		return store.ErrOrganizationAlreadyExists
	}
	s.orgs[org.OrgID] = *org
	return nil
}

func (s *OrganizationStore) Get(_ context.Context, orgID uuid.UUID) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs[orgID]
	if !ok {
		return nil, store.ErrOrganizationNotFound
	}
	return &org, nil
}

func (s *OrganizationStore) Rename(_ context.Context, orgID uuid.UUID, name string) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.orgs[orgID]
	if !ok {
		return nil, store.ErrOrganizationNotFound
	}
	org.Name = name
	org.UpdatedAt = time.Now()
	s.orgs[orgID] = org
	return &org, nil
}

// Delete does not cascade to the other memory stores.
func (s *OrganizationStore) Delete(_ context.Context, orgID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[orgID]; !ok {
		return store.ErrOrganizationNotFound
	}
	delete(s.orgs, orgID)
	return nil
}
