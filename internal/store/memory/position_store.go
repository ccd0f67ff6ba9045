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

// PositionStore implements store.PositionStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type PositionStore struct {
	mu sync.RWMutex

	positions map[uuid.UUID]*models.Position // position_id -> Position
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		positions: make(map[uuid.UUID]*models.Position),
	}
}

func clonePosition(p *models.Position) *models.Position {
	clone := *p
	clone.DepartmentID = clonePtr(p.DepartmentID)
	return &clone
}

// Create creates a position in memory.
func (s *PositionStore) Create(ctx context.Context, position *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.positions[position.PositionID]; exists {
		return store.ErrPositionAlreadyExists
	}

	s.positions[position.PositionID] = clonePosition(position)

	return nil
}

// Get retrieves a position within orgID.
func (s *PositionStore) Get(ctx context.Context, orgID, positionID uuid.UUID) (*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	position, exists := s.positions[positionID]
	if !exists || position.OrgID != orgID {
		return nil, store.ErrPositionNotFound
	}

	return clonePosition(position), nil
}

// ListByOrg returns positions ordered by level then name.
func (s *PositionStore) ListByOrg(ctx context.Context, orgID uuid.UUID, departmentID *uuid.UUID) ([]*models.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Position
	for _, p := range s.positions {
		if p.OrgID != orgID {
			continue
		}
		if departmentID != nil && (p.DepartmentID == nil || *p.DepartmentID != *departmentID) {
			continue
		}
		result = append(result, clonePosition(p))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Level != result[j].Level {
			return result[i].Level < result[j].Level
		}
		return result[i].Name < result[j].Name
	})

	return result, nil
}

// Update updates a position within its organization.
func (s *PositionStore) Update(ctx context.Context, position *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.positions[position.PositionID]
	if !exists || existing.OrgID != position.OrgID {
		return store.ErrPositionNotFound
	}

	position.UpdatedAt = time.Now()

	updated := clonePosition(existing)
	updated.Name = position.Name
	updated.Level = position.Level
	updated.DepartmentID = clonePtr(position.DepartmentID)
	updated.UpdatedAt = position.UpdatedAt
	s.positions[position.PositionID] = updated

	return nil
}

// Delete deletes a position within orgID.
func (s *PositionStore) Delete(ctx context.Context, orgID, positionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	position, exists := s.positions[positionID]
	if !exists || position.OrgID != orgID {
		return store.ErrPositionNotFound
	}

	delete(s.positions, positionID)

	return nil
}
