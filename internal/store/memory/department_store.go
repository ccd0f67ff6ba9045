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

// DepartmentStore implements store.DepartmentStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type DepartmentStore struct {
	mu sync.RWMutex

	departments map[uuid.UUID]*models.Department // department_id -> Department
}

// NewDepartmentStore creates a new in-memory department store.
func NewDepartmentStore() *DepartmentStore {
	return &DepartmentStore{
		departments: make(map[uuid.UUID]*models.Department),
	}
}

func cloneDepartment(d *models.Department) *models.Department {
	clone := *d
	clone.Description = clonePtr(d.Description)
	clone.ParentID = clonePtr(d.ParentID)
	return &clone
}

// Create creates a department in memory.
func (s *DepartmentStore) Create(ctx context.Context, department *models.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.departments[department.DepartmentID]; exists {
		return store.ErrDepartmentAlreadyExists
	}

	s.departments[department.DepartmentID] = cloneDepartment(department)

	return nil
}

// Get retrieves a department within orgID.
func (s *DepartmentStore) Get(ctx context.Context, orgID, departmentID uuid.UUID) (*models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	department, exists := s.departments[departmentID]
	if !exists || department.OrgID != orgID {
		return nil, store.ErrDepartmentNotFound
	}

	return cloneDepartment(department), nil
}

// ListByOrg returns the departments of an organization ordered by name.
func (s *DepartmentStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Department
	for _, d := range s.departments {
		if d.OrgID == orgID {
			result = append(result, cloneDepartment(d))
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// Update updates a department within its organization.
func (s *DepartmentStore) Update(ctx context.Context, department *models.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.departments[department.DepartmentID]
	if !exists || existing.OrgID != department.OrgID {
		return store.ErrDepartmentNotFound
	}

	department.UpdatedAt = time.Now()

	updated := cloneDepartment(existing)
	updated.Name = department.Name
	updated.Description = clonePtr(department.Description)
	updated.ParentID = clonePtr(department.ParentID)
	updated.UpdatedAt = department.UpdatedAt
	s.departments[department.DepartmentID] = updated

	return nil
}

// Delete deletes a department within orgID and detaches its children.
func (s *DepartmentStore) Delete(ctx context.Context, orgID, departmentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	department, exists := s.departments[departmentID]
	if !exists || department.OrgID != orgID {
		return store.ErrDepartmentNotFound
	}

	delete(s.departments, departmentID)
	for _, d := range s.departments {
		if d.ParentID != nil && *d.ParentID == departmentID {
			d.ParentID = nil
		}
	}

	return nil
}
