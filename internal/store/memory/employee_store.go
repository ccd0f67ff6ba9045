package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

// EmployeeStore implements store.EmployeeStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type EmployeeStore struct {
	mu sync.RWMutex

	employees map[uuid.UUID]*models.Employee // employee_id -> Employee
}

// NewEmployeeStore creates a new in-memory employee store.
func NewEmployeeStore() *EmployeeStore {
	return &EmployeeStore{
		employees: make(map[uuid.UUID]*models.Employee),
	}
}

func cloneEmployee(e *models.Employee) *models.Employee {
	clone := *e
	clone.Nickname = clonePtr(e.Nickname)
	clone.Email = clonePtr(e.Email)
	clone.Phone = clonePtr(e.Phone)
	clone.DepartmentID = clonePtr(e.DepartmentID)
	clone.PositionID = clonePtr(e.PositionID)
	clone.BaseSalary = clonePtr(e.BaseSalary)
	clone.InviteCode = clonePtr(e.InviteCode)
	clone.InviteExpiresAt = clonePtr(e.InviteExpiresAt)
	clone.InviteSentAt = clonePtr(e.InviteSentAt)
	clone.LineUserID = clonePtr(e.LineUserID)
	clone.UserID = clonePtr(e.UserID)
	clone.CreatedBy = clonePtr(e.CreatedBy)
	clone.UpdatedBy = clonePtr(e.UpdatedBy)
	return &clone
}

// codeTaken must be called with the lock held.
func (s *EmployeeStore) codeTaken(orgID uuid.UUID, code string, except uuid.UUID) bool {
	for _, e := range s.employees {
		if e.OrgID == orgID && e.EmployeeCode == code && e.EmployeeID != except {
			return true
		}
	}
	return false
}

// nextCode must be called with the lock held.
func (s *EmployeeStore) nextCode(orgID uuid.UUID) string {
	n := 0
	for _, e := range s.employees {
		if e.OrgID == orgID {
			n++
		}
	}
	for {
		n++
		code := fmt.Sprintf("EMP%04d", n)
		if !s.codeTaken(orgID, code, uuid.Nil) {
			return code
		}
	}
}

// Create creates an employee in memory.
func (s *EmployeeStore) Create(ctx context.Context, employee *models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.employees[employee.EmployeeID]; exists {
		return store.ErrEmployeeAlreadyExists
	}

	if employee.EmployeeCode == "" {
		employee.EmployeeCode = s.nextCode(employee.OrgID)
	} else if s.codeTaken(employee.OrgID, employee.EmployeeCode, uuid.Nil) {
		return store.ErrEmployeeAlreadyExists
	}

	s.employees[employee.EmployeeID] = cloneEmployee(employee)

	return nil
}

// Get retrieves an employee within orgID.
func (s *EmployeeStore) Get(ctx context.Context, orgID, employeeID uuid.UUID) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	employee, exists := s.employees[employeeID]
	if !exists || employee.OrgID != orgID {
		return nil, store.ErrEmployeeNotFound
	}

	return cloneEmployee(employee), nil
}

// ListByOrg returns the employees of an organization ordered by employee code.
func (s *EmployeeStore) ListByOrg(ctx context.Context, orgID uuid.UUID, filter store.EmployeeFilter) ([]*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Employee
	for _, e := range s.employees {
		if e.OrgID != orgID {
			continue
		}
		if filter.DepartmentID != nil && (e.DepartmentID == nil || *e.DepartmentID != *filter.DepartmentID) {
			continue
		}
		if filter.PositionID != nil && (e.PositionID == nil || *e.PositionID != *filter.PositionID) {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		result = append(result, cloneEmployee(e))
	}

	sort.Slice(result, func(i, j int) bool { return result[i].EmployeeCode < result[j].EmployeeCode })

	return result, nil
}

// Update updates the editable attributes of an employee.
func (s *EmployeeStore) Update(ctx context.Context, employee *models.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.employees[employee.EmployeeID]
	if !exists || existing.OrgID != employee.OrgID {
		return store.ErrEmployeeNotFound
	}

	if s.codeTaken(employee.OrgID, employee.EmployeeCode, employee.EmployeeID) {
		return store.ErrEmployeeAlreadyExists
	}

	employee.UpdatedAt = time.Now()

	updated := cloneEmployee(existing)
	updated.EmployeeCode = employee.EmployeeCode
	updated.FirstName = employee.FirstName
	updated.LastName = employee.LastName
	updated.Nickname = clonePtr(employee.Nickname)
	updated.Email = clonePtr(employee.Email)
	updated.Phone = clonePtr(employee.Phone)
	updated.DepartmentID = clonePtr(employee.DepartmentID)
	updated.PositionID = clonePtr(employee.PositionID)
	updated.EmploymentType = employee.EmploymentType
	updated.BaseSalary = clonePtr(employee.BaseSalary)
	updated.StartDate = employee.StartDate
	updated.Status = employee.Status
	updated.UpdatedBy = clonePtr(employee.UpdatedBy)
	updated.UpdatedAt = employee.UpdatedAt
	s.employees[employee.EmployeeID] = updated

	return nil
}

// Delete deletes an employee within orgID.
func (s *EmployeeStore) Delete(ctx context.Context, orgID, employeeID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	employee, exists := s.employees[employeeID]
	if !exists || employee.OrgID != orgID {
		return store.ErrEmployeeNotFound
	}

	delete(s.employees, employeeID)

	return nil
}

// SetInvite stores a fresh invite on a pending employee.
func (s *EmployeeStore) SetInvite(ctx context.Context, orgID, employeeID uuid.UUID, code string, expiresAt, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	employee, exists := s.employees[employeeID]
	if !exists || employee.OrgID != orgID || employee.Status != models.EmployeeStatusPending {
		return store.ErrEmployeeNotFound
	}

	for _, other := range s.employees {
		if other.EmployeeID != employeeID && other.InviteCode != nil && *other.InviteCode == code {
			return store.ErrEmployeeInviteTaken
		}
	}

	employee.InviteCode = &code
	employee.InviteExpiresAt = &expiresAt
	employee.InviteSentAt = &sentAt
	employee.UpdatedAt = time.Now()

	return nil
}

// GetPendingByInviteCode returns the pending employee with a matching unexpired invite.
func (s *EmployeeStore) GetPendingByInviteCode(ctx context.Context, code string, now time.Time) (*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.employees {
		if e.InviteCode != nil && *e.InviteCode == code && e.InviteRedeemable(now) {
			return cloneEmployee(e), nil
		}
	}

	return nil, store.ErrEmployeeNotFound
}

// FindByEmployeeCode returns every employee with the code.
func (s *EmployeeStore) FindByEmployeeCode(ctx context.Context, employeeCode string) ([]*models.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Employee
	for _, e := range s.employees {
		if e.EmployeeCode == employeeCode {
			result = append(result, cloneEmployee(e))
		}
	}

	return result, nil
}

// LinkIdentity binds a LINE identity to the matching pending employee.
// The whole check-and-set runs under the write lock.
func (s *EmployeeStore) LinkIdentity(ctx context.Context, params store.LinkParams) (*models.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []*models.Employee
	for _, e := range s.employees {
		if e.EmployeeCode != params.EmployeeCode || !e.InviteRedeemable(params.Now) {
			continue
		}
		if *e.InviteCode != params.InviteCode {
			continue
		}
		matches = append(matches, e)
	}

	switch len(matches) {
	case 0:
		return nil, store.ErrEmployeeNotFound
	case 1:
	default:
		return nil, store.ErrEmployeeAmbiguous
	}

	employee := matches[0]
	for _, other := range s.employees {
		if other.OrgID == employee.OrgID && other.EmployeeID != employee.EmployeeID &&
			other.LineUserID != nil && *other.LineUserID == params.LineUserID {
			return nil, store.ErrLineUserAlreadyLinked
		}
	}

	lineUserID := params.LineUserID
	employee.LineUserID = &lineUserID
	employee.UserID = clonePtr(params.UserID)
	employee.Status = models.EmployeeStatusActive
	employee.InviteCode = nil
	employee.InviteExpiresAt = nil
	employee.UpdatedAt = params.Now

	return cloneEmployee(employee), nil
}
