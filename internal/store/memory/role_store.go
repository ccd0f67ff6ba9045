package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

// RoleStore implements store.RoleStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type RoleStore struct {
	mu sync.RWMutex

	permissions map[string]*models.Permission        // key -> Permission
	roles       map[uuid.UUID]*models.Role           // role_id -> Role
	assignments map[uuid.UUID]map[uuid.UUID]struct{} // principal_id -> set of role_id
}

// NewRoleStore creates a new in-memory role store with an empty permission catalog.
func NewRoleStore() *RoleStore {
	return &RoleStore{
		permissions: make(map[string]*models.Permission),
		roles:       make(map[uuid.UUID]*models.Role),
		assignments: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func cloneRole(role *models.Role) *models.Role {
	clone := *role
	clone.PermissionKeys = slices.Clone(role.PermissionKeys)
	return &clone
}

// SyncPermissions upserts the permission catalog.
func (s *RoleStore) SyncPermissions(ctx context.Context, permissions []*models.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range permissions {
		clone := *p
		s.permissions[p.Key] = &clone
	}

	return nil
}

// ListPermissions returns the permission catalog ordered by key.
func (s *RoleStore) ListPermissions(ctx context.Context) ([]*models.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		clone := *p
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })

	return result, nil
}

// validateKeys must be called with the lock held.
func (s *RoleStore) validateKeys(keys []string) error {
	for _, key := range keys {
		if _, ok := s.permissions[key]; !ok {
			return store.ErrPermissionNotFound
		}
	}
	return nil
}

// nameTaken must be called with the lock held.
func (s *RoleStore) nameTaken(orgID uuid.UUID, name string, except uuid.UUID) bool {
	for _, r := range s.roles {
		if r.OrgID == orgID && r.Name == name && r.RoleID != except {
			return true
		}
	}
	return false
}

// Create creates a role in memory.
func (s *RoleStore) Create(ctx context.Context, role *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.roles[role.RoleID]; exists {
		return store.ErrRoleAlreadyExists
	}

	if s.nameTaken(role.OrgID, role.Name, uuid.Nil) {
		return store.ErrRoleAlreadyExists
	}

	if err := s.validateKeys(role.PermissionKeys); err != nil {
		return err
	}

	s.roles[role.RoleID] = cloneRole(role)

	return nil
}

// Get retrieves a role within orgID.
func (s *RoleStore) Get(ctx context.Context, orgID, roleID uuid.UUID) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, exists := s.roles[roleID]
	if !exists || role.OrgID != orgID {
		return nil, store.ErrRoleNotFound
	}

	return cloneRole(role), nil
}

// GetByName retrieves a role within orgID by name.
func (s *RoleStore) GetByName(ctx context.Context, orgID uuid.UUID, name string) (*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, role := range s.roles {
		if role.OrgID == orgID && role.Name == name {
			return cloneRole(role), nil
		}
	}

	return nil, store.ErrRoleNotFound
}

// ListByOrg returns all roles of an organization ordered by name.
func (s *RoleStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.Role
	for _, role := range s.roles {
		if role.OrgID == orgID {
			result = append(result, cloneRole(role))
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// Update replaces a role's name, description and permissions.
func (s *RoleStore) Update(ctx context.Context, role *models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.roles[role.RoleID]
	if !exists || existing.OrgID != role.OrgID {
		return store.ErrRoleNotFound
	}

	if s.nameTaken(role.OrgID, role.Name, role.RoleID) {
		return store.ErrRoleAlreadyExists
	}

	if err := s.validateKeys(role.PermissionKeys); err != nil {
		return err
	}

	role.UpdatedAt = time.Now()

	updated := cloneRole(existing)
	updated.Name = role.Name
	updated.Description = role.Description
	updated.PermissionKeys = slices.Clone(role.PermissionKeys)
	updated.UpdatedAt = role.UpdatedAt
	s.roles[role.RoleID] = updated

	return nil
}

// Delete deletes a role and its assignments.
func (s *RoleStore) Delete(ctx context.Context, orgID, roleID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, exists := s.roles[roleID]
	if !exists || role.OrgID != orgID {
		return store.ErrRoleNotFound
	}

	delete(s.roles, roleID)
	for principalID, set := range s.assignments {
		delete(set, roleID)
		if len(set) == 0 {
			delete(s.assignments, principalID)
		}
	}

	return nil
}

// AssignToUser assigns a role to a principal.
func (s *RoleStore) AssignToUser(ctx context.Context, orgID, principalID, roleID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, exists := s.roles[roleID]
	if !exists || role.OrgID != orgID {
		return store.ErrRoleNotFound
	}

	set, ok := s.assignments[principalID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		s.assignments[principalID] = set
	}
	set[roleID] = struct{}{}

	return nil
}

// RemoveFromUser removes a role assignment.
func (s *RoleStore) RemoveFromUser(ctx context.Context, orgID, principalID, roleID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, exists := s.roles[roleID]
	if !exists || role.OrgID != orgID {
		return store.ErrRoleAssignmentNotFound
	}

	set := s.assignments[principalID]
	if _, ok := set[roleID]; !ok {
		return store.ErrRoleAssignmentNotFound
	}

	delete(set, roleID)
	if len(set) == 0 {
		delete(s.assignments, principalID)
	}

	return nil
}

// RemoveFromUserUnlessLast removes a role assignment unless it is the only one.
func (s *RoleStore) RemoveFromUserUnlessLast(ctx context.Context, orgID, principalID, roleID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	role, exists := s.roles[roleID]
	if !exists || role.OrgID != orgID {
		return store.ErrRoleAssignmentNotFound
	}

	set := s.assignments[principalID]
	if _, ok := set[roleID]; !ok {
		return store.ErrRoleAssignmentNotFound
	}

	holders := 0
	for _, other := range s.assignments {
		if _, ok := other[roleID]; ok {
			holders++
		}
	}
	if holders <= 1 {
		return store.ErrLastRoleHolder
	}

	delete(set, roleID)
	if len(set) == 0 {
		delete(s.assignments, principalID)
	}

	return nil
}

// userRoles must be called with the lock held.
func (s *RoleStore) userRoles(orgID, principalID uuid.UUID) []*models.Role {
	var result []*models.Role
	for roleID := range s.assignments[principalID] {
		role, ok := s.roles[roleID]
		if !ok || role.OrgID != orgID {
			continue
		}
		result = append(result, role)
	}
	return result
}

// ListUserRoles returns the roles a principal holds in orgID.
func (s *RoleStore) ListUserRoles(ctx context.Context, orgID, principalID uuid.UUID) ([]*models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roles := s.userRoles(orgID, principalID)
	result := make([]*models.Role, 0, len(roles))
	for _, role := range roles {
		result = append(result, cloneRole(role))
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// CountMembers returns how many principals hold a role.
func (s *RoleStore) CountMembers(ctx context.Context, orgID, roleID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, exists := s.roles[roleID]
	if !exists || role.OrgID != orgID {
		return 0, store.ErrRoleNotFound
	}

	count := 0
	for _, set := range s.assignments {
		if _, ok := set[roleID]; ok {
			count++
		}
	}

	return count, nil
}

// PermissionKeys returns the union of keys granted to a principal in orgID.
func (s *RoleStore) PermissionKeys(ctx context.Context, orgID, principalID uuid.UUID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var keys []string
	for _, role := range s.userRoles(orgID, principalID) {
		for _, key := range role.PermissionKeys {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	return keys, nil
}
