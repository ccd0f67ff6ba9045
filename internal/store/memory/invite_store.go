package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

// InviteCodeStore implements store.InviteCodeStore using in-memory storage.
// This implementation is for testing only - data is lost on restart.
type InviteCodeStore struct {
	mu sync.RWMutex

	invites map[uuid.UUID]*models.InviteCode // invite_id -> InviteCode
	byCode  map[string]uuid.UUID             // code -> invite_id
}

// NewInviteCodeStore creates a new in-memory invite code store.
func NewInviteCodeStore() *InviteCodeStore {
	return &InviteCodeStore{
		invites: make(map[uuid.UUID]*models.InviteCode),
		byCode:  make(map[string]uuid.UUID),
	}
}

func cloneInvite(invite *models.InviteCode) *models.InviteCode {
	clone := *invite
	if invite.RoleID != nil {
		roleID := *invite.RoleID
		clone.RoleID = &roleID
	}
	if invite.ExpiresAt != nil {
		expiresAt := *invite.ExpiresAt
		clone.ExpiresAt = &expiresAt
	}
	return &clone
}

// Create creates an invite code in memory.
func (s *InviteCodeStore) Create(ctx context.Context, invite *models.InviteCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invites[invite.InviteID]; exists {
		return store.ErrInviteCodeAlreadyExists
	}
	if _, exists := s.byCode[invite.Code]; exists {
		return store.ErrInviteCodeAlreadyExists
	}

	s.invites[invite.InviteID] = cloneInvite(invite)
	s.byCode[invite.Code] = invite.InviteID

	return nil
}

// GetByCode retrieves an invite code by code string.
func (s *InviteCodeStore) GetByCode(ctx context.Context, code string) (*models.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inviteID, exists := s.byCode[code]
	if !exists {
		return nil, store.ErrInviteCodeNotFound
	}

	return cloneInvite(s.invites[inviteID]), nil
}

// ListByOrg returns the invite codes of an organization, newest first.
func (s *InviteCodeStore) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.InviteCode
	for _, invite := range s.invites {
		if invite.OrgID == orgID {
			result = append(result, cloneInvite(invite))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// Delete revokes an invite code within orgID.
func (s *InviteCodeStore) Delete(ctx context.Context, orgID, inviteID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, exists := s.invites[inviteID]
	if !exists || invite.OrgID != orgID {
		return store.ErrInviteCodeNotFound
	}

	delete(s.byCode, invite.Code)
	delete(s.invites, inviteID)

	return nil
}

// IncrementUsedCount performs the compare-and-swap on used_count.
func (s *InviteCodeStore) IncrementUsedCount(ctx context.Context, inviteID uuid.UUID, observed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, exists := s.invites[inviteID]
	if !exists || invite.UsedCount != observed || invite.UsedCount >= invite.MaxUses {
		return store.ErrInviteCodeConflict
	}

	invite.UsedCount++

	return nil
}

// ReleaseUse decrements used_count, never below zero.
func (s *InviteCodeStore) ReleaseUse(ctx context.Context, inviteID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invite, exists := s.invites[inviteID]
	if !exists {
		return store.ErrInviteCodeNotFound
	}

	if invite.UsedCount > 0 {
		invite.UsedCount--
	}

	return nil
}
