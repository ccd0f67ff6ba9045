package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/models"
)

// Sentinel errors for invite code store operations
var (
	ErrInviteCodeNotFound      = errors.New("invite code not found")
	ErrInviteCodeAlreadyExists = errors.New("invite code already exists")
	ErrInviteCodeConflict      = errors.New("invite code was redeemed concurrently")
)

// InviteCodeStore persists organization invite codes.
type InviteCodeStore interface {
	// Create creates an invite code.
	// Returns ErrInviteCodeAlreadyExists if the code string is taken.
	Create(ctx context.Context, invite *models.InviteCode) error

	// GetByCode retrieves an invite code by its code string.
	// Returns ErrInviteCodeNotFound if the code doesn't exist.
	GetByCode(ctx context.Context, code string) (*models.InviteCode, error)

	// ListByOrg returns all invite codes of an organization, newest first.
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*models.InviteCode, error)

	// Delete revokes an invite code within orgID.
	// Returns ErrInviteCodeNotFound if the code doesn't exist in orgID.
	Delete(ctx context.Context, orgID, inviteID uuid.UUID) error

	// IncrementUsedCount increments used_count only if it still equals observed
	// and observed is below max_uses (compare-and-swap).
	// Returns ErrInviteCodeConflict when the conditional update matched no row.
	IncrementUsedCount(ctx context.Context, inviteID uuid.UUID, observed int) error

	// ReleaseUse gives back one use after a redemption failed past the increment.
	ReleaseUse(ctx context.Context, inviteID uuid.UUID) error
}
