package invite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
	"github.com/wolfeidau/hrdesk/internal/telemetry"
)

// DefaultEmployeeInviteTTL is how long a personal employee invite stays valid.
const DefaultEmployeeInviteTTL = 7 * 24 * time.Hour

var (
	ErrInvalidCode          = errors.New("invalid invite code")
	ErrExpired              = errors.New("invite code has expired")
	ErrExhausted            = errors.New("invite code has no uses left")
	ErrConcurrentConflict   = errors.New("invite code was used by someone else at the same time, please try again")
	ErrAlreadyMember        = errors.New("already a member of an organization")
	ErrAlreadyLinked        = errors.New("employee is already linked to a LINE account")
	ErrLineIdentityRequired = errors.New("a LINE identity is required to link an employee")
)

// Ledger redeems organization invite codes and personal employee invites.
// Redemption does not consult the permission gate: the redeeming principal has
// no permissions yet.
type Ledger struct {
	invites   store.InviteCodeStore
	profiles  store.ProfileStore
	roles     store.RoleStore
	employees store.EmployeeStore

	now        func() time.Time
	newCode    func() (string, error)
	retryDelay time.Duration
}

// issueAttempts bounds retries when a generated employee invite code collides.
const issueAttempts = 3

// NewLedger creates a ledger over the given stores.
func NewLedger(invites store.InviteCodeStore, profiles store.ProfileStore, roles store.RoleStore, employees store.EmployeeStore) *Ledger {
	return &Ledger{
		invites:    invites,
		profiles:   profiles,
		roles:      roles,
		employees:  employees,
		now:        time.Now,
		newCode:    NewCode,
		retryDelay: 50 * time.Millisecond,
	}
}

// RedeemOrgInvite joins identity to the organization of code. The use is
// claimed with a compare-and-swap on used_count; a lost race is retried once
// against a fresh read before ErrConcurrentConflict is returned.
func (l *Ledger) RedeemOrgInvite(ctx context.Context, identity *models.Identity, code string) (*models.Profile, error) {
	_, err := l.profiles.Get(ctx, identity.PrincipalID)
	switch {
	case err == nil:
		return nil, ErrAlreadyMember
	case !errors.Is(err, store.ErrProfileNotFound):
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	invite, err := backoff.Retry(ctx, func() (*models.InviteCode, error) {
		invite, err := l.claim(ctx, code)
		if errors.Is(err, ErrConcurrentConflict) {
			log.Debug().Str("code", code).Msg("Invite claim lost a race, retrying")
			return nil, err
		}
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return invite, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(l.retryDelay)),
		backoff.WithMaxTries(2),
	)
	if err != nil {
		telemetry.GetMetrics().RecordInviteRedemption(ctx, "org", outcome(err))
		return nil, err
	}

	profile := models.NewProfile(identity, invite.OrgID, l.now())
	if err := l.profiles.Create(ctx, profile); err != nil {
		if releaseErr := l.invites.ReleaseUse(ctx, invite.InviteID); releaseErr != nil {
			log.Error().Err(releaseErr).Str("invite_id", invite.InviteID.String()).Msg("Failed to release invite use")
		}
		if errors.Is(err, store.ErrProfileAlreadyExists) {
			err = ErrAlreadyMember
		}
		telemetry.GetMetrics().RecordInviteRedemption(ctx, "org", outcome(err))
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	if invite.RoleID != nil {
		// The store only assigns roles owned by the code's organization.
		if err := l.roles.AssignToUser(ctx, invite.OrgID, identity.PrincipalID, *invite.RoleID); err != nil {
			log.Warn().Err(err).
				Str("principal_id", identity.PrincipalID.String()).
				Str("role_id", invite.RoleID.String()).
				Msg("Failed to assign invite role")
		}
	}

	telemetry.GetMetrics().RecordInviteRedemption(ctx, "org", "success")

	log.Info().
		Str("principal_id", identity.PrincipalID.String()).
		Str("org_id", invite.OrgID.String()).
		Msg("Invite code redeemed")

	return profile, nil
}

// claim validates the code and increments used_count against the observed value.
func (l *Ledger) claim(ctx context.Context, code string) (*models.InviteCode, error) {
	if code == "" {
		return nil, ErrInvalidCode
	}

	invite, err := l.invites.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrInviteCodeNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to load invite code: %w", err)
	}

	if invite.IsExpired(l.now()) {
		return nil, ErrExpired
	}
	if invite.IsExhausted() {
		return nil, ErrExhausted
	}

	if err := l.invites.IncrementUsedCount(ctx, invite.InviteID, invite.UsedCount); err != nil {
		if errors.Is(err, store.ErrInviteCodeConflict) {
			telemetry.GetMetrics().InviteConflictsTotal.Add(ctx, 1)
			return nil, ErrConcurrentConflict
		}
		return nil, fmt.Errorf("failed to claim invite code: %w", err)
	}

	invite.UsedCount++
	return invite, nil
}

// LookupEmployeeInvite returns the pending employee holding an unexpired invite code.
func (l *Ledger) LookupEmployeeInvite(ctx context.Context, code string) (*models.Employee, error) {
	if code == "" {
		return nil, ErrInvalidCode
	}

	employee, err := l.employees.GetPendingByInviteCode(ctx, code, l.now())
	if err != nil {
		if errors.Is(err, store.ErrEmployeeNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("failed to look up invite code: %w", err)
	}

	return employee, nil
}

// LinkRequest identifies the employee to claim and the LINE identity claiming it.
type LinkRequest struct {
	EmployeeCode string
	InviteCode   string
	LineUserID   string
	UserID       *uuid.UUID
}

// LinkEmployee binds a LINE identity to a pending employee in one conditional
// update, activating the employee and consuming its invite. Both the employee
// code and its unexpired invite code must match.
func (l *Ledger) LinkEmployee(ctx context.Context, req LinkRequest) (*models.Employee, error) {
	if req.EmployeeCode == "" || req.InviteCode == "" {
		telemetry.GetMetrics().RecordInviteRedemption(ctx, "employee", outcome(ErrInvalidCode))
		return nil, ErrInvalidCode
	}
	if req.LineUserID == "" {
		return nil, ErrLineIdentityRequired
	}

	employee, err := l.employees.LinkIdentity(ctx, store.LinkParams{
		EmployeeCode: req.EmployeeCode,
		InviteCode:   req.InviteCode,
		LineUserID:   req.LineUserID,
		UserID:       req.UserID,
		Now:          l.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEmployeeNotFound), errors.Is(err, store.ErrEmployeeAmbiguous):
			err = l.classifyLinkFailure(ctx, req)
		case errors.Is(err, store.ErrLineUserAlreadyLinked):
			err = ErrAlreadyLinked
		default:
			err = fmt.Errorf("failed to link employee: %w", err)
		}
		telemetry.GetMetrics().RecordInviteRedemption(ctx, "employee", outcome(err))
		return nil, err
	}

	telemetry.GetMetrics().RecordInviteRedemption(ctx, "employee", "success")
	telemetry.GetMetrics().EmployeeLinksTotal.Add(ctx, 1)

	log.Info().
		Str("employee_id", employee.EmployeeID.String()).
		Str("org_id", employee.OrgID.String()).
		Msg("Employee linked to LINE account")

	return employee, nil
}

// classifyLinkFailure explains why no pending employee matched a link request.
func (l *Ledger) classifyLinkFailure(ctx context.Context, req LinkRequest) error {
	candidates, err := l.employees.FindByEmployeeCode(ctx, req.EmployeeCode)
	if err != nil {
		return fmt.Errorf("failed to look up employee code: %w", err)
	}

	// Only the employee holding the presented invite code is considered.
	now := l.now()
	for _, e := range candidates {
		if e.InviteCode == nil || *e.InviteCode != req.InviteCode {
			continue
		}
		if e.Status == models.EmployeeStatusPending && !e.InviteRedeemable(now) {
			return ErrExpired
		}
	}

	return ErrInvalidCode
}

// IssueEmployeeInvite stores a fresh personal invite for a pending employee in
// orgID and returns the code and its expiry.
func (l *Ledger) IssueEmployeeInvite(ctx context.Context, orgID, employeeID uuid.UUID, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = DefaultEmployeeInviteTTL
	}

	now := l.now()
	expiresAt := now.Add(ttl)

	code, err := backoff.Retry(ctx, func() (string, error) {
		code, err := l.newCode()
		if err != nil {
			return "", backoff.Permanent(err)
		}
		err = l.employees.SetInvite(ctx, orgID, employeeID, code, expiresAt, now)
		if errors.Is(err, store.ErrEmployeeInviteTaken) {
			log.Debug().Str("employee_id", employeeID.String()).Msg("Employee invite code collided, retrying")
			return "", err
		}
		if err != nil {
			return "", backoff.Permanent(err)
		}
		return code, nil
	},
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(issueAttempts),
	)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to issue employee invite: %w", err)
	}

	log.Debug().
		Str("employee_id", employeeID.String()).
		Time("expires_at", expiresAt).
		Msg("Issued employee invite")

	return code, expiresAt, nil
}

// outcome maps a redemption error to a metric label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidCode):
		return "invalid"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	case errors.Is(err, ErrConcurrentConflict):
		return "conflict"
	case errors.Is(err, ErrAlreadyMember), errors.Is(err, ErrAlreadyLinked):
		return "duplicate"
	default:
		return "error"
	}
}
