package actions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/auth"
	"github.com/wolfeidau/hrdesk/internal/invite"
	"github.com/wolfeidau/hrdesk/internal/rbac"
	"github.com/wolfeidau/hrdesk/internal/store"
	"github.com/wolfeidau/hrdesk/internal/telemetry"
)

// Stores groups the storage dependencies of the action surface.
type Stores struct {
	Organizations store.OrganizationStore
	Profiles      store.ProfileStore
	Roles         store.RoleStore
	Invites       store.InviteCodeStore
	Employees     store.EmployeeStore
	Departments   store.DepartmentStore
	Positions     store.PositionStore
}

// Invalidator is told which console views are stale after a mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, paths ...string)
}

// LogInvalidator records stale views in the request log. Console responses are
// served with Cache-Control: no-store, so nothing else needs purging.
type LogInvalidator struct{}

func (LogInvalidator) Invalidate(ctx context.Context, paths ...string) {
	log.Ctx(ctx).Debug().Strs("paths", paths).Msg("Invalidated views")
}

// SessionRevoker ends the console sessions of a principal.
type SessionRevoker interface {
	DeleteByPrincipal(ctx context.Context, principalID uuid.UUID) (int, error)
}

// Service implements the named admin operations. Every operation takes the
// caller's AuthContext, checks the permission gate, validates input and only
// then touches storage with the caller's organization ID in every filter.
type Service struct {
	stores      Stores
	gate        *auth.Gate
	ledger      *invite.Ledger
	catalog     *rbac.Catalog
	invalidator Invalidator
	sessions    SessionRevoker // optional

	employeeInviteTTL time.Duration
	now               func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithInvalidator replaces the default LogInvalidator.
func WithInvalidator(inv Invalidator) Option {
	return func(s *Service) {
		s.invalidator = inv
	}
}

// WithSessionRevoker signs suspended and removed users out of the console.
func WithSessionRevoker(sessions SessionRevoker) Option {
	return func(s *Service) {
		s.sessions = sessions
	}
}

// WithEmployeeInviteTTL sets how long personal employee invites stay valid.
func WithEmployeeInviteTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.employeeInviteTTL = ttl
	}
}

// NewService creates the action service.
func NewService(stores Stores, gate *auth.Gate, ledger *invite.Ledger, catalog *rbac.Catalog, opts ...Option) *Service {
	s := &Service{
		stores:            stores,
		gate:              gate,
		ledger:            ledger,
		catalog:           catalog,
		invalidator:       LogInvalidator{},
		employeeInviteTTL: invite.DefaultEmployeeInviteTTL,
		now:               time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// observe records the outcome and duration of an action. Use as
// defer s.observe(ctx, "createDepartment", time.Now(), &err).
func (s *Service) observe(ctx context.Context, action string, start time.Time, errp *error) {
	duration := time.Since(start)
	outcome := outcomeOf(*errp)

	telemetry.GetMetrics().RecordAction(ctx, action, outcome, float64(duration.Milliseconds()))

	event := log.Ctx(ctx).Debug()
	if outcome == "error" {
		event = log.Ctx(ctx).Error().Err(*errp)
	}
	event.Str("action", action).
		Str("outcome", outcome).
		Dur("duration", duration).
		Msg("Action completed")
}

// revokeSessions is best effort; bearer tokens still expire on their own.
func (s *Service) revokeSessions(ctx context.Context, principalID uuid.UUID) {
	if s.sessions == nil {
		return
	}
	n, err := s.sessions.DeleteByPrincipal(ctx, principalID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("principal_id", principalID.String()).Msg("Failed to revoke sessions")
		return
	}
	log.Ctx(ctx).Info().Str("principal_id", principalID.String()).Int("count", n).Msg("Revoked sessions")
}

func outcomeOf(err error) string {
	var verr *ValidationError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, auth.ErrNotAuthenticated), errors.Is(err, auth.ErrOnboardingRequired):
		return "unauthenticated"
	case errors.Is(err, auth.ErrPermissionDenied):
		return "denied"
	case errors.As(err, &verr):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict), errors.Is(err, invite.ErrConcurrentConflict):
		return "conflict"
	case errors.Is(err, ErrOwnerRoleProtected), errors.Is(err, ErrLastOwner),
		errors.Is(err, ErrCannotSuspendSelf):
		return "rejected"
	case errors.Is(err, invite.ErrInvalidCode), errors.Is(err, invite.ErrExpired),
		errors.Is(err, invite.ErrExhausted), errors.Is(err, invite.ErrAlreadyMember),
		errors.Is(err, invite.ErrAlreadyLinked),
		errors.Is(err, invite.ErrLineIdentityRequired):
		return "rejected"
	default:
		return "error"
	}
}

// optional trims s and returns nil when it is empty.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
