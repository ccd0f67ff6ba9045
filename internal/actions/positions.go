package actions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/auth"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

const (
	minPositionLevel = 1
	maxPositionLevel = 10
)

// PositionInput carries the editable fields of a position.
type PositionInput struct {
	Name         string     `json:"name"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	Level        int        `json:"level"` // 0 means the default level
}

func (in *PositionInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return invalid("name", "position name is required")
	}
	if in.Level == 0 {
		in.Level = models.DefaultPositionLevel
	}
	if in.Level < minPositionLevel || in.Level > maxPositionLevel {
		return invalid("level", fmt.Sprintf("must be between %d and %d", minPositionLevel, maxPositionLevel))
	}
	return nil
}

// ListPositions returns the positions of the caller's organization, optionally
// restricted to one department.
func (s *Service) ListPositions(ctx context.Context, ac *auth.AuthContext, departmentID *uuid.UUID) (result []*models.Position, err error) {
	defer s.observe(ctx, "listPositions", time.Now(), &err)

	if err := auth.RequireMember(ac); err != nil {
		return nil, err
	}

	positions, err := s.stores.Positions.ListByOrg(ctx, ac.OrgID, departmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}

	return positions, nil
}

func (s *Service) position(ctx context.Context, orgID, positionID uuid.UUID) (*models.Position, error) {
	position, err := s.stores.Positions.Get(ctx, orgID, positionID)
	if err != nil {
		if errors.Is(err, store.ErrPositionNotFound) {
			return nil, notFound("position")
		}
		return nil, fmt.Errorf("failed to load position: %w", err)
	}
	return position, nil
}

// CreatePosition creates a position in the caller's organization.
func (s *Service) CreatePosition(ctx context.Context, ac *auth.AuthContext, in PositionInput) (result *models.Position, err error) {
	defer s.observe(ctx, "createPosition", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermPositionsManage); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkDepartmentRef(ctx, ac.OrgID, "department_id", in.DepartmentID); err != nil {
		return nil, err
	}

	positionID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate position ID: %w", err)
	}

	now := s.now()
	position := &models.Position{
		PositionID:   positionID,
		OrgID:        ac.OrgID,
		DepartmentID: in.DepartmentID,
		Name:         in.Name,
		Level:        in.Level,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.stores.Positions.Create(ctx, position); err != nil {
		if errors.Is(err, store.ErrPositionAlreadyExists) {
			return nil, conflict("position")
		}
		return nil, fmt.Errorf("failed to create position: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/admin/positions")

	return position, nil
}

// UpdatePosition updates a position of the caller's organization.
func (s *Service) UpdatePosition(ctx context.Context, ac *auth.AuthContext, positionID uuid.UUID, in PositionInput) (result *models.Position, err error) {
	defer s.observe(ctx, "updatePosition", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermPositionsManage); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.checkDepartmentRef(ctx, ac.OrgID, "department_id", in.DepartmentID); err != nil {
		return nil, err
	}

	position, err := s.position(ctx, ac.OrgID, positionID)
	if err != nil {
		return nil, err
	}

	position.Name = in.Name
	position.DepartmentID = in.DepartmentID
	position.Level = in.Level

	if err := s.stores.Positions.Update(ctx, position); err != nil {
		if errors.Is(err, store.ErrPositionNotFound) {
			return nil, notFound("position")
		}
		return nil, fmt.Errorf("failed to update position: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/admin/positions")

	return position, nil
}

// DeletePosition deletes a position of the caller's organization.
func (s *Service) DeletePosition(ctx context.Context, ac *auth.AuthContext, positionID uuid.UUID) (err error) {
	defer s.observe(ctx, "deletePosition", time.Now(), &err)

	if err := s.gate.Require(ctx, ac, auth.PermPositionsManage); err != nil {
		return err
	}

	if err := s.stores.Positions.Delete(ctx, ac.OrgID, positionID); err != nil {
		if errors.Is(err, store.ErrPositionNotFound) {
			return notFound("position")
		}
		return fmt.Errorf("failed to delete position: %w", err)
	}

	s.invalidator.Invalidate(ctx, "/admin/positions")

	return nil
}
