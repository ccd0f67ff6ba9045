package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
)

const organizationColumns = `org_id, name, created_by, created_at, updated_at`

// OrganizationStore implements store.OrganizationStore using PostgreSQL.
type OrganizationStore struct {
	pool *pgxpool.Pool
}

func NewOrganizationStore(pool *pgxpool.Pool) *OrganizationStore {
	return &OrganizationStore{pool: pool}
}

func (s *OrganizationStore) Create(ctx context.Context, org *models.Organization) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO organizations (`+organizationColumns+`)
		VALUES ($1, $2, $3, $4, $5)`,
		org.OrgID, org.Name, org.CreatedBy, org.CreatedAt, org.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrOrganizationAlreadyExists
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}

	log.Debug().Str("org_id", org.OrgID.String()).Msg("Created organization")
	return nil
}

func (s *OrganizationStore) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	rows, _ := s.pool.Query(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE org_id = $1`, orgID)
	return collectOrganization(rows)
}

func (s *OrganizationStore) Rename(ctx context.Context, orgID uuid.UUID, name string) (*models.Organization, error) {
	rows, _ := s.pool.Query(ctx, `
		UPDATE organizations SET name = $2, updated_at = now()
		WHERE org_id = $1
		RETURNING `+organizationColumns,
		orgID, name,
	)
	return collectOrganization(rows)
}

// Delete relies on ON DELETE CASCADE for the tenant's rows.
func (s *OrganizationStore) Delete(ctx context.Context, orgID uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM organizations WHERE org_id = $1`, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrOrganizationNotFound
	}

	log.Info().Str("org_id", orgID.String()).Msg("Deleted organization")
	return nil
}

func collectOrganization(rows pgx.Rows) (*models.Organization, error) {
	org, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.Organization])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to read organization: %w", err)
	}
	return org, nil
}
