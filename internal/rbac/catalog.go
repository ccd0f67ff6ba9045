package rbac

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/models"
	"github.com/wolfeidau/hrdesk/internal/store"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// wildcard grants every permission in the catalog.
const wildcard = "*"

// Catalog is the permission catalog plus the default role templates.
type Catalog struct {
	Permissions []PermissionDef `yaml:"permissions"`
	Roles       []RoleTemplate  `yaml:"roles"`
}

// PermissionDef describes one permission key.
type PermissionDef struct {
	Key         string `yaml:"key"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
}

// RoleTemplate describes a role seeded into new organizations.
type RoleTemplate struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Permissions []string `yaml:"permissions"`
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// Parse parses a catalog document and validates that every role references
// known permission keys.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse permission catalog: %w", err)
	}

	known := make(map[string]struct{}, len(c.Permissions))
	for _, p := range c.Permissions {
		if p.Key == "" {
			return nil, fmt.Errorf("permission with empty key")
		}
		if _, dup := known[p.Key]; dup {
			return nil, fmt.Errorf("duplicate permission %q", p.Key)
		}
		known[p.Key] = struct{}{}
	}

	for _, r := range c.Roles {
		for _, key := range r.Permissions {
			if key == wildcard {
				continue
			}
			if _, ok := known[key]; !ok {
				return nil, fmt.Errorf("role %q references unknown permission %q", r.Name, key)
			}
		}
	}

	return &c, nil
}

// Models returns the catalog as permission models.
func (c *Catalog) Models() []*models.Permission {
	out := make([]*models.Permission, 0, len(c.Permissions))
	for _, p := range c.Permissions {
		out = append(out, &models.Permission{Key: p.Key, Description: p.Description, Category: p.Category})
	}
	return out
}

// Keys returns every permission key in catalog order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.Permissions))
	for _, p := range c.Permissions {
		keys = append(keys, p.Key)
	}
	return keys
}

// expand resolves the wildcard of a role template.
func (c *Catalog) expand(t RoleTemplate) []string {
	for _, key := range t.Permissions {
		if key == wildcard {
			return c.Keys()
		}
	}
	return append([]string{}, t.Permissions...)
}

// Sync upserts the permission catalog into the role store.
func (c *Catalog) Sync(ctx context.Context, roles store.RoleStore) error {
	if err := roles.SyncPermissions(ctx, c.Models()); err != nil {
		return fmt.Errorf("failed to sync permission catalog: %w", err)
	}
	log.Info().Int("permissions", len(c.Permissions)).Msg("Permission catalog synced")
	return nil
}

// SeedRoles creates the default roles for a new organization and returns them
// by name.
func (c *Catalog) SeedRoles(ctx context.Context, roles store.RoleStore, orgID uuid.UUID) (map[string]*models.Role, error) {
	now := time.Now()
	seeded := make(map[string]*models.Role, len(c.Roles))

	for _, t := range c.Roles {
		roleID, err := uuid.NewV7()
		if err != nil {
			return seeded, fmt.Errorf("failed to generate role ID: %w", err)
		}

		role := &models.Role{
			RoleID:         roleID,
			OrgID:          orgID,
			Name:           t.Name,
			Description:    t.Description,
			PermissionKeys: c.expand(t),
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if err := roles.Create(ctx, role); err != nil {
			return seeded, fmt.Errorf("failed to seed role %s: %w", t.Name, err)
		}

		seeded[t.Name] = role
	}

	log.Debug().
		Str("org_id", orgID.String()).
		Int("roles", len(seeded)).
		Msg("Seeded default roles")

	return seeded, nil
}
