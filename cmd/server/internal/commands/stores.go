package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/actions"
	"github.com/wolfeidau/hrdesk/internal/store"
	memorystore "github.com/wolfeidau/hrdesk/internal/store/memory"
	postgresstore "github.com/wolfeidau/hrdesk/internal/store/postgres"
	redisstore "github.com/wolfeidau/hrdesk/internal/store/redis"
)

// backend groups every store the server needs plus the cleanup to run on exit.
type backend struct {
	actions    actions.Stores
	identities store.IdentityStore
	sessions   store.SessionStore
	closers    []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func (c *ServeCmd) openBackend(ctx context.Context) (*backend, error) {
	b := &backend{}

	switch c.StoreType {
	case "postgres":
		pool, err := c.PostgresStore.connect(ctx)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.Migrate(ctx, pool); err != nil {
				b.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		b.actions = actions.Stores{
			Organizations: postgresstore.NewOrganizationStore(pool),
			Profiles:      postgresstore.NewProfileStore(pool),
			Roles:         postgresstore.NewRoleStore(pool),
			Invites:       postgresstore.NewInviteCodeStore(pool),
			Employees:     postgresstore.NewEmployeeStore(pool),
			Departments:   postgresstore.NewDepartmentStore(pool),
			Positions:     postgresstore.NewPositionStore(pool),
		}
		b.identities = postgresstore.NewIdentityStore(pool)
		if c.SessionStore == "postgres" {
			b.sessions = postgresstore.NewSessionStore(pool)
		}

		log.Info().Msg("Using PostgreSQL stores with shared connection pool")

	default:
		b.actions = actions.Stores{
			Organizations: memorystore.NewOrganizationStore(),
			Profiles:      memorystore.NewProfileStore(),
			Roles:         memorystore.NewRoleStore(),
			Invites:       memorystore.NewInviteCodeStore(),
			Employees:     memorystore.NewEmployeeStore(),
			Departments:   memorystore.NewDepartmentStore(),
			Positions:     memorystore.NewPositionStore(),
		}
		b.identities = memorystore.NewIdentityStore()

		log.Warn().Msg("Using in-memory stores, data is lost on restart")
	}

	switch c.SessionStore {
	case "redis":
		client, err := redisstore.NewClient(ctx, redisstore.Config{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close redis client")
			}
		})
		b.sessions = redisstore.NewSessionStore(client)
		log.Info().Str("addr", c.Redis.Addr).Msg("Using Redis session store")

	case "postgres":
		if b.sessions == nil {
			b.Close()
			return nil, fmt.Errorf("the postgres session store requires --store-type=postgres")
		}

	default:
		b.sessions = memorystore.NewSessionStore()
	}

	return b, nil
}
