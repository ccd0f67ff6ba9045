package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	postgresstore "github.com/wolfeidau/hrdesk/internal/store/postgres"
)

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32         `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32         `help:"minimum number of connections in pool" default:"2"`
	MaxConnLifetime time.Duration `help:"maximum connection lifetime" default:"1h"`
	MaxConnIdleTime time.Duration `help:"maximum connection idle time" default:"30m"`
	ConnectRetry    time.Duration `help:"how long to keep retrying the initial connection" default:"30s" env:"HRDESK_POSTGRES_CONNECT_RETRY"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"HRDESK_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

// connect opens the shared pool, retrying while the database comes up.
func (s *PostgresStoreFlags) connect(ctx context.Context) (*pgxpool.Pool, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	poolCfg := &postgresstore.PoolConfig{
		ConnString:      s.ConnString,
		MaxConns:        s.MaxConns,
		MinConns:        s.MinConns,
		MaxConnLifetime: s.MaxConnLifetime,
		MaxConnIdleTime: s.MaxConnIdleTime,
	}

	pool, err := backoff.Retry(ctx, func() (*pgxpool.Pool, error) {
		return postgresstore.NewPool(ctx, poolCfg)
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(s.ConnectRetry),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retry_in", next).Msg("PostgreSQL not ready")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	return pool, nil
}

type RedisFlags struct {
	Addr     string `help:"Redis address for the redis session store" default:"localhost:6379" env:"HRDESK_REDIS_ADDR"`
	Password string `help:"Redis password" default:"" env:"HRDESK_REDIS_PASSWORD"`
	DB       int    `help:"Redis database number" default:"0" env:"HRDESK_REDIS_DB"`
}

type LineFlags struct {
	ChannelID     string `help:"LINE Login channel ID" default:"" env:"HRDESK_LINE_CHANNEL_ID"`
	ChannelSecret string `help:"LINE Login channel secret" default:"" env:"HRDESK_LINE_CHANNEL_SECRET"`
	CallbackURL   string `help:"LINE Login callback URL" default:"" env:"HRDESK_LINE_CALLBACK_URL"`
	LIFFChannelID string `help:"LINE channel ID of the LIFF app" default:"" env:"HRDESK_LIFF_CHANNEL_ID"`
	APIBaseURL    string `help:"LINE API base URL" default:"https://api.line.me" env:"HRDESK_LINE_API_BASE_URL"`
}

// loginEnabled reports whether the console login flow is configured.
func (f *LineFlags) loginEnabled() bool {
	return f.ChannelID != "" && f.ChannelSecret != "" && f.CallbackURL != ""
}

// channelIDs lists every channel whose tokens are accepted.
func (f *LineFlags) channelIDs() []string {
	var ids []string
	for _, id := range []string{f.ChannelID, f.LIFFChannelID} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
