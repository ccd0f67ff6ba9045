package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/actions"
	"github.com/wolfeidau/hrdesk/internal/auth"
	httpmiddleware "github.com/wolfeidau/hrdesk/internal/http"
	"github.com/wolfeidau/hrdesk/internal/invite"
	"github.com/wolfeidau/hrdesk/internal/line"
	"github.com/wolfeidau/hrdesk/internal/logger"
	"github.com/wolfeidau/hrdesk/internal/login"
	"github.com/wolfeidau/hrdesk/internal/rbac"
	"github.com/wolfeidau/hrdesk/internal/telemetry"
	"github.com/wolfeidau/hrdesk/internal/tenant"
	"github.com/wolfeidau/hrdesk/internal/web"
	"github.com/wolfeidau/hrdesk/internal/website/oidc"
)

type ServeCmd struct {
	Listen      string   `help:"listen address" default:"localhost:8080" env:"HRDESK_LISTEN"`
	Cert        string   `help:"path to TLS cert file" default:"" env:"HRDESK_CERT"`
	Key         string   `help:"path to TLS key file" default:"" env:"HRDESK_KEY"`
	BaseURL     string   `help:"public base URL, used as the access token issuer" default:"http://localhost:8080" env:"HRDESK_BASE_URL"`
	CORSOrigins []string `help:"origins trusted for CORS and cross-origin form posts" env:"HRDESK_CORS_ORIGINS"`
	SigningKey  string   `help:"path to the PEM encoded P-256 key used to sign access tokens" default:"" env:"HRDESK_SIGNING_KEY"`

	SessionTTL        time.Duration `help:"console session lifetime" default:"24h" env:"HRDESK_SESSION_TTL"`
	SweepInterval     time.Duration `help:"how often expired sessions are removed" default:"15m" env:"HRDESK_SWEEP_INTERVAL"`
	AccessTokenTTL    time.Duration `help:"lifetime of issued access tokens" default:"1h" env:"HRDESK_ACCESS_TOKEN_TTL"`
	EmployeeInviteTTL time.Duration `help:"lifetime of employee link codes" default:"168h" env:"HRDESK_EMPLOYEE_INVITE_TTL"`

	StoreType    string `help:"store type to use" default:"memory" enum:"memory,postgres" env:"HRDESK_STORE_TYPE"`
	SessionStore string `help:"session store to use" default:"memory" enum:"memory,postgres,redis" env:"HRDESK_SESSION_STORE"`

	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
	Redis         RedisFlags         `embed:"" prefix:"redis-"`
	Line          LineFlags          `embed:"" prefix:"line-"`

	Tracing          bool    `help:"export traces and metrics over OTLP" default:"false" env:"HRDESK_TRACING"`
	TraceSampleRatio float64 `help:"fraction of root spans exported" default:"1" env:"HRDESK_TRACE_SAMPLE_RATIO"`
	Metrics          bool    `help:"serve prometheus metrics on /metrics" default:"true" env:"HRDESK_METRICS"`
}

func (c *ServeCmd) Run(globals *Globals) error {
	logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", globals.Version).Str("listen", c.Listen).Msg("Starting hrdesk server")

	if c.Tracing {
		shutdown, err := telemetry.Setup(ctx, telemetry.Config{
			ServiceName: "hrdesk",
			Version:     globals.Version,
			SampleRatio: c.TraceSampleRatio,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	backend, err := c.openBackend(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()

	catalog, err := rbac.Load()
	if err != nil {
		return fmt.Errorf("failed to load permission catalog: %w", err)
	}
	if err := catalog.Sync(ctx, backend.actions.Roles); err != nil {
		return fmt.Errorf("failed to sync permission catalog: %w", err)
	}

	sweeper := login.NewSweeper(ctx, backend.sessions, c.SweepInterval)
	defer sweeper.Stop()

	handler, err := c.buildHandler(backend, catalog)
	if err != nil {
		return err
	}

	server := configureHTTPServer(c.Listen, handler)

	errCh := make(chan error, 1)
	go func() {
		if c.Cert != "" && c.Key != "" {
			log.Info().Str("addr", c.Listen).Msg("Listening with TLS")
			errCh <- server.ListenAndServeTLS(c.Cert, c.Key)
			return
		}
		log.Warn().Str("addr", c.Listen).Msg("Listening without TLS")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	log.Info().Msg("Server stopped")
	return nil
}

func (c *ServeCmd) buildHandler(backend *backend, catalog *rbac.Catalog) (http.Handler, error) {
	keyManager, err := c.keyManager()
	if err != nil {
		return nil, err
	}

	gate := auth.NewGate(backend.actions.Profiles, backend.actions.Roles)
	ledger := invite.NewLedger(backend.actions.Invites, backend.actions.Profiles, backend.actions.Roles, backend.actions.Employees)
	service := actions.NewService(backend.actions, gate, ledger, catalog,
		actions.WithEmployeeInviteTTL(c.EmployeeInviteTTL),
		actions.WithSessionRevoker(backend.sessions),
	)

	lineHTTP := line.NewCachingHTTPClient()
	lineKeys := auth.NewJWKSCache(lineHTTP)

	cfg := web.Config{
		API:    web.NewAPI(service),
		Tokens: oidc.NewHandler(keyManager, backend.identities, c.BaseURL, c.AccessTokenTTL),

		LIFFAccessTokens: line.NewClient(c.Line.APIBaseURL, nil, c.Line.channelIDs()...),
		LIFFIDTokens:     line.NewIDTokenVerifier("", lineKeys, "", c.Line.channelIDs()...),

		Logger:      log.Logger,
		CORSOrigins: c.CORSOrigins,
	}

	var sessions auth.SessionProvider
	if c.Line.loginEnabled() {
		lineLogin, err := login.NewLine(
			line.NewOAuthConfig(c.Line.ChannelID, c.Line.ChannelSecret, c.Line.CallbackURL),
			line.NewIDTokenVerifier(c.Line.ChannelSecret, lineKeys, "", c.Line.ChannelID),
			login.Stores{Sessions: backend.sessions, Identities: backend.identities},
			c.SessionTTL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to configure LINE login: %w", err)
		}
		cfg.Login = lineLogin
		sessions = lineLogin
	} else {
		log.Warn().Msg("LINE login is not configured, console sign in is disabled")
	}

	verifier := auth.NewTokenVerifier(strings.TrimSuffix(c.BaseURL, "/"), keyManager)
	cfg.Authenticator = auth.NewAuthenticator(verifier, sessions, backend.identities, tenant.NewResolver(backend.actions.Profiles))

	if c.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		cfg.Metrics = httpmiddleware.NewMetrics(reg)
	}

	return web.NewHandler(cfg)
}

func (c *ServeCmd) keyManager() (*oidc.KeyManager, error) {
	if c.SigningKey == "" {
		log.Warn().Msg("No signing key configured, access tokens will not survive a restart")
		return oidc.NewKeyManager()
	}

	data, err := os.ReadFile(c.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key: %w", err)
	}

	km, err := oidc.NewKeyManagerFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	log.Info().Str("kid", km.Kid()).Msg("Loaded signing key")
	return km, nil
}
