package web

import (
	"fmt"
	"net/http"
	"strings"

	"filippo.io/csrf"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/hrdesk/internal/auth"
	httpmiddleware "github.com/wolfeidau/hrdesk/internal/http"
	"github.com/wolfeidau/hrdesk/internal/login"
	"github.com/wolfeidau/hrdesk/internal/logger"
	"github.com/wolfeidau/hrdesk/internal/website/oidc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config holds the collaborators of the HTTP surface.
type Config struct {
	API           *API
	Authenticator *auth.Authenticator
	Login         *login.Line // nil disables the console login routes
	Tokens        *oidc.Handler

	// LIFF token verification for POST /liff/session.
	LIFFAccessTokens oidc.AccessTokenVerifier
	LIFFIDTokens     oidc.IDTokenVerifier

	Metrics     *httpmiddleware.Metrics // nil disables /metrics
	Logger      zerolog.Logger
	CORSOrigins []string
}

// NewHandler assembles the routes and middleware of the server.
func NewHandler(cfg Config) (http.Handler, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.Handle("GET /.well-known/openid-configuration", cfg.Tokens.DiscoveryHandler())
	mux.Handle("GET /.well-known/jwks.json", cfg.Tokens.JWKSHandler())
	mux.Handle("POST /liff/session", cfg.Tokens.LIFFSessionHandler(cfg.LIFFAccessTokens, cfg.LIFFIDTokens))

	if cfg.Login != nil {
		mux.HandleFunc("GET "+LoginPath, cfg.Login.LoginHandler)
		mux.HandleFunc("GET /auth/callback", cfg.Login.CallbackHandler)
		mux.HandleFunc("POST /auth/logout", cfg.Login.LogoutHandler)
		mux.Handle("POST /auth/token", cfg.Tokens.TokenHandler(cfg.Login))
	}

	api := http.NewServeMux()
	cfg.API.Register(api)
	cfg.API.RegisterLIFF(api)
	mux.Handle("/api/", httpmiddleware.NoStore(api))
	mux.Handle("/liff/", httpmiddleware.NoStore(api))

	cfg.API.RegisterConsole(mux)

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	protection := csrf.New()
	for _, origin := range cfg.CORSOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("invalid CORS origin %q: %w", origin, err)
		}
	}
	// LIFF requests are bearer authenticated from the LIFF domain
	protection.AddUnsafeBypassPattern("POST /liff/")

	var handler http.Handler = mux
	if cfg.Metrics != nil {
		// innermost so the matched route pattern is visible after serving
		handler = cfg.Metrics.Middleware(handler)
	}
	handler = cfg.Authenticator.Middleware()(handler)
	handler = protection.Handler(handler)
	handler = withCORS(cfg.CORSOrigins, handler)

	handler = httpmiddleware.Chain(handler,
		httpmiddleware.ClientIPMiddleware(),
		logger.Requests(cfg.Logger),
		httpmiddleware.Compress,
	)

	// spans are only exported once telemetry.Setup installs a provider
	return otelhttp.NewHandler(handler, "hrdesk.http"), nil
}

// withCORS adds CORS support to the API and LIFF routes only.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true, // console requests carry the session cookie
	})
	withHeaders := middleware.Handler(h)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isAPIRoute(r.URL.Path) {
			withHeaders.ServeHTTP(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func isAPIRoute(path string) bool {
	return strings.HasPrefix(path, "/api/") ||
		strings.HasPrefix(path, "/liff/") ||
		strings.HasPrefix(path, "/.well-known/")
}
