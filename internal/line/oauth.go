package line

import (
	"net/http"

	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2"
)

// Endpoint is the LINE Login OAuth 2.0 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://access.line.me/oauth2/v2.1/authorize",
	TokenURL:  "https://api.line.me/oauth2/v2.1/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// NewOAuthConfig returns the OAuth2 configuration of a LINE Login channel.
func NewOAuthConfig(channelID, channelSecret, callbackURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     channelID,
		ClientSecret: channelSecret,
		Endpoint:     Endpoint,
		RedirectURL:  callbackURL,
		Scopes:       []string{"openid", "profile", "email"},
	}
}

// NewCachingHTTPClient returns an HTTP client that honours Cache-Control on
// responses, used for the LINE JWKS endpoint.
func NewCachingHTTPClient() *http.Client {
	return &http.Client{
		Transport: httpcache.NewTransport(httpcache.NewMemoryCache()),
	}
}
