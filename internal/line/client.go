package line

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// DefaultAPIBaseURL is the LINE Platform REST API.
const DefaultAPIBaseURL = "https://api.line.me"

var (
	ErrInvalidAccessToken = errors.New("invalid LINE access token")
	ErrChannelMismatch    = errors.New("LINE token was issued for another channel")
)

// Profile is the LINE user profile returned by /v2/profile.
type Profile struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	PictureURL    string `json:"pictureUrl,omitempty"`
	StatusMessage string `json:"statusMessage,omitempty"`
}

// AccessTokenInfo is the result of verifying an access token.
type AccessTokenInfo struct {
	Scope     string `json:"scope"`
	ClientID  string `json:"client_id"`
	ExpiresIn int64  `json:"expires_in"`
}

type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
}

func (e *apiError) String() string {
	switch {
	case e.ErrorDescription != "":
		return e.ErrorDescription
	case e.Message != "":
		return e.Message
	default:
		return e.Error
	}
}

// Client calls the LINE Platform REST API.
type Client struct {
	http       *resty.Client
	channelIDs []string
}

// NewClient creates a LINE API client. Access tokens are accepted only when
// issued for one of channelIDs (the LINE Login channel and the LIFF channel).
func NewClient(baseURL string, httpClient *http.Client, channelIDs ...string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	client := resty.NewWithClient(httpClient).
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Accept", "application/json")

	// Only retry transport failures and LINE-side errors.
	client.AddRetryCondition(func(resp *resty.Response, err error) bool {
		return err != nil || resp.StatusCode() >= http.StatusInternalServerError
	})

	return &Client{
		http:       client,
		channelIDs: channelIDs,
	}
}

// VerifyAccessToken checks an access token with LINE and that it belongs to
// one of the configured channels.
func (c *Client) VerifyAccessToken(ctx context.Context, accessToken string) (*AccessTokenInfo, error) {
	var info AccessTokenInfo
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("access_token", accessToken).
		SetResult(&info).
		SetError(&apiErr).
		Get("/oauth2/v2.1/verify")
	if err != nil {
		return nil, fmt.Errorf("failed to call LINE verify: %w", err)
	}

	if resp.IsError() {
		log.Debug().
			Int("status", resp.StatusCode()).
			Str("error", apiErr.String()).
			Msg("LINE access token rejected")
		if resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusUnauthorized {
			return nil, ErrInvalidAccessToken
		}
		return nil, fmt.Errorf("LINE verify failed with status %d: %s", resp.StatusCode(), apiErr.String())
	}

	if info.ExpiresIn <= 0 {
		return nil, ErrInvalidAccessToken
	}
	if len(c.channelIDs) > 0 && !slices.Contains(c.channelIDs, info.ClientID) {
		return nil, ErrChannelMismatch
	}

	return &info, nil
}

// GetProfile fetches the profile of the user an access token belongs to.
func (c *Client) GetProfile(ctx context.Context, accessToken string) (*Profile, error) {
	var profile Profile
	var apiErr apiError

	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&profile).
		SetError(&apiErr).
		Get("/v2/profile")
	if err != nil {
		return nil, fmt.Errorf("failed to call LINE profile: %w", err)
	}

	if resp.IsError() {
		if resp.StatusCode() == http.StatusUnauthorized {
			return nil, ErrInvalidAccessToken
		}
		return nil, fmt.Errorf("LINE profile failed with status %d: %s", resp.StatusCode(), apiErr.String())
	}

	if profile.UserID == "" {
		return nil, fmt.Errorf("LINE profile response has no user ID")
	}

	return &profile, nil
}

// VerifiedProfile verifies an access token and then fetches its profile.
func (c *Client) VerifiedProfile(ctx context.Context, accessToken string) (*Profile, error) {
	if _, err := c.VerifyAccessToken(ctx, accessToken); err != nil {
		return nil, err
	}
	return c.GetProfile(ctx, accessToken)
}
