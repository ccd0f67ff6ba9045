package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var ErrUnknownKid = errors.New("kid not found in JWKS")

// JWK is the subset of RFC 7517 fields needed for P-256 verification keys.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	Kid string `json:"kid"`
	Alg string `json:"alg,omitempty"`
	Use string `json:"use,omitempty"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

type jwkSet struct {
	Keys []JWK `json:"keys"`
}

// JWKSCache implements KeySource by fetching JSON Web Key Sets over HTTP.
// Each set is held in memory for an hour per URL. The HTTP client may add its
// own response caching on top.
type JWKSCache struct {
	client *resty.Client
	ttl    time.Duration

	mu   sync.RWMutex
	sets map[string]keySet
}

type keySet struct {
	keys      map[string]*ecdsa.PublicKey
	fetchedAt time.Time
}

// NewJWKSCache creates a JWKS cache. A nil client gets a 10 second timeout.
func NewJWKSCache(httpClient *http.Client) *JWKSCache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &JWKSCache{
		client: resty.NewWithClient(httpClient),
		ttl:    time.Hour,
		sets:   make(map[string]keySet),
	}
}

// GetKey returns the key with the given kid. A kid missing from a fresh set
// forces a refetch so rotated keys are picked up.
func (c *JWKSCache) GetKey(ctx context.Context, jwksURL, kid string) (*ecdsa.PublicKey, error) {
	if key, ok := c.lookup(jwksURL, kid); ok {
		return key, nil
	}

	keys, err := c.fetch(ctx, jwksURL)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.sets[jwksURL] = keySet{keys: keys, fetchedAt: time.Now()}
	c.mu.Unlock()

	key, ok := keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKid, kid)
	}
	return key, nil
}

func (c *JWKSCache) lookup(jwksURL, kid string) (*ecdsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	set, ok := c.sets[jwksURL]
	if !ok || time.Since(set.fetchedAt) > c.ttl {
		return nil, false
	}
	key, ok := set.keys[kid]
	return key, ok
}

func (c *JWKSCache) fetch(ctx context.Context, jwksURL string) (map[string]*ecdsa.PublicKey, error) {
	var set jwkSet
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&set).
		Get(jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("JWKS request failed: %s", resp.Status())
	}

	keys := make(map[string]*ecdsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Kid == "" {
			continue
		}
		key, err := jwk.PublicKey()
		if err != nil {
			log.Warn().Err(err).Str("kid", jwk.Kid).Msg("Skipping unusable JWK")
			continue
		}
		keys[jwk.Kid] = key
	}

	log.Debug().Str("jwks_url", jwksURL).Int("keys", len(keys)).Msg("Fetched JWKS")
	return keys, nil
}

// PublicKey converts an EC P-256 JWK to an ECDSA public key.
func (k JWK) PublicKey() (*ecdsa.PublicKey, error) {
	if k.Kty != "EC" || k.Crv != "P-256" {
		return nil, fmt.Errorf("unsupported key %s/%s", k.Kty, k.Crv)
	}

	x, err := decodeBase64URL(k.X)
	if err != nil {
		return nil, fmt.Errorf("failed to decode x: %w", err)
	}
	y, err := decodeBase64URL(k.Y)
	if err != nil {
		return nil, fmt.Errorf("failed to decode y: %w", err)
	}

	key := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}
	if _, err := key.ECDH(); err != nil {
		return nil, fmt.Errorf("invalid EC point: %w", err)
	}
	return key, nil
}

// decodeBase64URL decodes a base64url string, padded or not.
func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
