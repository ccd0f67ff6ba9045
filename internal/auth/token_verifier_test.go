package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type testSigner struct {
	key *ecdsa.PrivateKey
	kid string
}

func newTestSigner(t *testing.T, kid string) *testSigner {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return &testSigner{key: key, kid: kid}
}

func (s *testSigner) SignJWT(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.kid
	return token.SignedString(s.key)
}

func (s *testSigner) jwk() JWK {
	return JWK{
		Kty: "EC",
		Crv: "P-256",
		Kid: s.kid,
		X:   base64.RawURLEncoding.EncodeToString(s.key.PublicKey.X.Bytes()),
		Y:   base64.RawURLEncoding.EncodeToString(s.key.PublicKey.Y.Bytes()),
	}
}

// newJWKSServer serves the signer's key and counts fetches.
func newJWKSServer(t *testing.T, signer *testSigner, fetches *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/.well-known/jwks.json", r.URL.Path)
		fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []JWK{signer.jwk()}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTokenVerifier(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t, "kid-1")

	var fetches atomic.Int32
	srv := newJWKSServer(t, signer, &fetches)

	verifier := NewTokenVerifier(srv.URL, NewJWKSCache(srv.Client()))
	principalID := uuid.Must(uuid.NewV7())

	t.Run("valid token", func(t *testing.T) {
		token, expiresAt, err := IssueToken(signer, srv.URL, principalID, time.Hour)
		require.NoError(t, err)
		require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

		got, err := verifier.Verify(ctx, token)
		require.NoError(t, err)
		require.Equal(t, principalID, got)
	})

	t.Run("keys are cached", func(t *testing.T) {
		before := fetches.Load()
		token, _, err := IssueToken(signer, srv.URL, principalID, time.Hour)
		require.NoError(t, err)

		_, err = verifier.Verify(ctx, token)
		require.NoError(t, err)
		require.Equal(t, before, fetches.Load())
	})

	t.Run("expired token", func(t *testing.T) {
		token, _, err := IssueToken(signer, srv.URL, principalID, -time.Minute)
		require.NoError(t, err)

		_, err = verifier.Verify(ctx, token)
		require.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, _, err := IssueToken(signer, "https://elsewhere.example", principalID, time.Hour)
		require.NoError(t, err)

		_, err = verifier.Verify(ctx, token)
		require.Error(t, err)
	})

	t.Run("unknown signing key", func(t *testing.T) {
		other := newTestSigner(t, "kid-1")
		token, _, err := IssueToken(other, srv.URL, principalID, time.Hour)
		require.NoError(t, err)

		_, err = verifier.Verify(ctx, token)
		require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("unknown kid", func(t *testing.T) {
		other := newTestSigner(t, "kid-2")
		token, _, err := IssueToken(other, srv.URL, principalID, time.Hour)
		require.NoError(t, err)

		_, err = verifier.Verify(ctx, token)
		require.Error(t, err)
		require.Contains(t, err.Error(), "kid not found")
	})

	t.Run("hmac tokens are rejected", func(t *testing.T) {
		claims := jwt.RegisteredClaims{
			Subject:   principalID.String(),
			Issuer:    srv.URL,
			Audience:  jwt.ClaimStrings{srv.URL},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = verifier.Verify(ctx, token)
		require.Error(t, err)
	})
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header   string
		expected string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"Bearer a b", ""},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			require.Equal(t, tt.expected, extractBearerToken(r))
		})
	}
}

func TestJWKPublicKey(t *testing.T) {
	signer := newTestSigner(t, "kid-1")

	key, err := signer.jwk().PublicKey()
	require.NoError(t, err)
	require.True(t, key.Equal(&signer.key.PublicKey))

	wrongCurve := signer.jwk()
	wrongCurve.Crv = "P-384"
	_, err = wrongCurve.PublicKey()
	require.Error(t, err)

	offCurve := signer.jwk()
	offCurve.Y = offCurve.X
	_, err = offCurve.PublicKey()
	require.ErrorContains(t, err, "invalid EC point")
}
