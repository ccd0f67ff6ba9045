package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// KeySource provides access to public keys for JWT verification.
type KeySource interface {
	// GetKey fetches the public key identified by kid from the JWKS endpoint.
	GetKey(ctx context.Context, jwksURL, kid string) (*ecdsa.PublicKey, error)
}

// TokenVerifier verifies bearer access tokens issued by this service to LIFF
// clients. Tokens are ES256 signed and carry the principal ID in "sub".
type TokenVerifier struct {
	issuer string
	keys   KeySource
}

// NewTokenVerifier creates a verifier for tokens issued by issuer. The signing
// keys are fetched from issuer + "/.well-known/jwks.json".
func NewTokenVerifier(issuer string, keys KeySource) *TokenVerifier {
	return &TokenVerifier{
		issuer: issuer,
		keys:   keys,
	}
}

// SetIssuer updates the issuer URL.
// This is useful in tests where the URL is only known after creating an httptest.Server.
func (v *TokenVerifier) SetIssuer(issuer string) {
	v.issuer = issuer
}

// VerifyRequest verifies the bearer token of a request.
func (v *TokenVerifier) VerifyRequest(r *http.Request) (uuid.UUID, error) {
	tokenString := extractBearerToken(r)
	if tokenString == "" {
		return uuid.Nil, errors.New("missing bearer token")
	}
	return v.Verify(r.Context(), tokenString)
}

// Verify checks the signature, issuer, audience and expiry of a token and
// returns the principal ID it was issued to.
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("missing kid")
		}

		return v.keys.GetKey(ctx, v.issuer+"/.well-known/jwks.json", kid)
	},
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid token: %w", err)
	}

	principalID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid sub claim: %w", err)
	}

	return principalID, nil
}

// extractBearerToken extracts the JWT from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return parts[1]
}

// ParsePublicKeyPEM parses a PEM-encoded ECDSA public key.
func ParsePublicKeyPEM(pemStr string) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("not an ECDSA public key")
	}

	return ecdsaPub, nil
}
