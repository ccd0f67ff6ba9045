package oidc

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
	"github.com/wolfeidau/hrdesk/internal/auth"
)

// ErrUnknownKey is returned by GetKey for a kid this manager did not issue.
var ErrUnknownKey = errors.New("unknown signing key")

// KeyManager holds the ECDSA keypair used to sign LIFF access tokens.
type KeyManager struct {
	privateKey *ecdsa.PrivateKey
	kid        string // base58 SHA-256 of the public key DER
}

// NewKeyManager creates a KeyManager with a fresh P-256 keypair. Tokens signed
// by it do not survive a restart; use NewKeyManagerFromPEM in production.
func NewKeyManager() (*KeyManager, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	return newKeyManager(privateKey)
}

// NewKeyManagerFromPEM loads a P-256 private key in SEC1 ("EC PRIVATE KEY") or
// PKCS#8 ("PRIVATE KEY") PEM form.
func NewKeyManagerFromPEM(data []byte) (*KeyManager, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found in signing key")
	}

	var privateKey *ecdsa.PrivateKey
	switch block.Type {
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse EC private key: %w", err)
		}
		privateKey = key
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS#8 private key: %w", err)
		}
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("signing key is %T, want ECDSA", key)
		}
		privateKey = ecKey
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}

	if privateKey.Curve != elliptic.P256() {
		return nil, errors.New("signing key must use the P-256 curve")
	}

	return newKeyManager(privateKey)
}

func newKeyManager(privateKey *ecdsa.PrivateKey) (*KeyManager, error) {
	pubKeyDER, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}

	hash := sha256.Sum256(pubKeyDER)

	return &KeyManager{
		privateKey: privateKey,
		kid:        base58.Encode(hash[:]),
	}, nil
}

func (km *KeyManager) Kid() string {
	return km.kid
}

// SignJWT signs claims with ES256, setting the kid header.
func (km *KeyManager) SignJWT(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = km.kid

	tokenString, err := token.SignedString(km.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return tokenString, nil
}

// GetKey resolves the manager's own public key without a JWKS round trip, so
// a single instance can verify the tokens it issued.
func (km *KeyManager) GetKey(_ context.Context, _ string, kid string) (*ecdsa.PublicKey, error) {
	if kid != km.kid {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
	}
	return &km.privateKey.PublicKey, nil
}

// JWK returns the public key in JWK form for the JWKS endpoint.
func (km *KeyManager) JWK() auth.JWK {
	pub := &km.privateKey.PublicKey

	// coordinates are fixed width for P-256
	x := make([]byte, 32)
	y := make([]byte, 32)
	pub.X.FillBytes(x)
	pub.Y.FillBytes(y)

	return auth.JWK{
		Kty: "EC",
		Crv: "P-256",
		Kid: km.kid,
		Alg: "ES256",
		Use: "sig",
		X:   base64.RawURLEncoding.EncodeToString(x),
		Y:   base64.RawURLEncoding.EncodeToString(y),
	}
}
