package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Signer signs JWT claims, adding its key ID to the header.
type Signer interface {
	SignJWT(claims jwt.Claims) (string, error)
}

// IssueToken creates a signed access token for principalID.
// The issuer doubles as the audience since the same service verifies it.
func IssueToken(signer Signer, issuer string, principalID uuid.UUID, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := &jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   principalID.String(),
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{issuer},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token, err := signer.SignJWT(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}
