package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "privid/pkg/domain-errors"
)

const tokenIssuer = "privid-share"

// signToken mints the bearer token for one share package. The token grants
// lookup, nothing more; verification still runs the full pairing check.
func (m *Manager) signToken(packageID, audience string, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   packageID,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("share: sign token: %w", err)
	}
	return token, nil
}

// parseToken validates a bearer token and returns the package id it names.
// Expired tokens are CodeExpired; every other defect is CodeUnauthorized.
func (m *Manager) parseToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return m.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(func() time.Time { return m.clock() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", dErrors.New(dErrors.CodeExpired, "share token expired")
		}
		return "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "share token invalid")
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", dErrors.New(dErrors.CodeUnauthorized, "share token invalid")
	}
	return claims.Subject, nil
}
