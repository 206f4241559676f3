// Package challenge issues and consumes verifier challenge nonces. A nonce
// is single-use: consuming it twice is a replay, and proofs generated
// against an unissued or expired nonce never reach the pairing check.
package challenge

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	dErrors "privid/pkg/domain-errors"
)

// NonceSize is the challenge nonce length in bytes.
const NonceSize = 32

// DefaultTTL bounds how long an issued challenge stays consumable.
const DefaultTTL = 10 * time.Minute

// Challenge is one issued verifier nonce.
type Challenge struct {
	Nonce     string    `json:"nonce"`
	Audience  string    `json:"audience"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store issues and consumes challenges.
type Store interface {
	// Issue mints a fresh nonce bound to an audience.
	Issue(ctx context.Context, audience string, ttl time.Duration) (*Challenge, error)
	// Consume atomically spends a nonce. An unknown or expired nonce is
	// CodeExpired; a second consume of the same nonce is CodeReplayed.
	Consume(ctx context.Context, nonce string) (*Challenge, error)
}

// NewNonce generates a random hex nonce.
func NewNonce() (string, error) {
	b := make([]byte, NonceSize)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("challenge: read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ValidateNonce checks the wire shape of a nonce.
func ValidateNonce(nonce string) error {
	b, err := hex.DecodeString(nonce)
	if err != nil || len(b) != NonceSize {
		return dErrors.New(dErrors.CodeInvalidInput, "challenge nonce must be 32 hex-encoded bytes")
	}
	return nil
}
