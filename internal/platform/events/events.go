// Package events emits lifecycle events for the credential core: DID
// creation and rotation, credential issuance, proof generation and
// verification. Consumers are external (audit pipelines, analytics); the
// core only publishes.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies a lifecycle event.
type Type string

const (
	TypeDIDCreated       Type = "did_created"
	TypeDIDKeyRotated    Type = "did_key_rotated"
	TypeDIDDeactivated   Type = "did_deactivated"
	TypeCredentialIssued Type = "credential_issued"
	TypeProofGenerated   Type = "proof_generated"
	TypeProofVerified    Type = "proof_verified"
	TypeShareCreated     Type = "share_created"
)

// Event is a single lifecycle record. Detail carries event-specific fields;
// it must never contain raw attribute values, only identifiers and hashes.
type Event struct {
	ID      string            `json:"id"`
	Type    Type              `json:"type"`
	Subject string            `json:"subject"` // DID or wallet address
	At      time.Time         `json:"at"`
	Detail  map[string]string `json:"detail,omitempty"`
}

// NewEvent builds an event with a fresh id and timestamp.
func NewEvent(t Type, subject string, detail map[string]string) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    t,
		Subject: subject,
		At:      time.Now().UTC(),
		Detail:  detail,
	}
}

// Publisher emits lifecycle events. Emit is best-effort for observability
// events; callers that need fail-closed semantics must check the error.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
	Close() error
}
