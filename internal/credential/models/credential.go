package models

import "time"

// Type tags purpose-bound credentials. Each credential is scoped to one
// predicate rather than a general identity dump.
type Type string

const (
	TypePersonhood         Type = "PersonhoodCredential"
	TypeAge                Type = "AgeCredential"
	TypeJurisdiction       Type = "JurisdictionCredential"
	TypeAccreditedInvestor Type = "AccreditedInvestorCredential"
	TypeCompliance         Type = "ComplianceCredential"
	TypeNameBinding        Type = "NameBindingCredential"
	TypeAntiSybil          Type = "AntiSybilCredential"
)

// BaseType is present in every credential's type array.
const BaseType = "VerifiableCredential"

// Proof is the issuer proof over the canonicalized credential.
type Proof struct {
	Type               string    `json:"type"`
	Created            time.Time `json:"created"`
	VerificationMethod string    `json:"verificationMethod"`
	ProofPurpose       string    `json:"proofPurpose"`
	SignatureHex       string    `json:"signatureHex"`
}

// Credential is a verifiable credential. Immutable once issued: superseding
// requires a new credential, never an in-place mutation.
type Credential struct {
	Context        []string       `json:"@context"`
	ID             string         `json:"id"`
	Type           []string       `json:"type"`
	Issuer         string         `json:"issuer"`
	IssuanceDate   time.Time      `json:"issuanceDate"`
	ExpirationDate time.Time      `json:"expirationDate"`
	Subject        map[string]any `json:"credentialSubject"`
	Proof          *Proof         `json:"proof,omitempty"`
}

// SubjectDID returns the credential subject id.
func (c *Credential) SubjectDID() string {
	if id, ok := c.Subject["id"].(string); ok {
		return id
	}
	return ""
}

// PurposeType returns the purpose-bound type tag, skipping BaseType.
func (c *Credential) PurposeType() Type {
	for _, t := range c.Type {
		if t != BaseType {
			return Type(t)
		}
	}
	return ""
}

// Expired reports whether the credential has expired at now.
func (c *Credential) Expired(now time.Time) bool {
	return now.After(c.ExpirationDate)
}
