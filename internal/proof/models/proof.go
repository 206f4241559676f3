package models

import (
	"time"

	"privid/internal/witness"
)

// Wire constants. A payload claiming anything else is rejected without
// touching the pairing check.
const (
	Protocol = "groth16"
	Curve    = "bn256"
)

// Payload is the proof material a verifier consumes. All group elements and
// scalars travel as lowercase hex.
type Payload struct {
	Protocol     string   `json:"protocol"`
	Curve        string   `json:"curve"`
	PiA          string   `json:"piA"`
	PiB          string   `json:"piB"`
	PiC          string   `json:"piC"`
	PublicInputs []string `json:"publicInputs"`
}

// Metadata rides alongside the payload. Nothing in it is secret; the
// nullifier and vk hash are exactly what the verifier needs to check
// replay and artifact pinning.
type Metadata struct {
	ProofType witness.ProofType `json:"proofType"`
	// Purpose is the holder-declared reason for the proof, fixed at
	// generation time and shown to the verifier alongside the proof type.
	Purpose string `json:"purpose,omitempty"`
	// CredentialID and Issuer tie the proof back to the credential that
	// backed the witness.
	CredentialID   string `json:"credentialId"`
	Issuer         string `json:"issuer"`
	CircuitID      string `json:"circuitId"`
	CircuitVersion string `json:"circuitVersion"`
	VKHash         string `json:"vkHash"`
	Nullifier      string `json:"nullifier"`
	// Commitment is the attribute-binding commitment for circuits that carry
	// one (age, accredited-investor); empty otherwise.
	Commitment     string    `json:"commitment,omitempty"`
	ChallengeNonce string    `json:"challengeNonce"`
	GeneratedAt    time.Time `json:"generatedAt"`
	// ExpiresAt is inherited from the credential that backed the witness. A
	// proof never outlives its credential.
	ExpiresAt time.Time `json:"expiresAt"`
}

// Proof is a complete generated proof.
type Proof struct {
	ID       string   `json:"id"`
	Payload  Payload  `json:"payload"`
	Metadata Metadata `json:"metadata"`
}

// Expired reports whether the proof's validity window has passed.
func (p *Proof) Expired(now time.Time) bool {
	return now.After(p.Metadata.ExpiresAt)
}
