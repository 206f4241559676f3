// Package attestation defines the versioned verification-result record this
// core receives from the attestation collaborator. The record is treated as
// already-trusted input; no re-verification happens here. Each schema
// version is a concrete struct so derivation logic downstream is total over
// a known shape instead of probing loosely-typed bundles.
package attestation

import (
	"encoding/json"
	"fmt"
	"time"

	dErrors "privid/pkg/domain-errors"
)

// SchemaV1 tags the first attestation record layout.
const SchemaV1 = "privid/attestation/v1"

// Verification tiers.
const (
	TierBasic    = "basic"
	TierEnhanced = "enhanced"
)

// RecordV1 is a single verified attestation session.
type RecordV1 struct {
	Schema        string    `json:"schema"`
	SessionID     string    `json:"sessionId"`
	WalletAddress string    `json:"walletAddress"`
	Tier          string    `json:"tier"`
	VerifiedAt    time.Time `json:"verifiedAt"`

	Personal PersonalInfo `json:"personal"`
	Document DocumentInfo `json:"document"`
	Risk     *RiskInfo    `json:"risk,omitempty"`

	// Signals carries the provider's uniqueness checks when the session ran
	// them; older providers omit the block entirely.
	Signals *SignalInfo `json:"signals,omitempty"`

	// Financial is present only for enhanced-tier sessions that collected
	// accreditation evidence.
	Financial *FinancialInfo `json:"financial,omitempty"`
}

// PersonalInfo carries identity attributes from the attestation provider.
type PersonalInfo struct {
	GivenName          string `json:"givenName,omitempty"`
	FamilyName         string `json:"familyName,omitempty"`
	NameConsent        bool   `json:"nameConsent,omitempty"`
	DateOfBirth        string `json:"dateOfBirth,omitempty"` // YYYY-MM-DD
	CountryOfResidence string `json:"countryOfResidence,omitempty"`
	Nationality        string `json:"nationality,omitempty"`
}

// DocumentInfo describes the identity document inspected during attestation.
type DocumentInfo struct {
	Number         string `json:"number,omitempty"`
	Type           string `json:"type,omitempty"`
	IssuingCountry string `json:"issuingCountry,omitempty"`
}

// RiskInfo carries AML/sanctions screening signals.
type RiskInfo struct {
	AMLScreened  bool `json:"amlScreened"`
	SanctionsHit bool `json:"sanctionsHit"`
	PEP          bool `json:"pep"`
	Score        int  `json:"score"` // 0..100, higher is riskier
}

// SignalInfo carries the provider's sybil-resistance checks. Scores are
// 0..100; the hashes are provider-computed digests of material that never
// leaves the provider.
type SignalInfo struct {
	LivenessScore     int    `json:"livenessScore"`
	UniquenessScore   int    `json:"uniquenessScore"`
	DocumentScore     int    `json:"documentScore,omitempty"`
	SocialScore       int    `json:"socialScore,omitempty"`
	Confidence        int    `json:"confidence"` // aggregate 0..100
	DeviceFingerprint string `json:"deviceFingerprint,omitempty"`
	BehaviorHash      string `json:"behaviorHash,omitempty"`
	GeolocationHash   string `json:"geolocationHash,omitempty"`
}

// FinancialInfo carries accreditation evidence for enhanced sessions.
type FinancialInfo struct {
	NetWorth   int64 `json:"netWorth"` // whole currency units
	Accredited bool  `json:"accredited"`
}

type envelope struct {
	Schema string `json:"schema"`
}

// Parse decodes a raw attestation record, dispatching on schema version.
// Unknown versions are a caller error, not a silent best-effort parse.
func Parse(raw []byte) (*RecordV1, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed attestation record")
	}

	switch env.Schema {
	case SchemaV1:
		var rec RecordV1
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed attestation v1 record")
		}
		if err := rec.Validate(); err != nil {
			return nil, err
		}
		return &rec, nil
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("unknown attestation schema %q", env.Schema))
	}
}

// Validate checks the fields every record must carry regardless of which
// credentials it can back.
func (r *RecordV1) Validate() error {
	if r.SessionID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "attestation record missing session id")
	}
	if r.WalletAddress == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "attestation record missing wallet address")
	}
	if r.Document.Number == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "attestation record missing document identifier")
	}
	if r.Tier != TierBasic && r.Tier != TierEnhanced {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown verification tier %q", r.Tier))
	}
	return nil
}
