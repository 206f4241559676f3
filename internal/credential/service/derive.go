package service

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"privid/internal/attestation"
	dErrors "privid/pkg/domain-errors"
)

// All derivation functions in this file are pure: identical input always
// produces identical output. The issuer depends on that for re-issuance.

// Age buckets, coarsest disclosure the age credential supports.
const (
	BucketUnder18 = "under18"
	Bucket18to24  = "18-24"
	Bucket25to34  = "25-34"
	Bucket35to44  = "35-44"
	Bucket45to54  = "45-54"
	Bucket55to64  = "55-64"
	Bucket65Plus  = "65+"
)

// euCountries is the static EU membership set used for isEUResident.
var euCountries = map[string]struct{}{
	"AT": {}, "BE": {}, "BG": {}, "HR": {}, "CY": {}, "CZ": {}, "DK": {},
	"EE": {}, "FI": {}, "FR": {}, "DE": {}, "GR": {}, "HU": {}, "IE": {},
	"IT": {}, "LV": {}, "LT": {}, "LU": {}, "MT": {}, "NL": {}, "PL": {},
	"PT": {}, "RO": {}, "SK": {}, "SI": {}, "ES": {}, "SE": {},
}

// restrictedJurisdictions is the static sanctioned-set membership used for
// isRestrictedJurisdiction.
var restrictedJurisdictions = map[string]struct{}{
	"CU": {}, "IR": {}, "KP": {}, "SY": {}, "RU": {}, "BY": {},
}

// AgeAt computes completed years between a YYYY-MM-DD birth date and now.
func AgeAt(dateOfBirth string, now time.Time) (int, error) {
	dob, err := time.Parse("2006-01-02", dateOfBirth)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, fmt.Sprintf("malformed date of birth %q", dateOfBirth))
	}
	years := now.Year() - dob.Year()
	anniversary := dob.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	if years < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "date of birth is in the future")
	}
	return years, nil
}

// AgeBucket maps an age in years to its disclosure bucket.
func AgeBucket(age int) string {
	switch {
	case age < 18:
		return BucketUnder18
	case age <= 24:
		return Bucket18to24
	case age <= 34:
		return Bucket25to34
	case age <= 44:
		return Bucket35to44
	case age <= 54:
		return Bucket45to54
	case age <= 64:
		return Bucket55to64
	default:
		return Bucket65Plus
	}
}

// JurisdictionFlags holds the derived booleans for a residence country.
type JurisdictionFlags struct {
	IsUSPerson               bool
	IsEUResident             bool
	IsRestrictedJurisdiction bool
}

// DeriveJurisdiction maps an ISO 3166-1 alpha-2 country to its flags. The
// code is normalized first; attestation providers disagree on casing.
func DeriveJurisdiction(country string) JurisdictionFlags {
	norm := strings.ToUpper(strings.TrimSpace(country))
	_, eu := euCountries[norm]
	_, restricted := restrictedJurisdictions[norm]
	return JurisdictionFlags{
		IsUSPerson:               norm == "US",
		IsEUResident:             eu,
		IsRestrictedJurisdiction: restricted,
	}
}

// RiskLevel maps a 0..100 screening score onto the coarse level disclosed in
// the compliance credential.
func RiskLevel(score int) string {
	switch {
	case score < 30:
		return "low"
	case score < 70:
		return "medium"
	default:
		return "high"
	}
}

// UniquenessHash keys the anti-sybil credential. It is a one-way function of
// the document identifier and the verification session, letting a verifier
// detect the same verified person minting "unique person" credentials under
// different wallets without learning the document number.
func UniquenessHash(documentNumber, sessionID string) string {
	h := sha256.New()
	h.Write([]byte("privid/uniqueness/v1"))
	h.Write([]byte{0})
	h.Write([]byte(documentNumber))
	h.Write([]byte{0})
	h.Write([]byte(sessionID))
	return hex.EncodeToString(h.Sum(nil))
}

// SignalsDigest condenses the provider's uniqueness signals into one hash for
// the anti-sybil credential. The raw signal material (device fingerprint,
// behavior and geolocation hashes, per-check scores) stays with the
// attestation collaborator; the credential carries only this digest and the
// aggregate confidence. A nil signal block digests to a fixed value so the
// claim shape is stable across tiers.
func SignalsDigest(sig *attestation.SignalInfo) string {
	h := sha256.New()
	h.Write([]byte("privid/signals/v1"))
	if sig != nil {
		score := func(v int) {
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], uint64(v))
			h.Write([]byte{0})
			h.Write(buf[:])
		}
		score(sig.LivenessScore)
		score(sig.UniquenessScore)
		score(sig.DocumentScore)
		score(sig.SocialScore)
		for _, s := range []string{sig.DeviceFingerprint, sig.BehaviorHash, sig.GeolocationHash} {
			h.Write([]byte{0})
			h.Write([]byte(s))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
