// Package witness turns issued credentials plus a verifier challenge into
// circuit assignments: the private and public scalar vectors a prover
// consumes. Building a witness never discloses raw attributes; everything
// crossing into the public vector is a threshold, hash, or nullifier.
package witness

import (
	"fmt"

	"go.dedis.ch/kyber/v3"

	"privid/internal/credential/models"
	dErrors "privid/pkg/domain-errors"
	"privid/pkg/zk"
)

// ProofType enumerates the supported predicate circuits.
type ProofType string

const (
	ProofAge                ProofType = "age"
	ProofJurisdiction       ProofType = "jurisdiction"
	ProofAntiSybil          ProofType = "anti-sybil"
	ProofAccreditedInvestor ProofType = "accredited-investor"
)

// MaxAllowedRegions bounds the jurisdiction allow-list. The circuit has a
// fixed input layout, so shorter lists are zero-padded to this size.
const MaxAllowedRegions = 16

// Circuit identifiers, also the keys under which artifacts are stored.
const (
	CircuitAge                = "privid-age-v1"
	CircuitJurisdiction       = "privid-jurisdiction-v1"
	CircuitAntiSybil          = "privid-anti-sybil-v1"
	CircuitAccreditedInvestor = "privid-accredited-investor-v1"
)

// CircuitID maps a proof type to its circuit identifier.
func CircuitID(pt ProofType) (string, error) {
	switch pt {
	case ProofAge:
		return CircuitAge, nil
	case ProofJurisdiction:
		return CircuitJurisdiction, nil
	case ProofAntiSybil:
		return CircuitAntiSybil, nil
	case ProofAccreditedInvestor:
		return CircuitAccreditedInvestor, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported proof type %q", pt))
	}
}

// PublicInputCount returns the fixed public vector length of a circuit.
func PublicInputCount(pt ProofType) (int, error) {
	switch pt {
	case ProofAge:
		return 3, nil
	case ProofJurisdiction:
		// 16 padded region hashes, the region count, and the nullifier.
		return MaxAllowedRegions + 2, nil
	case ProofAntiSybil:
		return 4, nil
	case ProofAccreditedInvestor:
		return 3, nil
	default:
		return 0, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported proof type %q", pt))
	}
}

// CredentialType maps a proof type to the credential purpose that backs it.
func CredentialType(pt ProofType) (models.Type, error) {
	switch pt {
	case ProofAge:
		return models.TypeAge, nil
	case ProofJurisdiction:
		return models.TypeJurisdiction, nil
	case ProofAntiSybil:
		return models.TypeAntiSybil, nil
	case ProofAccreditedInvestor:
		return models.TypeAccreditedInvestor, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported proof type %q", pt))
	}
}

// Assignment is a complete circuit assignment. Private scalars must be
// zeroized by the caller once the proof is generated.
type Assignment struct {
	ProofType ProofType
	CircuitID string
	Private   []kyber.Scalar
	Public    []kyber.Scalar
	// Nullifier is the replay tag for this (holder, purpose, challenge)
	// combination. For circuits whose public layout carries a nullifier
	// slot it also appears in Public.
	Nullifier kyber.Scalar
	// Commitment binds the attested attribute to the purpose secret under a
	// fresh salt. Nil for circuits whose public layout has no commitment
	// slot (jurisdiction, anti-sybil).
	Commitment kyber.Scalar
}

// Zeroize wipes the private vector. Public inputs are, by construction, safe
// to retain.
func (a *Assignment) Zeroize() {
	zk.Zeroize(a.Private...)
	a.Private = nil
}
