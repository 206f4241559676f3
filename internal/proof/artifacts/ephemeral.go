package artifacts

import (
	"context"
	"fmt"
	"sync"

	"go.dedis.ch/kyber/v3/util/random"

	"privid/internal/proof/groth16"
	"privid/internal/witness"
	dErrors "privid/pkg/domain-errors"
)

// Ephemeral generates throwaway circuit keys on first use. Development and
// test deployments only: keys vanish with the process, so proofs from one
// run never verify in another.
type Ephemeral struct {
	mu      sync.Mutex
	keys    map[string]*Artifacts
	version string
}

// NewEphemeral constructs an in-process artifact source covering the four
// built-in circuits.
func NewEphemeral() *Ephemeral {
	return &Ephemeral{
		keys:    make(map[string]*Artifacts),
		version: "ephemeral",
	}
}

var circuitInputCounts = map[string]witness.ProofType{
	witness.CircuitAge:                witness.ProofAge,
	witness.CircuitJurisdiction:       witness.ProofJurisdiction,
	witness.CircuitAntiSybil:          witness.ProofAntiSybil,
	witness.CircuitAccreditedInvestor: witness.ProofAccreditedInvestor,
}

// Load returns the circuit's keys, running setup on first request.
func (e *Ephemeral) Load(_ context.Context, circuitID string) (*Artifacts, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if a, ok := e.keys[circuitID]; ok {
		return a, nil
	}

	pt, ok := circuitInputCounts[circuitID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnattempted,
			fmt.Sprintf("unknown circuit %q", circuitID))
	}
	numPublic, err := witness.PublicInputCount(pt)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnattempted, "circuit layout unavailable")
	}

	pk, vk, err := groth16.Setup(numPublic, random.New())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnattempted,
			fmt.Sprintf("setup for %s failed", circuitID))
	}
	vkRaw, err := groth16.MarshalVerifyingKey(vk)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnattempted,
			fmt.Sprintf("marshal verifying key for %s", circuitID))
	}

	a := &Artifacts{
		CircuitID:       circuitID,
		Version:         e.version,
		NumPublicInputs: numPublic,
		ProvingKey:      pk,
		VerifyingKey:    vk,
		VKHash:          groth16.VerifyingKeyHash(vkRaw),
	}
	e.keys[circuitID] = a
	return a, nil
}
