// Package recovery implements guardian recovery of the holder master
// secret via Shamir secret sharing. The secret is split into n shares of
// which any threshold reconstructs it; fewer shares reveal nothing. Shares
// are meant to live with independent guardians, never together.
package recovery

import (
	"encoding/hex"
	"fmt"

	"go.dedis.ch/kyber/v3/share"
	"go.dedis.ch/kyber/v3/util/random"

	dErrors "privid/pkg/domain-errors"
	"privid/pkg/zk"
)

// SecretSize is the master secret length in bytes. It is the canonical
// encoding of a bn256 scalar, which keeps splitting and recovery exact.
const SecretSize = 32

// Share is one guardian's piece of a split secret.
type Share struct {
	Index int    `json:"index"`
	Value string `json:"value"`
}

// NewMasterSecret generates a fresh holder master secret.
func NewMasterSecret() ([]byte, error) {
	s := zk.Suite().G1().Scalar().Pick(random.New())
	b, err := s.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("recovery: marshal master secret: %w", err)
	}
	zk.Zeroize(s)
	return b, nil
}

// Split divides a master secret into n shares with the given recovery
// threshold.
func Split(master []byte, threshold, n int) ([]Share, error) {
	if len(master) != SecretSize {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("master secret must be %d bytes, got %d", SecretSize, len(master)))
	}
	if threshold < 2 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "recovery threshold must be at least 2")
	}
	if n < threshold {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("share count %d below threshold %d", n, threshold))
	}

	g := zk.Suite().G1()
	secret := g.Scalar().SetBytes(master)
	defer zk.Zeroize(secret)

	poly := share.NewPriPoly(g, threshold, secret, random.New())
	priShares := poly.Shares(n)

	out := make([]Share, n)
	for i, ps := range priShares {
		vb, err := ps.V.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("recovery: marshal share %d: %w", ps.I, err)
		}
		out[i] = Share{Index: ps.I, Value: hex.EncodeToString(vb)}
		zk.Zeroize(ps.V)
	}
	return out, nil
}

// Recover reconstructs the master secret from at least threshold shares.
// Mixing shares from different splits yields garbage, not an error; callers
// should verify the recovered secret against a known commitment.
func Recover(shares []Share, threshold int) ([]byte, error) {
	if len(shares) < threshold {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("need at least %d shares, got %d", threshold, len(shares)))
	}

	g := zk.Suite().G1()
	priShares := make([]*share.PriShare, len(shares))
	for i, s := range shares {
		vb, err := hex.DecodeString(s.Value)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput,
				fmt.Sprintf("share %d value is not hex", s.Index))
		}
		v := g.Scalar()
		if err := v.UnmarshalBinary(vb); err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput,
				fmt.Sprintf("share %d value is not a field element", s.Index))
		}
		priShares[i] = &share.PriShare{I: s.Index, V: v}
	}

	secret, err := share.RecoverSecret(g, priShares, threshold, len(priShares))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "secret recovery failed")
	}
	defer zk.Zeroize(secret)

	b, err := secret.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("recovery: marshal recovered secret: %w", err)
	}
	for _, ps := range priShares {
		zk.Zeroize(ps.V)
	}
	return b, nil
}
