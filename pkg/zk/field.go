// Package zk provides the field arithmetic primitives shared by the witness
// builder and the proof engine: hash-to-field, commitments, and nullifiers
// over the bn256 scalar field.
package zk

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"golang.org/x/crypto/sha3"
)

var suite = bn256.NewSuite()

// Suite returns the process-wide bn256 pairing suite. It is stateless and
// safe for concurrent use.
func Suite() *bn256.Suite {
	return suite
}

// HashToField maps arbitrary inputs into a bn256 scalar using SHAKE256 with
// a domain separation tag. Inputs are length-prefixed so concatenation
// ambiguity cannot produce colliding digests. 48 bytes of XOF output keep
// the modular reduction bias below 2^-128.
func HashToField(domain string, inputs ...[]byte) kyber.Scalar {
	h := sha3.NewShake256()
	writeLengthPrefixed(h, []byte(domain))
	for _, in := range inputs {
		writeLengthPrefixed(h, in)
	}
	out := make([]byte, 48)
	_, _ = h.Read(out)
	return suite.G1().Scalar().SetBytes(out)
}

func writeLengthPrefixed(h sha3.ShakeHash, b []byte) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(b)))
	_, _ = h.Write(n[:])
	_, _ = h.Write(b)
}

// ScalarFromUint64 lifts a non-negative integer (timestamps, thresholds,
// counts) into the scalar field.
func ScalarFromUint64(v uint64) kyber.Scalar {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return suite.G1().Scalar().SetBytes(b[:])
}

// ScalarHex encodes a scalar as lowercase hex for wire transport.
func ScalarHex(s kyber.Scalar) string {
	b, err := s.MarshalBinary()
	if err != nil {
		// bn256 scalars marshal infallibly; a failure here means memory
		// corruption, not recoverable state.
		panic(fmt.Sprintf("zk: scalar marshal: %v", err))
	}
	return hex.EncodeToString(b)
}

// ScalarFromHex decodes a hex-encoded scalar. Values are reduced into the
// field, so round-trips are exact only for canonical encodings.
func ScalarFromHex(s string) (kyber.Scalar, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("zk: decode scalar hex: %w", err)
	}
	if len(b) == 0 || len(b) > 32 {
		return nil, fmt.Errorf("zk: scalar must be 1..32 bytes, got %d", len(b))
	}
	return suite.G1().Scalar().SetBytes(b), nil
}

// Zeroize overwrites scalars in place. Witness builders call this so private
// material does not outlive the proof call that used it.
func Zeroize(scalars ...kyber.Scalar) {
	for _, s := range scalars {
		if s != nil {
			s.Zero()
		}
	}
}
