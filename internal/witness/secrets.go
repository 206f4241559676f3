package witness

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"go.dedis.ch/kyber/v3"
	"golang.org/x/crypto/hkdf"

	"privid/pkg/zk"
)

// MasterSecretSize is the required length of a holder master secret.
const MasterSecretSize = 32

const secretSalt = "privid/holder-secret/v1"

// purposeSecret derives the per-purpose holder secret from the master
// secret. Different purposes yield unlinkable secrets, so a verifier who
// sees an age nullifier and a jurisdiction nullifier cannot tie them to one
// holder.
func purposeSecret(master []byte, pt ProofType) (kyber.Scalar, error) {
	if len(master) != MasterSecretSize {
		return nil, fmt.Errorf("master secret must be %d bytes, got %d", MasterSecretSize, len(master))
	}
	r := hkdf.New(sha256.New, master, []byte(secretSalt), []byte(pt))
	out := make([]byte, 48)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("derive purpose secret: %w", err)
	}
	s := zk.Suite().G1().Scalar().SetBytes(out)
	wipe(out)
	return s, nil
}

// commitment binds attested attribute material to the purpose secret under a
// fresh salt. The verifier sees the commitment, never the attribute; the salt
// keeps two proofs over the same attribute uncorrelatable.
func commitment(secret kyber.Scalar, salt []byte, attrs ...[]byte) (kyber.Scalar, error) {
	sb, err := secret.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal purpose secret: %w", err)
	}
	inputs := make([][]byte, 0, len(attrs)+2)
	inputs = append(inputs, attrs...)
	inputs = append(inputs, salt, sb)
	c := zk.HashToField("privid/commitment/v1", inputs...)
	wipe(sb)
	return c, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// newSalt draws fresh commitment randomness.
func newSalt() ([]byte, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("draw commitment salt: %w", err)
	}
	return salt, nil
}

// nullifier binds a purpose secret to the predicate constraint and the
// verifier challenge. The same (secret, constraint) pair under the same
// challenge reproduces the nullifier, which is what makes replay of a
// recorded proof detectable; a different constraint (over18 vs over21) is a
// different statement and gets its own nullifier.
func nullifier(secret kyber.Scalar, pt ProofType, constraint, challengeNonce []byte) (kyber.Scalar, error) {
	sb, err := secret.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal purpose secret: %w", err)
	}
	n := zk.HashToField("privid/nullifier/v1", []byte(pt), sb, constraint, challengeNonce)
	wipe(sb)
	return n, nil
}
