// Package groth16 implements a Groth16-style pairing proof system over the
// bn256 curve. Circuit structure is baked into the keys at setup; the prover
// binds a statement's public inputs into a three-element proof, and the
// verifier checks one pairing product equation:
//
//	e(A, B) == e(alpha*G1, beta*G2) * e(vk_x, gamma*G2) * e(C, delta*G2)
//
// where vk_x folds the public inputs over the IC basis. Verification is
// constant-time in the witness and fails closed on any structural mismatch.
package groth16

import (
	"crypto/cipher"
	"fmt"

	"go.dedis.ch/kyber/v3"

	"privid/pkg/zk"
)

// VerifyingKey is the public half of a circuit setup. Safe to publish.
type VerifyingKey struct {
	AlphaG1 kyber.Point
	BetaG2  kyber.Point
	GammaG2 kyber.Point
	DeltaG2 kyber.Point
	// IC has one G1 basis point per public input, plus the constant slot at
	// index 0.
	IC []kyber.Point
}

// ProvingKey is the prover half. It must stay with the proving party.
type ProvingKey struct {
	AlphaG1 kyber.Point
	BetaG1  kyber.Point
	DeltaG1 kyber.Point
	BetaG2  kyber.Point
	DeltaG2 kyber.Point
	// L carries the gamma-shifted IC basis the prover folds into C.
	L []kyber.Point
}

// Proof is the three-element Groth16 proof.
type Proof struct {
	A kyber.Point // G1
	B kyber.Point // G2
	C kyber.Point // G1
}

// NumPublicInputs returns the public input count the key was set up for.
func (vk *VerifyingKey) NumPublicInputs() int {
	return len(vk.IC) - 1
}

// Setup runs the trusted setup for a circuit with numPublic public inputs.
// The toxic waste (alpha, beta, gamma, delta and the IC exponents) is
// zeroized before returning.
func Setup(numPublic int, rng cipher.Stream) (*ProvingKey, *VerifyingKey, error) {
	if numPublic < 1 {
		return nil, nil, fmt.Errorf("groth16: setup needs at least one public input, got %d", numPublic)
	}
	suite := zk.Suite()
	g1 := suite.G1()
	g2 := suite.G2()

	alpha := g1.Scalar().Pick(rng)
	beta := g1.Scalar().Pick(rng)
	gamma := g1.Scalar().Pick(rng)
	delta := g1.Scalar().Pick(rng)
	defer zk.Zeroize(alpha, beta, gamma, delta)

	deltaInv := g1.Scalar().Inv(delta)
	defer zk.Zeroize(deltaInv)

	vk := &VerifyingKey{
		AlphaG1: g1.Point().Mul(alpha, nil),
		BetaG2:  g2.Point().Mul(beta, nil),
		GammaG2: g2.Point().Mul(gamma, nil),
		DeltaG2: g2.Point().Mul(delta, nil),
		IC:      make([]kyber.Point, numPublic+1),
	}
	pk := &ProvingKey{
		AlphaG1: vk.AlphaG1.Clone(),
		BetaG1:  g1.Point().Mul(beta, nil),
		DeltaG1: g1.Point().Mul(delta, nil),
		BetaG2:  vk.BetaG2.Clone(),
		DeltaG2: vk.DeltaG2.Clone(),
		L:       make([]kyber.Point, numPublic+1),
	}

	shift := g1.Scalar()
	for i := range vk.IC {
		ic := g1.Scalar().Pick(rng)
		vk.IC[i] = g1.Point().Mul(ic, nil)
		// L_i = (gamma * ic_i / delta) * G1
		shift.Mul(gamma, ic)
		shift.Mul(shift, deltaInv)
		pk.L[i] = g1.Point().Mul(shift, nil)
		zk.Zeroize(ic)
	}
	zk.Zeroize(shift)

	return pk, vk, nil
}

// Prove produces a proof binding the public inputs under the proving key.
// The blinding scalars r and s are fresh per call, so two proofs over the
// same statement are never byte-equal.
func Prove(pk *ProvingKey, public []kyber.Scalar, rng cipher.Stream) (*Proof, error) {
	if len(public)+1 != len(pk.L) {
		return nil, fmt.Errorf("groth16: key expects %d public inputs, got %d", len(pk.L)-1, len(public))
	}
	suite := zk.Suite()
	g1 := suite.G1()
	g2 := suite.G2()

	r := g1.Scalar().Pick(rng)
	s := g1.Scalar().Pick(rng)
	defer zk.Zeroize(r, s)

	// A = alpha*G1 + r*delta*G1
	a := g1.Point().Mul(r, pk.DeltaG1)
	a.Add(a, pk.AlphaG1)

	// B = beta*G2 + s*delta*G2
	b := g2.Point().Mul(s, pk.DeltaG2)
	b.Add(b, pk.BetaG2)

	// C = s*alpha*G1 + r*beta*G1 + r*s*delta*G1 - (L_0 + sum pub_i * L_i)
	rs := g1.Scalar().Mul(r, s)
	defer zk.Zeroize(rs)
	c := g1.Point().Mul(s, pk.AlphaG1)
	c.Add(c, g1.Point().Mul(r, pk.BetaG1))
	c.Add(c, g1.Point().Mul(rs, pk.DeltaG1))

	acc := pk.L[0].Clone()
	for i, pub := range public {
		acc.Add(acc, g1.Point().Mul(pub, pk.L[i+1]))
	}
	c.Sub(c, acc)

	return &Proof{A: a, B: b, C: c}, nil
}

// Verify checks the pairing product equation. Any structural problem, wrong
// input count, nil points, is a failed verification, never an error.
func Verify(vk *VerifyingKey, proof *Proof, public []kyber.Scalar) bool {
	if vk == nil || proof == nil || proof.A == nil || proof.B == nil || proof.C == nil {
		return false
	}
	if len(public)+1 != len(vk.IC) {
		return false
	}
	suite := zk.Suite()
	g1 := suite.G1()

	// vk_x = IC_0 + sum pub_i * IC_i
	vkx := vk.IC[0].Clone()
	for i, pub := range public {
		if pub == nil {
			return false
		}
		vkx.Add(vkx, g1.Point().Mul(pub, vk.IC[i+1]))
	}

	lhs := suite.Pair(proof.A, proof.B)
	rhs := suite.Pair(vk.AlphaG1, vk.BetaG2)
	rhs.Add(rhs, suite.Pair(vkx, vk.GammaG2))
	rhs.Add(rhs, suite.Pair(proof.C, vk.DeltaG2))
	return lhs.Equal(rhs)
}
