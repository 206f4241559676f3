package groth16

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/random"

	"privid/pkg/zk"
)

func setupKeys(t *testing.T, numPublic int) (*ProvingKey, *VerifyingKey) {
	t.Helper()
	pk, vk, err := Setup(numPublic, random.New())
	require.NoError(t, err)
	return pk, vk
}

func publicInputs(vals ...uint64) []kyber.Scalar {
	out := make([]kyber.Scalar, len(vals))
	for i, v := range vals {
		out[i] = zk.ScalarFromUint64(v)
	}
	return out
}

func TestProveVerifyRoundtrip(t *testing.T) {
	pk, vk := setupKeys(t, 3)
	public := publicInputs(18, 1718452800, 42)

	proof, err := Prove(pk, public, random.New())
	require.NoError(t, err)
	assert.True(t, Verify(vk, proof, public))
}

func TestVerifyIsDeterministic(t *testing.T) {
	pk, vk := setupKeys(t, 2)
	public := publicInputs(7, 9)

	proof, err := Prove(pk, public, random.New())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.True(t, Verify(vk, proof, public))
	}
}

func TestProofsAreBlinded(t *testing.T) {
	pk, vk := setupKeys(t, 2)
	public := publicInputs(7, 9)

	first, err := Prove(pk, public, random.New())
	require.NoError(t, err)
	second, err := Prove(pk, public, random.New())
	require.NoError(t, err)

	// Fresh blinding per proof: same statement, different proof points,
	// both valid.
	assert.False(t, first.A.Equal(second.A))
	assert.True(t, Verify(vk, first, public))
	assert.True(t, Verify(vk, second, public))
}

func TestVerifyRejectsTamperedPublicInputs(t *testing.T) {
	pk, vk := setupKeys(t, 3)
	public := publicInputs(18, 1718452800, 42)

	proof, err := Prove(pk, public, random.New())
	require.NoError(t, err)

	tampered := publicInputs(21, 1718452800, 42)
	assert.False(t, Verify(vk, proof, tampered))
}

func TestVerifyRejectsTamperedProof(t *testing.T) {
	pk, vk := setupKeys(t, 2)
	public := publicInputs(7, 9)

	proof, err := Prove(pk, public, random.New())
	require.NoError(t, err)

	g1 := zk.Suite().G1()
	mangled := &Proof{
		A: g1.Point().Add(proof.A.Clone(), g1.Point().Base()),
		B: proof.B,
		C: proof.C,
	}
	assert.False(t, Verify(vk, mangled, public))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	pk, _ := setupKeys(t, 2)
	_, otherVK := setupKeys(t, 2)
	public := publicInputs(7, 9)

	proof, err := Prove(pk, public, random.New())
	require.NoError(t, err)
	assert.False(t, Verify(otherVK, proof, public))
}

func TestVerifyRejectsInputCountMismatch(t *testing.T) {
	pk, vk := setupKeys(t, 3)
	public := publicInputs(18, 1718452800, 42)

	proof, err := Prove(pk, public, random.New())
	require.NoError(t, err)

	assert.False(t, Verify(vk, proof, publicInputs(18, 1718452800)))
	assert.False(t, Verify(vk, proof, publicInputs(18, 1718452800, 42, 1)))
	assert.False(t, Verify(vk, nil, public))
}

func TestProveRejectsInputCountMismatch(t *testing.T) {
	pk, _ := setupKeys(t, 3)
	_, err := Prove(pk, publicInputs(1, 2), random.New())
	require.Error(t, err)
}

func TestKeySerializationRoundtrip(t *testing.T) {
	pk, vk := setupKeys(t, 3)
	public := publicInputs(18, 1718452800, 42)

	vkRaw, err := MarshalVerifyingKey(vk)
	require.NoError(t, err)
	pkRaw, err := MarshalProvingKey(pk)
	require.NoError(t, err)

	vk2, err := UnmarshalVerifyingKey(vkRaw)
	require.NoError(t, err)
	pk2, err := UnmarshalProvingKey(pkRaw)
	require.NoError(t, err)
	assert.Equal(t, 3, vk2.NumPublicInputs())

	// Proofs from the restored proving key verify under the restored
	// verifying key, and cross-verify with the originals.
	proof, err := Prove(pk2, public, random.New())
	require.NoError(t, err)
	assert.True(t, Verify(vk2, proof, public))
	assert.True(t, Verify(vk, proof, public))

	t.Run("hash pins the wire form", func(t *testing.T) {
		assert.Equal(t, VerifyingKeyHash(vkRaw), VerifyingKeyHash(vkRaw))
		other, err := MarshalVerifyingKey(vk2)
		require.NoError(t, err)
		assert.Equal(t, VerifyingKeyHash(vkRaw), VerifyingKeyHash(other))
	})
}

func TestProofPointsRoundtrip(t *testing.T) {
	pk, vk := setupKeys(t, 2)
	public := publicInputs(7, 9)

	proof, err := Prove(pk, public, random.New())
	require.NoError(t, err)

	a, b, c, err := ProofPoints(proof)
	require.NoError(t, err)
	restored, err := ProofFromPoints(a, b, c)
	require.NoError(t, err)
	assert.True(t, Verify(vk, restored, public))

	t.Run("malformed hex fails", func(t *testing.T) {
		_, err := ProofFromPoints("zz", b, c)
		require.Error(t, err)
	})
}
