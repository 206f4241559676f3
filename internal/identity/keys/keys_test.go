package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privid/internal/identity/models"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	for _, kt := range []models.KeyType{models.KeyTypeEd25519, models.KeyTypeSecp256k1} {
		t.Run(string(kt), func(t *testing.T) {
			kp, err := Generate(kt)
			require.NoError(t, err)

			msg := []byte("canonical document bytes")
			sig, err := kp.Sign(msg)
			require.NoError(t, err)

			assert.True(t, Verify(kt, kp.Public, msg, sig))
		})
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	for _, kt := range []models.KeyType{models.KeyTypeEd25519, models.KeyTypeSecp256k1} {
		t.Run(string(kt), func(t *testing.T) {
			kp, err := Generate(kt)
			require.NoError(t, err)

			msg := []byte("canonical document bytes")
			sig, err := kp.Sign(msg)
			require.NoError(t, err)

			// Flipping any byte of the signed content must fail verification.
			for i := range msg {
				tampered := append([]byte(nil), msg...)
				tampered[i] ^= 0x01
				assert.False(t, Verify(kt, kp.Public, tampered, sig), "byte %d", i)
			}
		})
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	a, err := Generate(models.KeyTypeEd25519)
	require.NoError(t, err)
	b, err := Generate(models.KeyTypeEd25519)
	require.NoError(t, err)

	msg := []byte("payload")
	sig, err := a.Sign(msg)
	require.NoError(t, err)

	assert.False(t, Verify(models.KeyTypeEd25519, b.Public, msg, sig))
}

func TestVerifyFailsClosedOnGarbage(t *testing.T) {
	assert.False(t, Verify(models.KeyTypeSecp256k1, []byte{0x01}, []byte("m"), []byte("sig")))
	assert.False(t, Verify(models.KeyTypeEd25519, []byte("short"), []byte("m"), []byte("sig")))
	assert.False(t, Verify("UnknownType", []byte("pub"), []byte("m"), []byte("sig")))
}

func TestGenerateUnknownType(t *testing.T) {
	_, err := Generate("P-256")
	assert.Error(t, err)
}

func TestZeroize(t *testing.T) {
	kp, err := Generate(models.KeyTypeEd25519)
	require.NoError(t, err)

	kp.Zeroize()
	assert.Nil(t, kp.Private)

	_, err = kp.Sign([]byte("msg"))
	assert.Error(t, err)
}

func TestProofMethodPairing(t *testing.T) {
	assert.True(t, ProofMatchesMethod(models.ProofTypeEd25519, models.MethodTypeEd25519))
	assert.True(t, ProofMatchesMethod(models.ProofTypeSecp256k1, models.MethodTypeSecp256k1))
	// Cross-algorithm pairings must never verify.
	assert.False(t, ProofMatchesMethod(models.ProofTypeEd25519, models.MethodTypeSecp256k1))
	assert.False(t, ProofMatchesMethod(models.ProofTypeSecp256k1, models.MethodTypeEd25519))
}
