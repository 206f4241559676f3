package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privid/internal/attestation"
	dErrors "privid/pkg/domain-errors"
)

func TestAgeAt(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("adult born 2000-01-01", func(t *testing.T) {
		age, err := AgeAt("2000-01-01", now)
		require.NoError(t, err)
		assert.Equal(t, 24, age)
		assert.GreaterOrEqual(t, age, 18)
	})

	t.Run("birthday not yet reached this year", func(t *testing.T) {
		age, err := AgeAt("2000-12-31", now)
		require.NoError(t, err)
		assert.Equal(t, 23, age)
	})

	t.Run("birthday today counts", func(t *testing.T) {
		age, err := AgeAt("2000-06-15", now)
		require.NoError(t, err)
		assert.Equal(t, 24, age)
	})

	t.Run("malformed date", func(t *testing.T) {
		_, err := AgeAt("01/01/2000", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("future date of birth", func(t *testing.T) {
		_, err := AgeAt("2030-01-01", now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestAgeBucket(t *testing.T) {
	cases := map[int]string{
		0:   BucketUnder18,
		17:  BucketUnder18,
		18:  Bucket18to24,
		24:  Bucket18to24,
		25:  Bucket25to34,
		34:  Bucket25to34,
		44:  Bucket35to44,
		54:  Bucket45to54,
		64:  Bucket55to64,
		65:  Bucket65Plus,
		100: Bucket65Plus,
	}
	for age, want := range cases {
		assert.Equal(t, want, AgeBucket(age), "age %d", age)
	}
}

func TestDeriveJurisdiction(t *testing.T) {
	t.Run("french resident is EU not US", func(t *testing.T) {
		flags := DeriveJurisdiction("FR")
		assert.True(t, flags.IsEUResident)
		assert.False(t, flags.IsUSPerson)
		assert.False(t, flags.IsRestrictedJurisdiction)
	})

	t.Run("US person", func(t *testing.T) {
		flags := DeriveJurisdiction("US")
		assert.True(t, flags.IsUSPerson)
		assert.False(t, flags.IsEUResident)
	})

	t.Run("restricted jurisdiction", func(t *testing.T) {
		flags := DeriveJurisdiction("KP")
		assert.True(t, flags.IsRestrictedJurisdiction)
		assert.False(t, flags.IsEUResident)
	})

	t.Run("code casing and whitespace are normalized", func(t *testing.T) {
		assert.Equal(t, DeriveJurisdiction("FR"), DeriveJurisdiction("fr"))
		assert.Equal(t, DeriveJurisdiction("US"), DeriveJurisdiction(" us "))
		assert.True(t, DeriveJurisdiction("fr").IsEUResident)
	})

	t.Run("unknown country derives all false", func(t *testing.T) {
		assert.Equal(t, JurisdictionFlags{}, DeriveJurisdiction("XX"))
	})
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, "low", RiskLevel(0))
	assert.Equal(t, "low", RiskLevel(29))
	assert.Equal(t, "medium", RiskLevel(30))
	assert.Equal(t, "medium", RiskLevel(69))
	assert.Equal(t, "high", RiskLevel(70))
	assert.Equal(t, "high", RiskLevel(100))
}

func TestUniquenessHashDeterministic(t *testing.T) {
	a := UniquenessHash("P1234567", "sess-1")
	b := UniquenessHash("P1234567", "sess-1")
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, UniquenessHash("P7654321", "sess-1"))
	assert.NotEqual(t, a, UniquenessHash("P1234567", "sess-2"))

	// The document number must not be recoverable from the hash output.
	assert.NotContains(t, a, "P1234567")
	assert.Len(t, a, 64)
}

func TestSignalsDigest(t *testing.T) {
	sig := &attestation.SignalInfo{
		LivenessScore:     97,
		UniquenessScore:   94,
		Confidence:        95,
		DeviceFingerprint: "fp-7d1e",
	}

	assert.Equal(t, SignalsDigest(sig), SignalsDigest(sig))
	assert.Len(t, SignalsDigest(sig), 64)

	changed := *sig
	changed.UniquenessScore = 50
	assert.NotEqual(t, SignalsDigest(sig), SignalsDigest(&changed))

	// Absent signal blocks still digest to a stable value.
	assert.Equal(t, SignalsDigest(nil), SignalsDigest(nil))
	assert.NotEqual(t, SignalsDigest(nil), SignalsDigest(sig))

	// The fingerprint must not be recoverable from the digest.
	assert.NotContains(t, SignalsDigest(sig), "fp-7d1e")
}
