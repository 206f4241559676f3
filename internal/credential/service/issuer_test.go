package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privid/internal/attestation"
	"privid/internal/credential/models"
	"privid/internal/credential/store"
	"privid/internal/identity/keys"
	idmodels "privid/internal/identity/models"
	"privid/internal/platform/events"
	dErrors "privid/pkg/domain-errors"
)

const (
	testWallet  = "0xabc0000000000000000000000000000000000001"
	testSubject = idmodels.DID("did:pid:testnet:0123456789abcdef0123456789abcdef")
	testIssuer  = "did:pid:testnet:ffffffffffffffffffffffffffffffff"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type staticResolver struct {
	deactivated bool
}

func (r *staticResolver) ResolveWallet(_ context.Context, wallet string) (*idmodels.Resolution, error) {
	if wallet != testWallet {
		return nil, dErrors.New(dErrors.CodeNotFound, "no did registered for wallet")
	}
	return &idmodels.Resolution{
		Document: &idmodels.Document{ID: testSubject},
		Metadata: idmodels.ResolutionMetadata{Deactivated: r.deactivated, Version: 1},
	}, nil
}

func fullRecord() *attestation.RecordV1 {
	return &attestation.RecordV1{
		Schema:        attestation.SchemaV1,
		SessionID:     "sess-1",
		WalletAddress: testWallet,
		Tier:          attestation.TierEnhanced,
		VerifiedAt:    testNow.Add(-time.Hour),
		Personal: attestation.PersonalInfo{
			GivenName:          "Ada",
			FamilyName:         "Lovelace",
			NameConsent:        true,
			DateOfBirth:        "2000-01-01",
			CountryOfResidence: "US",
		},
		Document: attestation.DocumentInfo{
			Number:         "P1234567",
			Type:           "passport",
			IssuingCountry: "US",
		},
		Risk: &attestation.RiskInfo{AMLScreened: true, Score: 12},
		Signals: &attestation.SignalInfo{
			LivenessScore:     97,
			UniquenessScore:   94,
			Confidence:        95,
			DeviceFingerprint: "fp-7d1e",
		},
		Financial: &attestation.FinancialInfo{NetWorth: 2_500_000, Accredited: true},
	}
}

func newTestIssuer(t *testing.T, st store.Store, opts ...Option) *Issuer {
	t.Helper()
	key, err := keys.Generate(idmodels.KeyTypeEd25519)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(st, &staticResolver{}, testIssuer, key, logger, opts...)
}

func byType(batch *BatchResult) map[models.Type]*models.Credential {
	out := make(map[models.Type]*models.Credential)
	for _, cred := range batch.Issued() {
		out[cred.PurposeType()] = cred
	}
	return out
}

func TestGenerateCredentialSetFullRecord(t *testing.T) {
	iss := newTestIssuer(t, store.NewMemory())

	batch, err := iss.GenerateCredentialSet(context.Background(), fullRecord(), testWallet)
	require.NoError(t, err)
	require.Empty(t, batch.Failed())
	assert.Equal(t, testSubject, batch.SubjectDID)

	creds := byType(batch)
	require.Len(t, creds, 7)

	age := creds[models.TypeAge]
	require.NotNil(t, age)
	assert.Equal(t, Bucket18to24, age.Subject["ageBucket"])
	assert.Equal(t, true, age.Subject["over18"])
	assert.Equal(t, true, age.Subject["over21"])
	assert.Equal(t, false, age.Subject["over25"])
	assert.Equal(t, false, age.Subject["over65"])
	// No raw date of birth ends up in the credential.
	assert.NotContains(t, age.Subject, "dateOfBirth")

	jur := creds[models.TypeJurisdiction]
	require.NotNil(t, jur)
	assert.Equal(t, true, jur.Subject["isUSPerson"])
	assert.Equal(t, false, jur.Subject["isEUResident"])

	comp := creds[models.TypeCompliance]
	require.NotNil(t, comp)
	assert.Equal(t, "low", comp.Subject["riskLevel"])
	assert.Equal(t, true, comp.Subject["sanctionsClear"])
	assert.Equal(t, testNow.Add(ComplianceValidity), comp.ExpirationDate)

	person := creds[models.TypePersonhood]
	require.NotNil(t, person)
	assert.Equal(t, testNow.Add(DefaultValidity), person.ExpirationDate)

	sybil := creds[models.TypeAntiSybil]
	require.NotNil(t, sybil)
	assert.Equal(t, UniquenessHash("P1234567", "sess-1"), sybil.Subject["uniquenessHash"])
	assert.Equal(t, int64(95), sybil.Subject["confidenceScore"])
	assert.Equal(t, SignalsDigest(fullRecord().Signals), sybil.Subject["signalsDigest"])
	assert.NotContains(t, sybil.Subject, "documentNumber")
	// Raw signal material never reaches the credential.
	assert.NotContains(t, sybil.Subject, "deviceFingerprint")

	for _, cred := range batch.Issued() {
		assert.Equal(t, string(testSubject), cred.SubjectDID())
		assert.Equal(t, testIssuer, cred.Issuer)
		require.NotNil(t, cred.Proof)
	}
}

func TestGenerateCredentialSetMinimalRecord(t *testing.T) {
	iss := newTestIssuer(t, store.NewMemory())

	rec := &attestation.RecordV1{
		Schema:        attestation.SchemaV1,
		SessionID:     "sess-min",
		WalletAddress: testWallet,
		Tier:          attestation.TierBasic,
		VerifiedAt:    testNow.Add(-time.Hour),
		Document:      attestation.DocumentInfo{Number: "D999"},
	}

	batch, err := iss.GenerateCredentialSet(context.Background(), rec, testWallet)
	require.NoError(t, err)
	require.Empty(t, batch.Failed())

	creds := byType(batch)
	require.Len(t, creds, 2)
	assert.Contains(t, creds, models.TypePersonhood)
	assert.Contains(t, creds, models.TypeAntiSybil)
}

func TestGenerateCredentialSetGating(t *testing.T) {
	t.Run("eu resident not enhanced gets no accreditation", func(t *testing.T) {
		iss := newTestIssuer(t, store.NewMemory())
		rec := fullRecord()
		rec.Personal.CountryOfResidence = "FR"
		rec.Tier = attestation.TierBasic
		rec.Financial = nil

		batch, err := iss.GenerateCredentialSet(context.Background(), rec, testWallet)
		require.NoError(t, err)
		creds := byType(batch)

		jur := creds[models.TypeJurisdiction]
		require.NotNil(t, jur)
		assert.Equal(t, true, jur.Subject["isEUResident"])
		assert.Equal(t, false, jur.Subject["isUSPerson"])
		assert.NotContains(t, creds, models.TypeAccreditedInvestor)
	})

	t.Run("name binding requires consent", func(t *testing.T) {
		iss := newTestIssuer(t, store.NewMemory())
		rec := fullRecord()
		rec.Personal.NameConsent = false

		batch, err := iss.GenerateCredentialSet(context.Background(), rec, testWallet)
		require.NoError(t, err)
		assert.NotContains(t, byType(batch), models.TypeNameBinding)
	})

	t.Run("no risk signals means no compliance credential", func(t *testing.T) {
		iss := newTestIssuer(t, store.NewMemory())
		rec := fullRecord()
		rec.Risk = nil

		batch, err := iss.GenerateCredentialSet(context.Background(), rec, testWallet)
		require.NoError(t, err)
		assert.NotContains(t, byType(batch), models.TypeCompliance)
	})

	t.Run("nationality backs jurisdiction when residence absent", func(t *testing.T) {
		iss := newTestIssuer(t, store.NewMemory())
		rec := fullRecord()
		rec.Personal.CountryOfResidence = ""
		rec.Personal.Nationality = "DE"

		batch, err := iss.GenerateCredentialSet(context.Background(), rec, testWallet)
		require.NoError(t, err)
		jur := byType(batch)[models.TypeJurisdiction]
		require.NotNil(t, jur)
		assert.Equal(t, true, jur.Subject["isEUResident"])
	})
}

func TestGenerateCredentialSetRejectsWalletMismatch(t *testing.T) {
	iss := newTestIssuer(t, store.NewMemory())
	rec := fullRecord()

	_, err := iss.GenerateCredentialSet(context.Background(), rec, "0xabc0000000000000000000000000000000000002")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestGenerateCredentialSetRejectsDeactivatedSubject(t *testing.T) {
	key, err := keys.Generate(idmodels.KeyTypeEd25519)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	iss := New(store.NewMemory(), &staticResolver{deactivated: true}, testIssuer, key, logger,
		WithClock(func() time.Time { return testNow }))

	_, err = iss.GenerateCredentialSet(context.Background(), fullRecord(), testWallet)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDeactivated))
}

// failingStore rejects writes for one purpose type and delegates the rest.
type failingStore struct {
	store.Store
	failType models.Type
}

func (f *failingStore) Put(ctx context.Context, cred *models.Credential) error {
	if cred.PurposeType() == f.failType {
		return dErrors.New(dErrors.CodeInternal, "storage backend unavailable")
	}
	return f.Store.Put(ctx, cred)
}

func TestGenerateCredentialSetFailureIsolation(t *testing.T) {
	mem := store.NewMemory()
	iss := newTestIssuer(t, &failingStore{Store: mem, failType: models.TypeAge})

	batch, err := iss.GenerateCredentialSet(context.Background(), fullRecord(), testWallet)
	require.NoError(t, err)

	failed := batch.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, models.TypeAge, failed[0].Type)
	assert.True(t, dErrors.HasCode(failed[0].Err, dErrors.CodeInternal))

	// Siblings persisted despite the failure.
	issued := batch.Issued()
	assert.Len(t, issued, 6)
	stored, err := mem.ListBySubject(context.Background(), string(testSubject))
	require.NoError(t, err)
	assert.Len(t, stored, 6)
}

func TestIssuedCredentialProofVerifies(t *testing.T) {
	key, err := keys.Generate(idmodels.KeyTypeEd25519)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	iss := New(store.NewMemory(), &staticResolver{}, testIssuer, key, logger,
		WithClock(func() time.Time { return testNow }))

	batch, err := iss.GenerateCredentialSet(context.Background(), fullRecord(), testWallet)
	require.NoError(t, err)
	require.NotEmpty(t, batch.Issued())

	for _, cred := range batch.Issued() {
		assert.True(t, VerifyCredentialProof(cred, idmodels.KeyTypeEd25519, key.Public),
			"credential %s", cred.PurposeType())
	}

	tampered := batch.Issued()[0]
	tampered.Subject["over18"] = true
	tampered.Subject["injected"] = "claim"
	assert.False(t, VerifyCredentialProof(tampered, idmodels.KeyTypeEd25519, key.Public))
}

func TestGenerateCredentialSetEmitsEvents(t *testing.T) {
	pub := events.NewMemory()
	iss := newTestIssuer(t, store.NewMemory(), WithEvents(pub))

	batch, err := iss.GenerateCredentialSet(context.Background(), fullRecord(), testWallet)
	require.NoError(t, err)

	emitted := pub.List(events.TypeCredentialIssued)
	assert.Len(t, emitted, len(batch.Issued()))
	for _, ev := range emitted {
		assert.Equal(t, string(testSubject), ev.Subject)
	}
}

func TestGenerateCredentialSetDeterministicDerivation(t *testing.T) {
	rec := fullRecord()

	first, err := newTestIssuer(t, store.NewMemory()).GenerateCredentialSet(context.Background(), rec, testWallet)
	require.NoError(t, err)
	second, err := newTestIssuer(t, store.NewMemory()).GenerateCredentialSet(context.Background(), rec, testWallet)
	require.NoError(t, err)

	firstByType := byType(first)
	secondByType := byType(second)
	require.Equal(t, len(firstByType), len(secondByType))
	for credType, a := range firstByType {
		b := secondByType[credType]
		require.NotNil(t, b, "missing %s on re-issue", credType)
		// Identity fields differ per issuance; derived claims must not.
		delete(a.Subject, "id")
		delete(b.Subject, "id")
		assert.Equal(t, a.Subject, b.Subject, "claims for %s", credType)
	}
}
