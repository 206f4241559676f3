// Package service derives purpose-bound verifiable credentials from a
// trusted attestation record. Which credentials come out of a record depends
// only on which predicates the record can back; each credential is signed by
// the issuer key and persisted individually.
package service

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"privid/internal/attestation"
	"privid/internal/credential/metrics"
	"privid/internal/credential/models"
	"privid/internal/credential/store"
	"privid/internal/identity/keys"
	idmodels "privid/internal/identity/models"
	"privid/internal/platform/events"
	"privid/pkg/canonical"
	dErrors "privid/pkg/domain-errors"
)

// Validity windows. Compliance status goes stale quickly, so the compliance
// credential expires well before its siblings.
const (
	DefaultValidity    = 365 * 24 * time.Hour
	ComplianceValidity = 90 * 24 * time.Hour
)

// Clock abstracts time for testability.
type Clock func() time.Time

// SubjectResolver resolves the DID registered for a wallet address.
type SubjectResolver interface {
	ResolveWallet(ctx context.Context, wallet string) (*idmodels.Resolution, error)
}

// Issuer derives and signs credential sets.
type Issuer struct {
	store    store.Store
	resolver SubjectResolver
	issuerID string
	signKey  *keys.KeyPair
	events   events.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	clock    Clock
}

// Option configures the Issuer.
type Option func(*Issuer)

// WithClock injects a clock for tests.
func WithClock(clock Clock) Option {
	return func(i *Issuer) {
		if clock != nil {
			i.clock = clock
		}
	}
}

// WithEvents sets the lifecycle event publisher.
func WithEvents(pub events.Publisher) Option {
	return func(i *Issuer) { i.events = pub }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Issuer) { i.metrics = m }
}

// New constructs the issuer. issuerID is the issuer's own DID; signKey its
// assertion key.
func New(st store.Store, resolver SubjectResolver, issuerID string, signKey *keys.KeyPair, logger *slog.Logger, opts ...Option) *Issuer {
	i := &Issuer{
		store:    st,
		resolver: resolver,
		issuerID: issuerID,
		signKey:  signKey,
		logger:   logger,
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// IssueOutcome is the per-credential result within a batch.
type IssueOutcome struct {
	Type       models.Type
	Credential *models.Credential
	Err        error
}

// BatchResult aggregates per-credential outcomes. One credential's storage
// failure is reported individually; stored siblings are not rolled back.
type BatchResult struct {
	SubjectDID idmodels.DID
	Outcomes   []IssueOutcome
}

// Issued returns the successfully stored credentials.
func (b *BatchResult) Issued() []*models.Credential {
	var out []*models.Credential
	for _, o := range b.Outcomes {
		if o.Err == nil {
			out = append(out, o.Credential)
		}
	}
	return out
}

// Failed returns the outcomes that did not persist.
func (b *BatchResult) Failed() []IssueOutcome {
	var out []IssueOutcome
	for _, o := range b.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// GenerateCredentialSet derives zero-or-more purpose-bound credentials from
// one attestation record, gated by predicate availability, and persists each
// one individually.
func (i *Issuer) GenerateCredentialSet(ctx context.Context, rec *attestation.RecordV1, walletAddress string) (*BatchResult, error) {
	if rec == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "attestation record required")
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if rec.WalletAddress != walletAddress {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "attestation record is bound to a different wallet")
	}

	res, err := i.resolver.ResolveWallet(ctx, walletAddress)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "subject wallet has no resolvable did")
	}
	if res.Metadata.Deactivated {
		return nil, dErrors.New(dErrors.CodeDeactivated, "subject did is deactivated")
	}
	subject := res.Document.ID

	now := i.clock().UTC()
	candidates, err := i.deriveAll(rec, subject, now)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		SubjectDID: subject,
		Outcomes:   make([]IssueOutcome, len(candidates)),
	}

	// Persist per-credential. Failures are captured in the outcome slice,
	// never propagated through the group, so siblings always complete.
	g, gctx := errgroup.WithContext(ctx)
	for idx, cred := range candidates {
		g.Go(func() error {
			if err := i.store.Put(gctx, cred); err != nil {
				result.Outcomes[idx] = IssueOutcome{Type: cred.PurposeType(), Err: err}
				if i.metrics != nil {
					i.metrics.IncIssueFailures(string(cred.PurposeType()))
				}
				i.logger.ErrorContext(gctx, "credential persist failed",
					"credential_type", cred.PurposeType(),
					"subject", subject,
					"error", err,
				)
				return nil
			}
			result.Outcomes[idx] = IssueOutcome{Type: cred.PurposeType(), Credential: cred}
			if i.metrics != nil {
				i.metrics.IncIssued(string(cred.PurposeType()))
			}
			i.emit(gctx, subject, cred)
			return nil
		})
	}
	_ = g.Wait()

	i.logger.InfoContext(ctx, "credential set generated",
		"subject", subject,
		"issued", len(result.Issued()),
		"failed", len(result.Failed()),
	)
	return result, nil
}

// deriveAll builds the unsigned-then-signed candidate set for a record.
// Derivation is deterministic given (record, subject, now).
func (i *Issuer) deriveAll(rec *attestation.RecordV1, subject idmodels.DID, now time.Time) ([]*models.Credential, error) {
	var out []*models.Credential

	add := func(t models.Type, validity time.Duration, claims map[string]any) error {
		cred, err := i.newCredential(t, subject, now, validity, claims)
		if err != nil {
			return err
		}
		out = append(out, cred)
		return nil
	}

	// Personhood: always derivable from a verified session.
	if err := add(models.TypePersonhood, DefaultValidity, map[string]any{
		"verificationTier": rec.Tier,
		"verifiedAt":       rec.VerifiedAt.UTC().Format(time.RFC3339),
	}); err != nil {
		return nil, err
	}

	// Age: needs a birth date.
	if rec.Personal.DateOfBirth != "" {
		age, err := AgeAt(rec.Personal.DateOfBirth, now)
		if err != nil {
			return nil, err
		}
		if err := add(models.TypeAge, DefaultValidity, map[string]any{
			"ageBucket": AgeBucket(age),
			"over18":    age >= 18,
			"over21":    age >= 21,
			"over25":    age >= 25,
			"over65":    age >= 65,
		}); err != nil {
			return nil, err
		}
	}

	// Jurisdiction: needs residency or nationality.
	country := rec.Personal.CountryOfResidence
	if country == "" {
		country = rec.Personal.Nationality
	}
	var flags JurisdictionFlags
	if country != "" {
		flags = DeriveJurisdiction(country)
		if err := add(models.TypeJurisdiction, DefaultValidity, map[string]any{
			"isUSPerson":               flags.IsUSPerson,
			"isEUResident":             flags.IsEUResident,
			"isRestrictedJurisdiction": flags.IsRestrictedJurisdiction,
		}); err != nil {
			return nil, err
		}
	}

	// Accredited investor: US/EU jurisdiction plus enhanced verification.
	if (flags.IsUSPerson || flags.IsEUResident) && rec.Tier == attestation.TierEnhanced {
		claims := map[string]any{
			"jurisdiction": country,
		}
		if rec.Financial != nil {
			claims["accredited"] = rec.Financial.Accredited
			claims["netWorth"] = rec.Financial.NetWorth
		}
		if err := add(models.TypeAccreditedInvestor, DefaultValidity, claims); err != nil {
			return nil, err
		}
	}

	// Compliance: needs AML/sanctions signals; short validity window.
	if rec.Risk != nil && rec.Risk.AMLScreened {
		if err := add(models.TypeCompliance, ComplianceValidity, map[string]any{
			"sanctionsClear": !rec.Risk.SanctionsHit,
			"pep":            rec.Risk.PEP,
			"riskLevel":      RiskLevel(rec.Risk.Score),
		}); err != nil {
			return nil, err
		}
	}

	// Name binding: needs name fields and explicit consent.
	if rec.Personal.NameConsent && rec.Personal.GivenName != "" && rec.Personal.FamilyName != "" {
		if err := add(models.TypeNameBinding, DefaultValidity, map[string]any{
			"givenName":  rec.Personal.GivenName,
			"familyName": rec.Personal.FamilyName,
		}); err != nil {
			return nil, err
		}
	}

	// Anti-sybil: always; keyed by the uniqueness hash, carrying the
	// provider's aggregate confidence and a digest of its signal block.
	confidence := 0
	if rec.Signals != nil {
		confidence = rec.Signals.Confidence
	}
	if err := add(models.TypeAntiSybil, DefaultValidity, map[string]any{
		"uniquenessHash":  UniquenessHash(rec.Document.Number, rec.SessionID),
		"confidenceScore": int64(confidence),
		"signalsDigest":   SignalsDigest(rec.Signals),
	}); err != nil {
		return nil, err
	}

	return out, nil
}

func (i *Issuer) newCredential(t models.Type, subject idmodels.DID, now time.Time, validity time.Duration, claims map[string]any) (*models.Credential, error) {
	subjectClaims := make(map[string]any, len(claims)+1)
	subjectClaims["id"] = string(subject)
	for k, v := range claims {
		subjectClaims[k] = v
	}

	cred := &models.Credential{
		Context: []string{
			"https://www.w3.org/2018/credentials/v1",
			"https://w3id.org/privid/credentials/v1",
		},
		ID:             "urn:uuid:" + uuid.NewString(),
		Type:           []string{models.BaseType, string(t)},
		Issuer:         i.issuerID,
		IssuanceDate:   now,
		ExpirationDate: now.Add(validity),
		Subject:        subjectClaims,
	}
	if err := i.sign(cred); err != nil {
		return nil, err
	}
	return cred, nil
}

func (i *Issuer) sign(cred *models.Credential) error {
	proofType, err := keys.ProofType(i.signKey.Type)
	if err != nil {
		return err
	}
	proof := &models.Proof{
		Type:               proofType,
		Created:            cred.IssuanceDate,
		VerificationMethod: i.issuerID + "#keys-1",
		ProofPurpose:       "assertionMethod",
	}
	payload, err := signingPayload(cred, proof)
	if err != nil {
		return err
	}
	sig, err := i.signKey.Sign(payload)
	if err != nil {
		return err
	}
	proof.SignatureHex = hex.EncodeToString(sig)
	cred.Proof = proof
	return nil
}

// VerifyCredentialProof checks the issuer proof against the supplied issuer
// public key. Fails closed on structural problems.
func VerifyCredentialProof(cred *models.Credential, issuerKeyType idmodels.KeyType, issuerPublic []byte) bool {
	if cred == nil || cred.Proof == nil {
		return false
	}
	proofType, err := keys.ProofType(issuerKeyType)
	if err != nil || proofType != cred.Proof.Type {
		return false
	}
	sig, err := hex.DecodeString(cred.Proof.SignatureHex)
	if err != nil {
		return false
	}
	payload, err := signingPayload(cred, cred.Proof)
	if err != nil {
		return false
	}
	return keys.Verify(issuerKeyType, issuerPublic, payload, sig)
}

func signingPayload(cred *models.Credential, proof *models.Proof) ([]byte, error) {
	unsigned := *cred
	unsigned.Proof = nil
	envelope := struct {
		Credential *models.Credential `json:"credential"`
		Proof      models.Proof       `json:"proof"`
	}{
		Credential: &unsigned,
		Proof: models.Proof{
			Type:               proof.Type,
			Created:            proof.Created,
			VerificationMethod: proof.VerificationMethod,
			ProofPurpose:       proof.ProofPurpose,
		},
	}
	return canonical.Marshal(envelope)
}

func (i *Issuer) emit(ctx context.Context, subject idmodels.DID, cred *models.Credential) {
	if i.events == nil {
		return
	}
	event := events.NewEvent(events.TypeCredentialIssued, string(subject), map[string]string{
		"credential_id":   cred.ID,
		"credential_type": string(cred.PurposeType()),
	})
	if err := i.events.Emit(ctx, event); err != nil {
		i.logger.WarnContext(ctx, "lifecycle event emit failed",
			"event_type", events.TypeCredentialIssued,
			"error", err,
		)
	}
}

// Get returns a stored credential by id.
func (i *Issuer) Get(ctx context.Context, id string) (*models.Credential, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "credential id required")
	}
	return i.store.Get(ctx, id)
}

// ListBySubject returns all stored credentials for a subject DID.
func (i *Issuer) ListBySubject(ctx context.Context, subject idmodels.DID) ([]*models.Credential, error) {
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "subject did required")
	}
	return i.store.ListBySubject(ctx, string(subject))
}
