// Package service implements the DID registry: creation, resolution,
// document update, key rotation, and deactivation.
//
// State machine per DID:
//
//	nonexistent -> (create) -> active -> (update|rotate)* -> (deactivate) -> deactivated
//
// Deactivation is terminal. All mutations run read-modify-write through a
// compare-and-swap on the stored version, so concurrent writers to the same
// DID cannot leave a partially-updated document.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"privid/internal/identity/keys"
	"privid/internal/identity/metrics"
	"privid/internal/identity/models"
	"privid/internal/identity/store"
	"privid/internal/platform/events"
	"privid/pkg/canonical"
	dErrors "privid/pkg/domain-errors"
)

// Clock abstracts time for testability.
type Clock func() time.Time

var (
	walletAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	didRe           = regexp.MustCompile(`^did:pid:([a-z0-9-]+):([0-9a-f]{32})$`)
	hexRe           = regexp.MustCompile(`^[0-9a-fA-F]+$`)
)

// Service is the identity registry.
type Service struct {
	store   store.Store
	network string
	events  events.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	clock   Clock
}

// Option configures the Service.
type Option func(*Service)

// WithClock injects a clock for tests.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithEvents sets the lifecycle event publisher.
func WithEvents(pub events.Publisher) Option {
	return func(s *Service) { s.events = pub }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs the registry service.
func New(st store.Store, network string, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:   st,
		network: network,
		logger:  logger,
		clock:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Derive computes the DID for (wallet address, public key, network). The
// mapping is one-way and deterministic: the same inputs always yield the
// same DID and the DID reveals none of them.
func Derive(address, publicKeyHex, network string) (models.DID, error) {
	if !walletAddressRe.MatchString(address) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "malformed wallet address")
	}
	if publicKeyHex == "" || len(publicKeyHex)%2 != 0 || !hexRe.MatchString(publicKeyHex) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "malformed public key")
	}
	if network == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "network must not be empty")
	}

	h := sha256.New()
	h.Write([]byte(address))
	h.Write([]byte{0})
	h.Write([]byte(publicKeyHex))
	h.Write([]byte{0})
	h.Write([]byte(network))
	sum := h.Sum(nil)

	return models.DID(fmt.Sprintf("did:pid:%s:%s", network, hex.EncodeToString(sum[:16]))), nil
}

// ParseDID validates DID syntax without touching storage.
func ParseDID(did models.DID) error {
	if !didRe.MatchString(string(did)) {
		return dErrors.New(dErrors.CodeInvalidFormat, "malformed did")
	}
	return nil
}

// CreateResult is the outcome of CreateDID. KeyPair is nil when the DID
// already existed (idempotent reuse).
type CreateResult struct {
	Resolution models.Resolution
	KeyPair    *keys.KeyPair
	Existing   bool
}

// CreateDID registers a DID for a wallet. It derives the identifier
// deterministically, generates a primary key pair of keyType, builds the
// document with the primary method plus a wallet-bound method, wires all
// capability arrays to the primary method, and self-signs. Creation is
// idempotent: an already-registered DID is returned as-is.
func (s *Service) CreateDID(ctx context.Context, address, walletPublicKeyHex string, keyType models.KeyType) (*CreateResult, error) {
	did, err := Derive(address, walletPublicKeyHex, s.network)
	if err != nil {
		return nil, err
	}

	if existing, err := s.store.Get(ctx, did); err == nil {
		return &CreateResult{
			Resolution: resolutionOf(existing),
			Existing:   true,
		}, nil
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeUnattempted, "registry store unavailable")
	}

	kp, err := keys.Generate(keyType)
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	doc, err := buildDocument(did, address, kp, now)
	if err != nil {
		return nil, err
	}
	if err := signDocument(doc, kp, primaryMethodID(did, 1)); err != nil {
		return nil, err
	}

	rec := &store.Record{Document: *doc, Wallet: address}
	if err := s.store.Create(ctx, rec); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			// Lost a creation race; resolve and reuse.
			if existing, getErr := s.store.Get(ctx, did); getErr == nil {
				return &CreateResult{Resolution: resolutionOf(existing), Existing: true}, nil
			}
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnattempted, "persist did document")
	}

	if s.metrics != nil {
		s.metrics.IncDIDsCreated()
	}
	s.emit(ctx, events.TypeDIDCreated, string(did), map[string]string{"key_type": string(keyType)})
	s.logger.InfoContext(ctx, "did created", "did", did, "key_type", keyType)

	stored, err := s.store.Get(ctx, did)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnattempted, "read back did document")
	}
	return &CreateResult{Resolution: resolutionOf(stored), KeyPair: kp}, nil
}

// ResolveDID returns the document for a DID. A well-formed but unregistered
// DID is a normal not-found outcome, not an internal error.
func (s *Service) ResolveDID(ctx context.Context, did models.DID) (*models.Resolution, error) {
	if err := ParseDID(did); err != nil {
		return nil, err
	}
	rec, err := s.store.Get(ctx, did)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnattempted, "registry store unavailable")
	}
	res := resolutionOf(rec)
	return &res, nil
}

// ResolveWallet returns the DID registered for a wallet address.
func (s *Service) ResolveWallet(ctx context.Context, wallet string) (*models.Resolution, error) {
	if !walletAddressRe.MatchString(wallet) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "malformed wallet address")
	}
	rec, err := s.store.GetByWallet(ctx, wallet)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnattempted, "registry store unavailable")
	}
	res := resolutionOf(rec)
	return &res, nil
}

// DocumentPatch is the mergeable surface of a document. Everything else is
// managed by the registry itself.
type DocumentPatch struct {
	Controller  *string          `json:"controller,omitempty"`
	AddService  []models.Service `json:"addService,omitempty"`
	DropService []string         `json:"dropService,omitempty"`
}

// UpdateDIDDocument merges a patch into the current document, bumps Updated,
// and re-signs with signingKey. The signing key must already be
// authoritative on the current document, otherwise the update is rejected
// unchanged.
func (s *Service) UpdateDIDDocument(ctx context.Context, did models.DID, patch DocumentPatch, signingKey *keys.KeyPair) (*models.Resolution, error) {
	return s.mutate(ctx, did, signingKey, func(doc *models.Document, methodID string) error {
		if patch.Controller != nil {
			doc.Controller = *patch.Controller
		}
		drop := make(map[string]struct{}, len(patch.DropService))
		for _, id := range patch.DropService {
			drop[id] = struct{}{}
		}
		kept := doc.Service[:0]
		for _, svc := range doc.Service {
			if _, gone := drop[svc.ID]; !gone {
				kept = append(kept, svc)
			}
		}
		doc.Service = append(kept, patch.AddService...)
		return nil
	})
}

// RotateKeys generates a new key pair of newKeyType, appends it as a new
// verification method, repoints authentication/assertion/key-agreement and
// both capability arrays to it, and signs the transition with the retiring
// key as its last authoritative act. Rotation is atomic: on any failure the
// stored document is untouched.
func (s *Service) RotateKeys(ctx context.Context, did models.DID, oldKey *keys.KeyPair, newKeyType models.KeyType) (*models.Resolution, *keys.KeyPair, error) {
	newKey, err := keys.Generate(newKeyType)
	if err != nil {
		return nil, nil, err
	}

	res, err := s.mutate(ctx, did, oldKey, func(doc *models.Document, oldMethodID string) error {
		methodType, err := keys.MethodType(newKeyType)
		if err != nil {
			return err
		}
		newID := primaryMethodID(did, nextKeyIndex(doc))
		doc.VerificationMethod = append(doc.VerificationMethod, models.VerificationMethod{
			ID:           newID,
			Type:         methodType,
			Controller:   string(did),
			PublicKeyHex: newKey.PublicHex(),
		})
		doc.Authentication = []string{newID}
		doc.AssertionMethod = []string{newID}
		doc.KeyAgreement = []string{newID}
		doc.CapabilityInvocation = []string{newID}
		doc.CapabilityDelegation = []string{newID}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.IncKeyRotations()
	}
	s.emit(ctx, events.TypeDIDKeyRotated, string(did), map[string]string{"new_key_type": string(newKeyType)})
	s.logger.InfoContext(ctx, "did keys rotated", "did", did, "new_key_type", newKeyType)
	return res, newKey, nil
}

// DeactivateDID marks a DID terminally deactivated. Any later mutation or
// rotation fails with CodeDeactivated.
func (s *Service) DeactivateDID(ctx context.Context, did models.DID, signingKey *keys.KeyPair) (*models.Resolution, error) {
	if err := ParseDID(did); err != nil {
		return nil, err
	}
	rec, err := s.store.Get(ctx, did)
	if err != nil {
		return nil, err
	}
	if rec.Deactivated {
		return nil, dErrors.New(dErrors.CodeDeactivated, "did already deactivated")
	}
	if _, err := authoritativeMethodID(&rec.Document, signingKey); err != nil {
		return nil, err
	}

	rec.Deactivated = true
	if err := s.store.CompareAndPut(ctx, did, rec.Version, rec); err != nil {
		return nil, err
	}

	s.emit(ctx, events.TypeDIDDeactivated, string(did), nil)
	s.logger.InfoContext(ctx, "did deactivated", "did", did)

	fresh, err := s.store.Get(ctx, did)
	if err != nil {
		return nil, err
	}
	res := resolutionOf(fresh)
	return &res, nil
}

// VerifyDocumentProof canonicalizes the document excluding its proof and
// verifies the signature against the verification method the proof names.
// Fails closed on any structural problem.
func VerifyDocumentProof(doc *models.Document) bool {
	if doc == nil || doc.Proof == nil {
		return false
	}
	method := doc.Method(doc.Proof.VerificationMethod)
	if method == nil {
		return false
	}
	if !keys.ProofMatchesMethod(doc.Proof.Type, method.Type) {
		return false
	}
	keyType, err := keys.KeyTypeForMethod(method.Type)
	if err != nil {
		return false
	}
	pub, err := hex.DecodeString(method.PublicKeyHex)
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(doc.Proof.SignatureHex)
	if err != nil {
		return false
	}
	payload, err := signingPayload(doc, doc.Proof)
	if err != nil {
		return false
	}
	return keys.Verify(keyType, pub, payload, sig)
}

// mutate runs the read-check-modify-sign-CAS cycle shared by update,
// rotation, and deactivation. The transform receives a clone; the stored
// document only changes if the signed candidate verifies and the CAS wins.
func (s *Service) mutate(ctx context.Context, did models.DID, signingKey *keys.KeyPair, transform func(doc *models.Document, methodID string) error) (*models.Resolution, error) {
	if err := ParseDID(did); err != nil {
		return nil, err
	}
	rec, err := s.store.Get(ctx, did)
	if err != nil {
		return nil, err
	}
	if rec.Deactivated {
		return nil, dErrors.New(dErrors.CodeDeactivated, "did is deactivated")
	}

	methodID, err := authoritativeMethodID(&rec.Document, signingKey)
	if err != nil {
		return nil, err
	}

	candidate := rec.Document.Clone()
	if err := transform(candidate, methodID); err != nil {
		return nil, err
	}

	// Updated is monotone even under clock skew.
	now := s.clock().UTC()
	if now.After(candidate.Updated) {
		candidate.Updated = now
	}

	// The authoritative key on the *current* document signs the candidate.
	// For rotation this is the retiring key's last authoritative act.
	if err := signDocument(candidate, signingKey, methodID); err != nil {
		return nil, err
	}
	if !VerifyDocumentProof(candidate) {
		return nil, dErrors.New(dErrors.CodeRejected, "candidate document proof does not verify")
	}

	next := &store.Record{Document: *candidate, Wallet: rec.Wallet, Deactivated: rec.Deactivated}
	if err := s.store.CompareAndPut(ctx, did, rec.Version, next); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) && s.metrics != nil {
			s.metrics.IncWriteConflicts()
		}
		return nil, err
	}

	fresh, err := s.store.Get(ctx, did)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnattempted, "read back did document")
	}
	res := resolutionOf(fresh)
	return &res, nil
}

func (s *Service) emit(ctx context.Context, t events.Type, subject string, detail map[string]string) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, events.NewEvent(t, subject, detail)); err != nil {
		s.logger.WarnContext(ctx, "lifecycle event emit failed", "event_type", t, "error", err)
	}
}

func resolutionOf(rec *store.Record) models.Resolution {
	doc := rec.Document.Clone()
	return models.Resolution{
		Document: doc,
		Metadata: models.ResolutionMetadata{
			Deactivated: rec.Deactivated,
			Version:     rec.Version,
		},
	}
}

func primaryMethodID(did models.DID, index int) string {
	return fmt.Sprintf("%s#keys-%d", did, index)
}

func nextKeyIndex(doc *models.Document) int {
	// Wallet method is #wallet; key methods are #keys-N in append order.
	n := 0
	for _, vm := range doc.VerificationMethod {
		if vm.BlockchainAccountID == "" {
			n++
		}
	}
	return n + 1
}

func buildDocument(did models.DID, address string, kp *keys.KeyPair, now time.Time) (*models.Document, error) {
	methodType, err := keys.MethodType(kp.Type)
	if err != nil {
		return nil, err
	}
	primaryID := primaryMethodID(did, 1)
	walletID := fmt.Sprintf("%s#wallet", did)

	return &models.Document{
		Context: []string{
			"https://www.w3.org/ns/did/v1",
			"https://w3id.org/security/suites/ed25519-2020/v1",
		},
		ID: did,
		VerificationMethod: []models.VerificationMethod{
			{
				ID:           primaryID,
				Type:         methodType,
				Controller:   string(did),
				PublicKeyHex: kp.PublicHex(),
			},
			{
				ID:                  walletID,
				Type:                models.MethodTypeWalletAccount,
				Controller:          string(did),
				BlockchainAccountID: address,
			},
		},
		Authentication:       []string{primaryID},
		AssertionMethod:      []string{primaryID},
		KeyAgreement:         []string{primaryID},
		CapabilityInvocation: []string{primaryID},
		CapabilityDelegation: []string{primaryID},
		Created:              now,
		Updated:              now,
	}, nil
}

// authoritativeMethodID returns the id of the verification method in the
// current document's authentication or capabilityInvocation arrays whose
// public key matches signingKey. Keys not on the current document cannot
// authorize mutations.
func authoritativeMethodID(doc *models.Document, signingKey *keys.KeyPair) (string, error) {
	if signingKey == nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "signing key required")
	}
	authorized := make(map[string]struct{}, len(doc.Authentication)+len(doc.CapabilityInvocation))
	for _, id := range doc.Authentication {
		authorized[id] = struct{}{}
	}
	for _, id := range doc.CapabilityInvocation {
		authorized[id] = struct{}{}
	}

	wantHex := signingKey.PublicHex()
	for id := range authorized {
		method := doc.Method(id)
		if method == nil {
			continue
		}
		if method.PublicKeyHex == wantHex {
			keyType, err := keys.KeyTypeForMethod(method.Type)
			if err != nil || keyType != signingKey.Type {
				continue
			}
			return id, nil
		}
	}
	return "", dErrors.New(dErrors.CodeUnauthorized, "signing key is not authoritative for this did")
}

// signingPayload serializes the document without its signature, plus the
// proof envelope minus the signature itself, in canonical form.
func signingPayload(doc *models.Document, proof *models.Proof) ([]byte, error) {
	unsigned := doc.Clone()
	unsigned.Proof = nil

	envelope := struct {
		Document *models.Document `json:"document"`
		Proof    models.Proof     `json:"proof"`
	}{
		Document: unsigned,
		Proof: models.Proof{
			Type:               proof.Type,
			Created:            proof.Created,
			VerificationMethod: proof.VerificationMethod,
			ProofPurpose:       proof.ProofPurpose,
		},
	}
	return canonical.Marshal(envelope)
}

func signDocument(doc *models.Document, kp *keys.KeyPair, methodID string) error {
	proofType, err := keys.ProofType(kp.Type)
	if err != nil {
		return err
	}
	proof := &models.Proof{
		Type:               proofType,
		Created:            doc.Updated,
		VerificationMethod: methodID,
		ProofPurpose:       "assertionMethod",
	}
	payload, err := signingPayload(doc, proof)
	if err != nil {
		return err
	}
	sig, err := kp.Sign(payload)
	if err != nil {
		return err
	}
	proof.SignatureHex = hex.EncodeToString(sig)
	doc.Proof = proof
	return nil
}
