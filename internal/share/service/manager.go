// Package service is the proof share manager. A holder packages a generated
// proof under a bounded sharing window; verifiers redeem the package's
// bearer token and always get a fresh cryptographic verification, never a
// cached verdict.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"privid/internal/platform/events"
	proofmodels "privid/internal/proof/models"
	proofservice "privid/internal/proof/service"
	"privid/internal/share/metrics"
	"privid/internal/share/models"
	"privid/internal/share/store"
	dErrors "privid/pkg/domain-errors"
)

// Clock abstracts time for testability.
type Clock func() time.Time

// Verifier re-checks proofs cryptographically.
type Verifier interface {
	Verify(ctx context.Context, proof *proofmodels.Proof) (*proofservice.VerifyOutcome, error)
}

// Manager creates, redeems, and revokes share packages.
type Manager struct {
	store      store.Store
	nullifiers store.NullifierTracker
	verifier   Verifier
	signingKey []byte
	events     events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	clock      Clock
}

// Option configures the Manager.
type Option func(*Manager)

// WithClock injects a clock for tests.
func WithClock(clock Clock) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithEvents sets the lifecycle event publisher.
func WithEvents(pub events.Publisher) Option {
	return func(m *Manager) { m.events = pub }
}

// WithMetrics sets the metrics collector.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// New constructs the share manager. signingKey signs share bearer tokens.
func New(st store.Store, nullifiers store.NullifierTracker, verifier Verifier, signingKey []byte, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:      st,
		nullifiers: nullifiers,
		verifier:   verifier,
		signingKey: signingKey,
		logger:     logger,
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// CreateResult is a created package plus its one-time bearer token and the
// presentation instructions the holder passes along out of band.
type CreateResult struct {
	Package      *models.Package
	Token        string
	Instructions string
}

func instructions(proofType string, expiresAt time.Time) string {
	return fmt.Sprintf(
		"Present this token to redeem a %s proof. Valid until %s; each verification re-runs the full cryptographic check.",
		proofType, expiresAt.Format(time.RFC3339))
}

// CreatePackage verifies a proof, claims its nullifier, and stores it under
// a sharing window. The effective expiry is the earlier of the window end
// and the proof's own expiry; a share never outlives the proof inside it.
func (m *Manager) CreatePackage(ctx context.Context, proof *proofmodels.Proof, audience string, window models.Window) (*CreateResult, error) {
	if proof == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "proof required")
	}
	if audience == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "audience required")
	}
	dur, err := window.Duration()
	if err != nil {
		return nil, err
	}

	now := m.clock().UTC()
	expiresAt := now.Add(dur)
	if proof.Metadata.ExpiresAt.Before(expiresAt) {
		expiresAt = proof.Metadata.ExpiresAt
	}
	if !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeExpired, "proof has already expired")
	}

	outcome, err := m.verifier.Verify(ctx, proof)
	if err != nil {
		return nil, err
	}
	if !outcome.Valid {
		return nil, dErrors.New(dErrors.CodeRejected, "proof failed verification: "+outcome.Reason)
	}

	pkg := &models.Package{
		ID:        uuid.NewString(),
		Proof:     *proof,
		Audience:  audience,
		Window:    window,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}

	owner, err := m.nullifiers.Register(ctx, proof.Metadata.Nullifier, pkg.ID, expiresAt.Sub(now))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "register nullifier")
	}
	if owner != pkg.ID {
		if m.metrics != nil {
			m.metrics.IncReplay()
		}
		return nil, dErrors.New(dErrors.CodeReplayed, "proof nullifier already shared")
	}

	if err := m.store.Put(ctx, pkg); err != nil {
		return nil, err
	}
	token, err := m.signToken(pkg.ID, audience, now, expiresAt)
	if err != nil {
		return nil, err
	}

	if m.metrics != nil {
		m.metrics.IncCreated(string(window))
	}
	m.emit(ctx, events.TypeShareCreated, pkg.ID, map[string]string{
		"proof_id": proof.ID,
		"audience": audience,
		"window":   string(window),
	})
	m.logger.InfoContext(ctx, "share package created",
		"package_id", pkg.ID,
		"proof_type", proof.Metadata.ProofType,
		"window", window,
	)
	return &CreateResult{
		Package:      pkg,
		Token:        token,
		Instructions: instructions(string(proof.Metadata.ProofType), expiresAt),
	}, nil
}

// SharedResult is what a verifier gets back when redeeming a token.
type SharedResult struct {
	PackageID string                      `json:"packageId"`
	Audience  string                      `json:"audience"`
	ExpiresAt time.Time                   `json:"expiresAt"`
	Proof     proofmodels.Proof           `json:"proof"`
	Outcome   *proofservice.VerifyOutcome `json:"outcome"`
}

// VerifyShared redeems a bearer token and re-verifies the packaged proof.
// Expiry is wall-clock at redemption time: a package created under a 24h
// window and redeemed at hour 25 fails here no matter what the token says.
func (m *Manager) VerifyShared(ctx context.Context, token string) (*SharedResult, error) {
	packageID, err := m.parseToken(token)
	if err != nil {
		return nil, err
	}

	pkg, err := m.store.Get(ctx, packageID)
	if err != nil {
		return nil, err
	}
	now := m.clock().UTC()
	if pkg.Expired(now) {
		if m.metrics != nil {
			m.metrics.IncVerification("expired")
		}
		return nil, dErrors.New(dErrors.CodeExpired, "sharing window has passed")
	}

	// Replay check: the nullifier must still belong to this package. A
	// different owner means the same proof was shared again elsewhere.
	owner, err := m.nullifiers.Register(ctx, pkg.Proof.Metadata.Nullifier, pkg.ID, pkg.ExpiresAt.Sub(now))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check nullifier")
	}
	if owner != pkg.ID {
		if m.metrics != nil {
			m.metrics.IncReplay()
			m.metrics.IncVerification("replayed")
		}
		return nil, dErrors.New(dErrors.CodeReplayed, "proof nullifier claimed by another share")
	}

	outcome, err := m.verifier.Verify(ctx, &pkg.Proof)
	if err != nil {
		if m.metrics != nil {
			m.metrics.IncVerification("unattempted")
		}
		return nil, err
	}
	label := "rejected"
	if outcome.Valid {
		label = "valid"
	}
	if m.metrics != nil {
		m.metrics.IncVerification(label)
	}
	return &SharedResult{
		PackageID: pkg.ID,
		Audience:  pkg.Audience,
		ExpiresAt: pkg.ExpiresAt,
		Proof:     pkg.Proof,
		Outcome:   outcome,
	}, nil
}

// Revoke removes a package before its window ends. Idempotent.
func (m *Manager) Revoke(ctx context.Context, packageID string) error {
	if packageID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "package id required")
	}
	if err := m.store.Delete(ctx, packageID); err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "share package revoked", "package_id", packageID)
	return nil
}

func (m *Manager) emit(ctx context.Context, eventType events.Type, subject string, detail map[string]string) {
	if m.events == nil {
		return
	}
	if err := m.events.Emit(ctx, events.NewEvent(eventType, subject, detail)); err != nil {
		m.logger.WarnContext(ctx, "lifecycle event emit failed",
			"event_type", eventType,
			"error", err,
		)
	}
}
