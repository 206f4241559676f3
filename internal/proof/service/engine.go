// Package service is the proof engine: it turns a credential plus a verifier
// challenge into a pairing proof, and checks proofs presented by holders.
// Verification is always cryptographic; there is no trust-the-metadata fast
// path anywhere in this package.
package service

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	credmodels "privid/internal/credential/models"
	"privid/internal/platform/events"
	"privid/internal/proof/artifacts"
	"privid/internal/proof/challenge"
	"privid/internal/proof/groth16"
	"privid/internal/proof/metrics"
	"privid/internal/proof/models"
	"privid/internal/witness"
	dErrors "privid/pkg/domain-errors"
	"privid/pkg/zk"
)

// Clock abstracts time for testability.
type Clock func() time.Time

// Engine generates and verifies proofs.
type Engine struct {
	source  artifacts.Source
	events  events.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	clock   Clock
	tracer  trace.Tracer
}

// Option configures the Engine.
type Option func(*Engine)

// WithClock injects a clock for tests.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithEvents sets the lifecycle event publisher.
func WithEvents(pub events.Publisher) Option {
	return func(e *Engine) { e.events = pub }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New constructs the proof engine over an artifact source.
func New(source artifacts.Source, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		source: source,
		logger: logger,
		clock:  time.Now,
		tracer: otel.Tracer("privid/proof"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// GenerateRequest carries everything one proof generation needs. The master
// secret is used transiently and never stored by the engine.
type GenerateRequest struct {
	Credential   *credmodels.Credential
	MasterSecret []byte
	Purpose      string
	Witness      witness.Request
}

// Generate builds a witness from the credential, proves it under the
// circuit's proving key, and returns the shareable proof object.
func (e *Engine) Generate(ctx context.Context, req GenerateRequest) (*models.Proof, error) {
	ctx, span := e.tracer.Start(ctx, "proof.generate",
		trace.WithAttributes(attribute.String("proof.type", string(req.Witness.Type))))
	defer span.End()
	started := e.clock()

	proof, err := e.generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		if e.metrics != nil {
			e.metrics.IncGenerateFailure(string(req.Witness.Type), string(dErrors.CodeOf(err)))
		}
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.ObserveGenerate(string(req.Witness.Type), e.clock().Sub(started))
	}
	span.SetAttributes(attribute.String("proof.circuit", proof.Metadata.CircuitID))
	e.emit(ctx, events.TypeProofGenerated, req.Credential.SubjectDID(), map[string]string{
		"proof_id":   proof.ID,
		"proof_type": string(proof.Metadata.ProofType),
		"circuit_id": proof.Metadata.CircuitID,
	})
	e.logger.InfoContext(ctx, "proof generated",
		"proof_id", proof.ID,
		"proof_type", proof.Metadata.ProofType,
		"circuit_id", proof.Metadata.CircuitID,
	)
	return proof, nil
}

func (e *Engine) generate(ctx context.Context, req GenerateRequest) (*models.Proof, error) {
	if len(req.Witness.ChallengeNonce) != challenge.NonceSize {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("challenge nonce must be %d bytes", challenge.NonceSize))
	}

	builder, err := witness.NewBuilder(req.MasterSecret, witness.WithClock(witness.Clock(e.clock)))
	if err != nil {
		return nil, err
	}
	defer builder.Zeroize()
	assignment, err := builder.Build(req.Credential, req.Witness)
	if err != nil {
		return nil, err
	}
	defer assignment.Zeroize()

	arts, err := e.source.Load(ctx, assignment.CircuitID)
	if err != nil {
		return nil, err
	}
	if arts.NumPublicInputs != len(assignment.Public) {
		return nil, dErrors.New(dErrors.CodeUnattempted,
			fmt.Sprintf("circuit %s artifacts expect %d public inputs, witness has %d",
				assignment.CircuitID, arts.NumPublicInputs, len(assignment.Public)))
	}

	g16, err := groth16.Prove(arts.ProvingKey, assignment.Public, random.New())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "proving failed")
	}
	a, b, c, err := groth16.ProofPoints(g16)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode proof points")
	}

	publics := make([]string, len(assignment.Public))
	for i, s := range assignment.Public {
		publics[i] = zk.ScalarHex(s)
	}

	commitment := ""
	if assignment.Commitment != nil {
		commitment = zk.ScalarHex(assignment.Commitment)
	}

	now := e.clock().UTC()
	return &models.Proof{
		ID: "urn:uuid:" + uuid.NewString(),
		Payload: models.Payload{
			Protocol:     models.Protocol,
			Curve:        models.Curve,
			PiA:          a,
			PiB:          b,
			PiC:          c,
			PublicInputs: publics,
		},
		Metadata: models.Metadata{
			ProofType:      assignment.ProofType,
			Purpose:        req.Purpose,
			CredentialID:   req.Credential.ID,
			Issuer:         req.Credential.Issuer,
			CircuitID:      assignment.CircuitID,
			CircuitVersion: arts.Version,
			VKHash:         arts.VKHash,
			Nullifier:      zk.ScalarHex(assignment.Nullifier),
			Commitment:     commitment,
			ChallengeNonce: hex.EncodeToString(req.Witness.ChallengeNonce),
			GeneratedAt:    now,
			ExpiresAt:      req.Credential.ExpirationDate,
		},
	}, nil
}

// VerifyOutcome is the verifier-facing result. Valid=false always carries a
// reason; an error instead means the check never ran.
type VerifyOutcome struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

// Verify re-checks a proof cryptographically. It returns an error only when
// verification could not be attempted (artifacts unavailable); every
// attempted-and-failed path is a reasoned rejection.
func (e *Engine) Verify(ctx context.Context, proof *models.Proof) (*VerifyOutcome, error) {
	proofType := ""
	if proof != nil {
		proofType = string(proof.Metadata.ProofType)
	}
	ctx, span := e.tracer.Start(ctx, "proof.verify",
		trace.WithAttributes(attribute.String("proof.type", proofType)))
	defer span.End()
	started := e.clock()

	outcome, err := e.verify(ctx, proof)
	elapsed := e.clock().Sub(started)
	if err != nil {
		span.RecordError(err)
		if e.metrics != nil {
			e.metrics.ObserveVerify(proofType, "unattempted", elapsed)
		}
		return nil, err
	}

	label := "rejected"
	if outcome.Valid {
		label = "valid"
	}
	if e.metrics != nil {
		e.metrics.ObserveVerify(proofType, label, elapsed)
	}
	span.SetAttributes(attribute.Bool("proof.valid", outcome.Valid))
	proofID := ""
	if proof != nil {
		proofID = proof.ID
	}
	e.emit(ctx, events.TypeProofVerified, proofID, map[string]string{
		"proof_type": proofType,
		"outcome":    label,
	})
	return outcome, nil
}

func (e *Engine) verify(ctx context.Context, proof *models.Proof) (*VerifyOutcome, error) {
	if proof == nil {
		return &VerifyOutcome{Reason: "no proof supplied"}, nil
	}
	if proof.Payload.Protocol != models.Protocol || proof.Payload.Curve != models.Curve {
		return &VerifyOutcome{Reason: "unsupported protocol or curve"}, nil
	}
	if proof.Expired(e.clock().UTC()) {
		return &VerifyOutcome{Reason: "proof validity window has passed"}, nil
	}

	arts, err := e.source.Load(ctx, proof.Metadata.CircuitID)
	if err != nil {
		// Unavailable artifacts mean the check never ran. Callers must not
		// read this as a rejection.
		return nil, err
	}
	if proof.Metadata.VKHash != arts.VKHash {
		return &VerifyOutcome{Reason: "verifying key mismatch"}, nil
	}

	g16, err := groth16.ProofFromPoints(proof.Payload.PiA, proof.Payload.PiB, proof.Payload.PiC)
	if err != nil {
		return &VerifyOutcome{Reason: "malformed proof points"}, nil
	}
	if len(proof.Payload.PublicInputs) != arts.NumPublicInputs {
		return &VerifyOutcome{Reason: "public input count mismatch"}, nil
	}
	publics := make([]kyber.Scalar, len(proof.Payload.PublicInputs))
	for i, s := range proof.Payload.PublicInputs {
		scalar, err := zk.ScalarFromHex(s)
		if err != nil {
			return &VerifyOutcome{Reason: "malformed public input"}, nil
		}
		publics[i] = scalar
	}

	if !groth16.Verify(arts.VerifyingKey, g16, publics) {
		return &VerifyOutcome{Reason: "pairing check failed"}, nil
	}
	return &VerifyOutcome{Valid: true}, nil
}

func (e *Engine) emit(ctx context.Context, eventType events.Type, subject string, detail map[string]string) {
	if e.events == nil {
		return
	}
	if err := e.events.Emit(ctx, events.NewEvent(eventType, subject, detail)); err != nil {
		e.logger.WarnContext(ctx, "lifecycle event emit failed",
			"event_type", eventType,
			"error", err,
		)
	}
}
