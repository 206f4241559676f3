package handler

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	credmodels "privid/internal/credential/models"
	"privid/internal/proof/challenge"
	"privid/internal/proof/models"
	"privid/internal/proof/service"
	"privid/internal/transport/httpx"
	"privid/internal/witness"
	dErrors "privid/pkg/domain-errors"
)

// EngineAPI defines the proof operations the handler needs.
type EngineAPI interface {
	Generate(ctx context.Context, req service.GenerateRequest) (*models.Proof, error)
	Verify(ctx context.Context, proof *models.Proof) (*service.VerifyOutcome, error)
}

// CredentialSource fetches stored credentials by id.
type CredentialSource interface {
	Get(ctx context.Context, id string) (*credmodels.Credential, error)
}

// Handler wires proof endpoints to the engine.
type Handler struct {
	engine      EngineAPI
	credentials CredentialSource
	challenges  challenge.Store
	logger      *slog.Logger
}

// New constructs a proof handler.
func New(engine EngineAPI, credentials CredentialSource, challenges challenge.Store, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, credentials: credentials, challenges: challenges, logger: logger}
}

// Register mounts proof endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/proofs/challenges", h.handleIssueChallenge)
	r.Post("/proofs/generate", h.handleGenerate)
	r.Post("/proofs/verify", h.handleVerify)
}

type challengeRequest struct {
	Audience   string `json:"audience"`
	TTLSeconds int    `json:"ttlSeconds"`
}

func (h *Handler) handleIssueChallenge(w http.ResponseWriter, r *http.Request) {
	req, ok := httpx.Decode[challengeRequest](w, r, h.logger)
	if !ok {
		return
	}
	ch, err := h.challenges.Issue(r.Context(), req.Audience, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, ch)
}

type generateRequest struct {
	CredentialID    string `json:"credentialId"`
	MasterSecretHex string `json:"masterSecretHex"`
	ProofType       string `json:"proofType"`
	Purpose         string `json:"purpose,omitempty"`
	ChallengeNonce  string `json:"challengeNonce"`

	MinAge             int      `json:"minAge,omitempty"`
	AllowedRegions     []string `json:"allowedRegions,omitempty"`
	RequiredConfidence uint64   `json:"requiredConfidence,omitempty"`
	NetworkEpoch       uint64   `json:"networkEpoch,omitempty"`
	MinNetWorth        int64    `json:"minNetWorth,omitempty"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := httpx.Decode[generateRequest](w, r, h.logger)
	if !ok {
		return
	}

	secret, err := hex.DecodeString(req.MasterSecretHex)
	if err != nil {
		httpx.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed master secret hex"))
		return
	}
	defer func() {
		for i := range secret {
			secret[i] = 0
		}
	}()
	nonce, err := hex.DecodeString(req.ChallengeNonce)
	if err != nil {
		httpx.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed challenge nonce hex"))
		return
	}

	cred, err := h.credentials.Get(r.Context(), req.CredentialID)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	proof, err := h.engine.Generate(r.Context(), service.GenerateRequest{
		Credential:   cred,
		MasterSecret: secret,
		Purpose:      req.Purpose,
		Witness: witness.Request{
			Type:               witness.ProofType(req.ProofType),
			ChallengeNonce:     nonce,
			MinAge:             req.MinAge,
			AllowedRegions:     req.AllowedRegions,
			RequiredConfidence: req.RequiredConfidence,
			NetworkEpoch:       req.NetworkEpoch,
			MinNetWorth:        req.MinNetWorth,
		},
	})
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, proof)
}

type verifyRequest struct {
	Proof *models.Proof `json:"proof"`
	// ConsumeChallenge spends the challenge nonce named in the proof's
	// metadata, making this verification single-use.
	ConsumeChallenge bool `json:"consumeChallenge,omitempty"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	req, ok := httpx.Decode[verifyRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.Proof == nil {
		httpx.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "proof required"))
		return
	}

	if req.ConsumeChallenge {
		if _, err := h.challenges.Consume(r.Context(), req.Proof.Metadata.ChallengeNonce); err != nil {
			httpx.WriteError(w, err)
			return
		}
	}

	outcome, err := h.engine.Verify(r.Context(), req.Proof)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, outcome)
}
