package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"privid/internal/attestation"
	"privid/internal/credential/models"
	"privid/internal/credential/service"
	idmodels "privid/internal/identity/models"
	"privid/internal/transport/httpx"
)

// IssuerAPI defines the credential operations the handler needs.
type IssuerAPI interface {
	GenerateCredentialSet(ctx context.Context, rec *attestation.RecordV1, walletAddress string) (*service.BatchResult, error)
	Get(ctx context.Context, id string) (*models.Credential, error)
	ListBySubject(ctx context.Context, subject idmodels.DID) ([]*models.Credential, error)
}

// Handler wires credential endpoints to the issuer service.
type Handler struct {
	issuer IssuerAPI
	logger *slog.Logger
}

// New constructs a credential handler.
func New(issuer IssuerAPI, logger *slog.Logger) *Handler {
	return &Handler{issuer: issuer, logger: logger}
}

// Register mounts credential endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/credentials/issue", h.handleIssue)
	r.Get("/credentials/{id}", h.handleGet)
	r.Get("/credentials/subjects/{did}", h.handleListBySubject)
}

type issueRequest struct {
	WalletAddress string                `json:"walletAddress"`
	Attestation   *attestation.RecordV1 `json:"attestation"`
}

type issueOutcome struct {
	Type       models.Type        `json:"type"`
	Credential *models.Credential `json:"credential,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type issueResponse struct {
	Subject  idmodels.DID   `json:"subject"`
	Outcomes []issueOutcome `json:"outcomes"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	req, ok := httpx.Decode[issueRequest](w, r, h.logger)
	if !ok {
		return
	}

	batch, err := h.issuer.GenerateCredentialSet(r.Context(), req.Attestation, req.WalletAddress)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}

	resp := issueResponse{Subject: batch.SubjectDID}
	for _, o := range batch.Outcomes {
		out := issueOutcome{Type: o.Type, Credential: o.Credential}
		if o.Err != nil {
			out.Error = o.Err.Error()
		}
		resp.Outcomes = append(resp.Outcomes, out)
	}
	status := http.StatusCreated
	if len(batch.Failed()) > 0 {
		status = http.StatusMultiStatus
	}
	httpx.WriteJSON(w, status, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	cred, err := h.issuer.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cred)
}

func (h *Handler) handleListBySubject(w http.ResponseWriter, r *http.Request) {
	creds, err := h.issuer.ListBySubject(r.Context(), idmodels.DID(chi.URLParam(r, "did")))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, creds)
}
