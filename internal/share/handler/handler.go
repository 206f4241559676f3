package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	proofmodels "privid/internal/proof/models"
	"privid/internal/share/models"
	"privid/internal/share/service"
	"privid/internal/transport/httpx"
	dErrors "privid/pkg/domain-errors"
)

// ManagerAPI defines the share operations the handler needs.
type ManagerAPI interface {
	CreatePackage(ctx context.Context, proof *proofmodels.Proof, audience string, window models.Window) (*service.CreateResult, error)
	VerifyShared(ctx context.Context, token string) (*service.SharedResult, error)
	Revoke(ctx context.Context, packageID string) error
}

// Handler wires share endpoints to the manager.
type Handler struct {
	manager ManagerAPI
	logger  *slog.Logger
}

// New constructs a share handler.
func New(manager ManagerAPI, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// Register mounts share endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/shares", h.handleCreate)
	r.Post("/shares/verify", h.handleVerify)
	r.Delete("/shares/{id}", h.handleRevoke)
}

type createRequest struct {
	Proof    *proofmodels.Proof `json:"proof"`
	Audience string             `json:"audience"`
	Window   models.Window      `json:"window"`
}

type createResponse struct {
	Package *models.Package `json:"package"`
	// Token is returned exactly once; it is never stored server-side.
	Token        string `json:"token"`
	Instructions string `json:"instructions"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := httpx.Decode[createRequest](w, r, h.logger)
	if !ok {
		return
	}
	res, err := h.manager.CreatePackage(r.Context(), req.Proof, req.Audience, req.Window)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, createResponse{
		Package:      res.Package,
		Token:        res.Token,
		Instructions: res.Instructions,
	})
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	req, ok := httpx.Decode[verifyRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.Token == "" {
		httpx.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "token required"))
		return
	}
	res, err := h.manager.VerifyShared(r.Context(), req.Token)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Revoke(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
