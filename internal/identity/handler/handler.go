package handler

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"privid/internal/identity/keys"
	"privid/internal/identity/models"
	"privid/internal/identity/service"
	"privid/internal/transport/httpx"
	dErrors "privid/pkg/domain-errors"
)

// Registry defines the identity operations the handler needs.
type Registry interface {
	CreateDID(ctx context.Context, address, walletPublicKeyHex string, keyType models.KeyType) (*service.CreateResult, error)
	ResolveDID(ctx context.Context, did models.DID) (*models.Resolution, error)
	ResolveWallet(ctx context.Context, wallet string) (*models.Resolution, error)
	UpdateDIDDocument(ctx context.Context, did models.DID, patch service.DocumentPatch, signingKey *keys.KeyPair) (*models.Resolution, error)
	RotateKeys(ctx context.Context, did models.DID, oldKey *keys.KeyPair, newKeyType models.KeyType) (*models.Resolution, *keys.KeyPair, error)
	DeactivateDID(ctx context.Context, did models.DID, signingKey *keys.KeyPair) (*models.Resolution, error)
}

// Handler wires registry endpoints to the identity service.
type Handler struct {
	registry Registry
	logger   *slog.Logger
}

// New constructs an identity handler.
func New(registry Registry, logger *slog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// Register mounts identity endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identity/dids", h.handleCreate)
	r.Get("/identity/dids/{did}", h.handleResolve)
	r.Get("/identity/wallets/{wallet}", h.handleResolveWallet)
	r.Post("/identity/dids/{did}/update", h.handleUpdate)
	r.Post("/identity/dids/{did}/rotate", h.handleRotate)
	r.Post("/identity/dids/{did}/deactivate", h.handleDeactivate)
}

type createRequest struct {
	Address         string `json:"address"`
	WalletPublicKey string `json:"walletPublicKey"`
	KeyType         string `json:"keyType"`
}

type createResponse struct {
	Resolution models.Resolution `json:"resolution"`
	// PrivateKeyHex is returned exactly once, at creation; the registry
	// never stores it.
	PrivateKeyHex string `json:"privateKeyHex,omitempty"`
	Existing      bool   `json:"existing"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httpx.Decode[createRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.registry.CreateDID(ctx, req.Address, req.WalletPublicKey, models.KeyType(req.KeyType))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	resp := createResponse{Resolution: res.Resolution, Existing: res.Existing}
	if res.KeyPair != nil {
		resp.PrivateKeyHex = hex.EncodeToString(res.KeyPair.Private)
		res.KeyPair.Zeroize()
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	did := models.DID(chi.URLParam(r, "did"))
	res, err := h.registry.ResolveDID(r.Context(), did)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleResolveWallet(w http.ResponseWriter, r *http.Request) {
	res, err := h.registry.ResolveWallet(r.Context(), chi.URLParam(r, "wallet"))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

type updateRequest struct {
	Patch      service.DocumentPatch `json:"patch"`
	SigningKey signingKey            `json:"signingKey"`
}

type signingKey struct {
	KeyType       string `json:"keyType"`
	PrivateKeyHex string `json:"privateKeyHex"`
}

func (sk signingKey) keyPair() (*keys.KeyPair, error) {
	priv, err := hex.DecodeString(sk.PrivateKeyHex)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "malformed private key hex")
	}
	return keys.FromPrivate(models.KeyType(sk.KeyType), priv)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	did := models.DID(chi.URLParam(r, "did"))
	req, ok := httpx.Decode[updateRequest](w, r, h.logger)
	if !ok {
		return
	}
	kp, err := req.SigningKey.keyPair()
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	defer kp.Zeroize()

	res, err := h.registry.UpdateDIDDocument(r.Context(), did, req.Patch, kp)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

type rotateRequest struct {
	OldKey     signingKey `json:"oldKey"`
	NewKeyType string     `json:"newKeyType"`
}

type rotateResponse struct {
	Resolution    *models.Resolution `json:"resolution"`
	PrivateKeyHex string             `json:"privateKeyHex"`
}

func (h *Handler) handleRotate(w http.ResponseWriter, r *http.Request) {
	did := models.DID(chi.URLParam(r, "did"))
	req, ok := httpx.Decode[rotateRequest](w, r, h.logger)
	if !ok {
		return
	}
	kp, err := req.OldKey.keyPair()
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	defer kp.Zeroize()

	res, newKey, err := h.registry.RotateKeys(r.Context(), did, kp, models.KeyType(req.NewKeyType))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	resp := rotateResponse{Resolution: res, PrivateKeyHex: hex.EncodeToString(newKey.Private)}
	newKey.Zeroize()
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type deactivateRequest struct {
	SigningKey signingKey `json:"signingKey"`
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	did := models.DID(chi.URLParam(r, "did"))
	req, ok := httpx.Decode[deactivateRequest](w, r, h.logger)
	if !ok {
		return
	}
	kp, err := req.SigningKey.keyPair()
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	defer kp.Zeroize()

	res, err := h.registry.DeactivateDID(r.Context(), did, kp)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
