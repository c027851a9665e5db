package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"leadbridge/internal/syncing/service"
	"leadbridge/platform/httpkit"
	"leadbridge/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxEventBody = 256 << 10

// Handler handles webhook HTTP requests.
type Handler struct {
	svc  *service.Service
	repo *Repository
	val  *validator.Validator
}

func NewHandler(svc *service.Service, repo *Repository, val *validator.Validator) *Handler {
	return &Handler{svc: svc, repo: repo, val: val}
}

// HandleEvent processes an inbound lead event.
// POST /api/v1/webhook/events
// Authenticated via X-Webhook-API-Key header (set by middleware).
// The platform retries deliveries that fail with a 5xx, so a payload we
// can never process must not surface as a server error; 5xx is reserved
// for our own storage being down.
func (h *Handler) HandleEvent(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBody))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unable to read request body", nil)
		return
	}

	result, err := h.svc.HandleWebhook(c.Request.Context(), json.RawMessage(raw))
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "event processing failed", nil)
		return
	}

	httpkit.OK(c, result)
}

// ---- Admin API key management (JWT auth + admin role) ----

// CreateAPIKeyRequest is the request body for creating a new API key.
type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// APIKeyResponse is returned when listing or creating API keys.
type APIKeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	KeyPrefix string    `json:"keyPrefix"`
	IsActive  bool      `json:"isActive"`
	CreatedAt string    `json:"createdAt"`
}

// CreateAPIKeyResponse includes the plaintext key (shown only once).
type CreateAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}

// HandleCreateAPIKey creates a new webhook API key.
// POST /api/v1/admin/webhook/keys
func (h *Handler) HandleCreateAPIKey(c *gin.Context) {
	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation error", err.Error())
		return
	}

	plaintext, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to generate API key", nil)
		return
	}

	key, err := h.repo.Create(c.Request.Context(), req.Name, hash, prefix)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, CreateAPIKeyResponse{
		APIKeyResponse: toAPIKeyResponse(key),
		Key:            plaintext,
	})
}

// HandleListAPIKeys lists all webhook API keys.
// GET /api/v1/admin/webhook/keys
func (h *Handler) HandleListAPIKeys(c *gin.Context) {
	keys, err := h.repo.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	result := make([]APIKeyResponse, len(keys))
	for i, k := range keys {
		result[i] = toAPIKeyResponse(k)
	}
	httpkit.OK(c, result)
}

// HandleRevokeAPIKey deactivates a webhook API key.
// DELETE /api/v1/admin/webhook/keys/:keyId
func (h *Handler) HandleRevokeAPIKey(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("keyId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid key ID", nil)
		return
	}

	if err := h.repo.Revoke(c.Request.Context(), keyID); err != nil {
		if err == ErrAPIKeyNotFound {
			httpkit.Error(c, http.StatusNotFound, "API key not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key revoked"})
}

func toAPIKeyResponse(key APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:        key.ID,
		Name:      key.Name,
		KeyPrefix: key.KeyPrefix,
		IsActive:  key.IsActive,
		CreatedAt: key.CreatedAt.UTC().Format(time.RFC3339),
	}
}
