package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "ridehooks/internal/api/context"
	"ridehooks/internal/engine/webhooks"
	"ridehooks/internal/pkg/errors"
	"ridehooks/internal/platform/auth"
)

type WebhookHandler struct {
	registry *webhooks.Registry
}

func NewWebhookHandler(registry *webhooks.Registry) *WebhookHandler {
	return &WebhookHandler{registry: registry}
}

func (h *WebhookHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var req struct {
		URL    string   `json:"url"`
		Events []string `json:"events"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	endpoint, err := h.registry.Register(claims.UserID, req.URL, req.Events)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	// The only response that carries the full secret.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(endpoint)
}

func (h *WebhookHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	endpoints, err := h.registry.List(claims.UserID)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list webhooks", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"endpoints": endpoints})
}

func (h *WebhookHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	if err := h.registry.Deactivate(claims.UserID, params.ByName("endpoint_id")); err != nil {
		writeRegistryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

func (h *WebhookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	if err := h.registry.Delete(claims.UserID, params.ByName("endpoint_id")); err != nil {
		writeRegistryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, webhooks.ErrValidation):
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
	case stderrors.Is(err, webhooks.ErrNotFound):
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Webhook endpoint not found", nil)
	default:
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Internal error", nil)
	}
}
