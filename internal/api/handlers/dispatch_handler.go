package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	apiContext "ridehooks/internal/api/context"
	"ridehooks/internal/engine/webhooks"
	"ridehooks/internal/pkg/errors"
	"ridehooks/internal/platform/auth"
)

type DispatchHandler struct {
	dispatcher *webhooks.Dispatcher
	registry   *webhooks.Registry
	batchSize  int
}

func NewDispatchHandler(dispatcher *webhooks.Dispatcher, registry *webhooks.Registry, batchSize int) *DispatchHandler {
	return &DispatchHandler{dispatcher: dispatcher, registry: registry, batchSize: batchSize}
}

// Process is the external dispatch trigger. It runs one bounded batch and
// reports counters; individual delivery outcomes never fail the request.
func (h *DispatchHandler) Process(w http.ResponseWriter, r *http.Request) {
	result, err := h.dispatcher.Run(r.Context(), h.batchSize)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to claim deliveries", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Deliveries returns the attempt history for one of the caller's endpoints.
func (h *DispatchHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	deliveries, err := h.registry.ListDeliveries(claims.UserID, params.ByName("endpoint_id"), limit)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"deliveries": deliveries})
}
