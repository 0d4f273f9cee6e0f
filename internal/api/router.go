package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "ridehooks/internal/api/context"
	"ridehooks/internal/api/handlers"
	"ridehooks/internal/api/middleware"
)

type Dependencies struct {
	WebhookHandler    *handlers.WebhookHandler
	DispatchHandler   *handlers.DispatchHandler
	HealthHandler     *handlers.HealthHandler
	AuthMiddleware    *middleware.AuthMiddleware
	TriggerMiddleware *middleware.TriggerMiddleware
	RateLimiter       *middleware.RateLimiter
	APIReadLimit      int
	APIWriteLimit     int
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/healthz", wrap(deps.HealthHandler.Check))

	authMid := deps.AuthMiddleware
	readLimit := deps.RateLimiter.Limit("api_read", deps.APIReadLimit)
	writeLimit := deps.RateLimiter.Limit("api_write", deps.APIWriteLimit)

	// Endpoint registration
	router.POST("/api/v1/webhooks",
		chain(deps.WebhookHandler.Create, authMid.Handle, writeLimit))
	router.GET("/api/v1/webhooks",
		chain(deps.WebhookHandler.List, authMid.Handle, readLimit))
	router.POST("/api/v1/webhooks/:endpoint_id/deactivate",
		chain(deps.WebhookHandler.Deactivate, authMid.Handle, writeLimit))
	router.DELETE("/api/v1/webhooks/:endpoint_id",
		chain(deps.WebhookHandler.Delete, authMid.Handle, writeLimit))

	// Delivery log
	router.GET("/api/v1/webhooks/:endpoint_id/deliveries",
		chain(deps.DispatchHandler.Deliveries, authMid.Handle, readLimit))

	// Dispatch trigger, invoked by the external scheduler with a shared secret
	router.POST("/internal/webhooks/process",
		chain(deps.DispatchHandler.Process, deps.TriggerMiddleware.Handle))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
