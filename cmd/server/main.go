package main

import (
	"fmt"
	"log"
	"net/http"

	"ridehooks/internal/api"
	"ridehooks/internal/api/handlers"
	"ridehooks/internal/api/middleware"
	"ridehooks/internal/engine/webhooks"
	"ridehooks/internal/pkg/logger"
	"ridehooks/internal/platform/auth"
	"ridehooks/internal/platform/config"
	"ridehooks/internal/platform/database"
	"ridehooks/internal/platform/repositories"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Repositories
	endpointRepo := repositories.NewEndpointRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)

	// Engine
	registry := webhooks.NewRegistry(endpointRepo, deliveryRepo)
	scheduler := webhooks.NewScheduler(cfg.Webhooks.BackoffBase, cfg.Webhooks.BackoffCap)
	dispatcher := webhooks.NewDispatcher(deliveryRepo, endpointRepo, scheduler, cfg.Webhooks.WorkerCount)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(registry)
	dispatchHandler := handlers.NewDispatchHandler(dispatcher, registry, cfg.Webhooks.BatchSize)
	healthHandler := handlers.NewHealthHandler(db)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)
	triggerMiddleware := middleware.NewTriggerMiddleware(cfg.Webhooks.TriggerToken)
	rateLimiter := middleware.NewRateLimiter()

	deps := &api.Dependencies{
		WebhookHandler:    webhookHandler,
		DispatchHandler:   dispatchHandler,
		HealthHandler:     healthHandler,
		AuthMiddleware:    authMiddleware,
		TriggerMiddleware: triggerMiddleware,
		RateLimiter:       rateLimiter,
		APIReadLimit:      cfg.RateLimit.APIReadPerMinute,
		APIWriteLimit:     cfg.RateLimit.APIWritePerMinute,
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
