package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ridehooks/internal/engine/webhooks"
	"ridehooks/internal/pkg/logger"
	"ridehooks/internal/platform/config"
	"ridehooks/internal/platform/database"
	"ridehooks/internal/platform/repositories"
)

// The worker is the cron-style external trigger for deployments without an
// HTTP scheduler: one bounded dispatcher batch per tick, nothing in between.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		stdlog.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	endpointRepo := repositories.NewEndpointRepository(db)
	deliveryRepo := repositories.NewDeliveryRepository(db)
	scheduler := webhooks.NewScheduler(cfg.Webhooks.BackoffBase, cfg.Webhooks.BackoffCap)
	dispatcher := webhooks.NewDispatcher(deliveryRepo, endpointRepo, scheduler, cfg.Webhooks.WorkerCount)

	interval := cfg.Webhooks.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}

	log.Info().Dur("interval", interval).Msg("webhook worker started")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			log.Info().Msg("webhook worker stopping")
			return
		case <-ticker.C:
			result, err := dispatcher.Run(context.Background(), cfg.Webhooks.BatchSize)
			if err != nil {
				log.Error().Err(err).Msg("dispatch run failed")
				continue
			}
			if result.Processed > 0 {
				log.Info().
					Int("processed", result.Processed).
					Int("succeeded", result.Succeeded).
					Int("failed", result.Failed).
					Int("retrying", result.Retrying).
					Msg("dispatch run complete")
			}
		}
	}
}
