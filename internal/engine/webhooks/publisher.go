package webhooks

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"ridehooks/internal/platform/config"
	"ridehooks/internal/platform/models"
	"ridehooks/internal/platform/repositories"
)

// Publisher is the entry point for the domain services that emit events. It
// snapshots the payload once and enqueues one pending delivery per matching
// active endpoint. Delivery itself happens later, in the dispatcher.
type Publisher struct {
	endpoints  *repositories.EndpointRepository
	deliveries *repositories.DeliveryRepository
	cfg        config.WebhooksConfig
}

func NewPublisher(endpoints *repositories.EndpointRepository, deliveries *repositories.DeliveryRepository, cfg config.WebhooksConfig) *Publisher {
	return &Publisher{endpoints: endpoints, deliveries: deliveries, cfg: cfg}
}

func (p *Publisher) Emit(ownerID, eventType string, data interface{}) error {
	if !ValidEvent(eventType) {
		return fmt.Errorf("%w: unknown event %q", ErrValidation, eventType)
	}

	endpoints, err := p.endpoints.ListActiveByOwnerEvent(ownerID, eventType)
	if err != nil {
		return err
	}
	if len(endpoints) == 0 {
		return nil
	}

	now := time.Now()
	event := &models.WebhookEvent{
		ID:        fmt.Sprintf("evt_%d", now.UnixNano()),
		Event:     eventType,
		Timestamp: now.Unix(),
		Data:      data,
	}

	// The payload is marshalled exactly once; every delivery for this event
	// carries the same bytes, so sender and receiver sign identical input.
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	for _, endpoint := range endpoints {
		delivery := &models.Delivery{
			EndpointID:     endpoint.ID,
			EventType:      eventType,
			Payload:        payload,
			Status:         models.DeliveryPending,
			MaxRetries:     p.cfg.MaxRetries,
			TimeoutSeconds: p.cfg.TimeoutSeconds,
			NextAttemptAt:  now.Unix(),
		}
		if err := p.deliveries.Create(delivery); err != nil {
			log.Error().Err(err).Str("endpoint_id", endpoint.ID).Str("event", eventType).Msg("failed to enqueue delivery")
			continue
		}
	}

	log.Debug().Str("event", eventType).Int("endpoint_count", len(endpoints)).Msg("event enqueued for delivery")
	return nil
}
