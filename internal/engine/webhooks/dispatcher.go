package webhooks

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"ridehooks/internal/platform/models"
	"ridehooks/internal/platform/repositories"
)

const defaultTimeoutSeconds = 10

// Result aggregates one dispatcher invocation.
type Result struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Retrying  int `json:"retrying"`
}

// Dispatcher claims a bounded batch of due deliveries and sends signed HTTP
// requests to their endpoints. It has no internal timer; an external trigger
// (cron worker or the process endpoint) invokes Run.
type Dispatcher struct {
	deliveries *repositories.DeliveryRepository
	endpoints  *repositories.EndpointRepository
	scheduler  *Scheduler
	client     *http.Client
	workers    int
}

func NewDispatcher(deliveries *repositories.DeliveryRepository, endpoints *repositories.EndpointRepository, scheduler *Scheduler, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 10
	}
	return &Dispatcher{
		deliveries: deliveries,
		endpoints:  endpoints,
		scheduler:  scheduler,
		// Timeouts are per-request contexts; the client itself has none.
		client:  &http.Client{},
		workers: workers,
	}
}

// Run processes one batch and returns. Individual delivery failures never
// abort the batch; only a failure to claim work at all is returned as an
// error.
func (d *Dispatcher) Run(ctx context.Context, batchSize int) (Result, error) {
	now := time.Now()
	claimed, err := d.deliveries.ClaimDue(batchSize, now.Unix())
	if err != nil && len(claimed) == 0 {
		return Result{}, err
	}
	if err != nil {
		log.Error().Err(err).Msg("partial claim, processing what we got")
	}

	var mu sync.Mutex
	result := Result{Processed: len(claimed)}

	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	for _, delivery := range claimed {
		wg.Add(1)
		sem <- struct{}{}
		go func(delivery *models.Delivery) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := d.process(delivery)

			mu.Lock()
			switch outcome {
			case OutcomeSuccess:
				result.Succeeded++
			case OutcomeRetryable:
				if delivery.Status == models.DeliveryRetryable {
					result.Retrying++
				} else {
					result.Failed++
				}
			default:
				result.Failed++
			}
			mu.Unlock()
		}(delivery)
	}
	wg.Wait()

	return result, nil
}

func (d *Dispatcher) process(delivery *models.Delivery) Outcome {
	endpoint, err := d.endpoints.GetByID(delivery.EndpointID)
	if err != nil {
		log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("endpoint lookup failed")
		d.release(delivery)
		return OutcomePermanent
	}

	if endpoint == nil || !endpoint.Active {
		delivery.Status = models.DeliveryExhausted
		delivery.LastError = "endpoint inactive"
		if err := d.deliveries.Update(delivery); err != nil {
			log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("failed to persist delivery state")
		}
		return OutcomePermanent
	}

	status, body, sendErr := d.send(endpoint, delivery)
	outcome := d.scheduler.Apply(delivery, status, body, sendErr, time.Now())

	if err := d.deliveries.Update(delivery); err != nil {
		log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("failed to persist delivery state")
		return OutcomePermanent
	}

	if outcome == OutcomeSuccess {
		if err := d.endpoints.UpdateLastTriggered(endpoint.ID, time.Now().Unix()); err != nil {
			log.Warn().Err(err).Str("endpoint_id", endpoint.ID).Msg("failed to update last_triggered_at")
		}
	} else {
		log.Warn().
			Str("delivery_id", delivery.ID).
			Str("endpoint_id", endpoint.ID).
			Str("event", delivery.EventType).
			Int("attempt", delivery.AttemptCount).
			Int("status", status).
			Err(sendErr).
			Msg("webhook delivery attempt failed")
	}

	return outcome
}

// send performs one signed HTTP POST. The timeout context is per delivery and
// independent of the batch: cancelling one request must not affect siblings.
func (d *Dispatcher) send(endpoint *models.WebhookEndpoint, delivery *models.Delivery) (int, []byte, error) {
	timeout := time.Duration(delivery.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Ridehooks-Signature", Sign(endpoint.Secret, delivery.Payload))
	req.Header.Set("X-Ridehooks-Event", delivery.EventType)
	req.Header.Set("X-Ridehooks-Delivery", delivery.ID)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
	return resp.StatusCode, body, nil
}

// release puts a claimed delivery back to pending when processing could not
// even start, so the next invocation picks it up again.
func (d *Dispatcher) release(delivery *models.Delivery) {
	delivery.Status = models.DeliveryPending
	if err := d.deliveries.Update(delivery); err != nil {
		log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("failed to release claimed delivery")
	}
}
