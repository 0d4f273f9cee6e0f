package webhooks

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"

	"ridehooks/internal/platform/models"
	"ridehooks/internal/platform/repositories"
)

var (
	// ErrNotFound covers both missing endpoints and endpoints owned by someone
	// else, so existence is never leaked across owners.
	ErrNotFound = errors.New("webhook endpoint not found")

	ErrValidation = errors.New("validation failed")
)

// Registry owns the webhook endpoint lifecycle: registration with URL and
// event validation, secret generation, listing, deactivation and deletion.
type Registry struct {
	endpoints  *repositories.EndpointRepository
	deliveries *repositories.DeliveryRepository
}

func NewRegistry(endpoints *repositories.EndpointRepository, deliveries *repositories.DeliveryRepository) *Registry {
	return &Registry{endpoints: endpoints, deliveries: deliveries}
}

func (r *Registry) Register(ownerID, rawURL string, events []string) (*models.WebhookEndpoint, error) {
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}
	if err := validateEvents(events); err != nil {
		return nil, err
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}

	endpoint := &models.WebhookEndpoint{
		OwnerID: ownerID,
		URL:     rawURL,
		Events:  events,
		Secret:  secret,
		Active:  true,
	}

	if err := r.endpoints.Create(endpoint); err != nil {
		return nil, err
	}
	return endpoint, nil
}

// List returns the caller's endpoints. The secret is included: the owner needs
// it to verify signatures.
func (r *Registry) List(ownerID string) ([]*models.WebhookEndpoint, error) {
	return r.endpoints.ListByOwner(ownerID)
}

func (r *Registry) Deactivate(ownerID, id string) error {
	if _, err := r.owned(ownerID, id); err != nil {
		return err
	}
	return r.endpoints.SetActive(id, false)
}

// Delete removes the endpoint and cancels its pending deliveries: a deleted
// endpoint must never be attempted again.
func (r *Registry) Delete(ownerID, id string) error {
	if _, err := r.owned(ownerID, id); err != nil {
		return err
	}
	if err := r.deliveries.CancelPendingForEndpoint(id, "endpoint deleted"); err != nil {
		return err
	}
	return r.endpoints.Delete(id)
}

// ListDeliveries is the read-only attempt history for one of the caller's
// endpoints, most recent first.
func (r *Registry) ListDeliveries(ownerID, endpointID string, limit int) ([]*models.Delivery, error) {
	if _, err := r.owned(ownerID, endpointID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return r.deliveries.ListByEndpoint(endpointID, limit)
}

func (r *Registry) owned(ownerID, id string) (*models.WebhookEndpoint, error) {
	endpoint, err := r.endpoints.GetByID(id)
	if err != nil {
		return nil, err
	}
	if endpoint == nil || endpoint.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return endpoint, nil
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) URL", ErrValidation)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url must start with http:// or https://", ErrValidation)
	}
	return nil
}

func validateEvents(events []string) error {
	if len(events) == 0 {
		return fmt.Errorf("%w: at least one event is required", ErrValidation)
	}
	for _, e := range events {
		if !ValidEvent(e) {
			return fmt.Errorf("%w: unknown event %q", ErrValidation, e)
		}
	}
	return nil
}

// generateSecret produces the 256-bit signing secret, hex encoded. It is
// returned to the owner once, at creation.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}
