package models

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryInFlight  DeliveryStatus = "in_flight"
	DeliverySuccess   DeliveryStatus = "success"
	DeliveryRetryable DeliveryStatus = "failed_retryable"
	DeliveryExhausted DeliveryStatus = "exhausted"
)

// Terminal reports whether no further attempts will ever be scheduled.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliverySuccess || s == DeliveryExhausted
}

type Delivery struct {
	ID             string         `json:"id"`
	EndpointID     string         `json:"endpoint_id"`
	EventType      string         `json:"event_type"`
	Payload        []byte         `json:"payload"` // immutable JSON snapshot taken at enqueue time
	Status         DeliveryStatus `json:"status"`
	AttemptCount   int            `json:"attempt_count"`
	MaxRetries     int            `json:"max_retries"`
	TimeoutSeconds int            `json:"timeout_seconds"`
	NextAttemptAt  int64          `json:"next_attempt_at"`
	LastHTTPStatus *int           `json:"last_http_status,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
	CreatedAt      int64          `json:"created_at"`
	UpdatedAt      int64          `json:"updated_at"`
}
