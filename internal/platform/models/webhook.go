package models

type WebhookEndpoint struct {
	ID              string   `json:"id"`
	OwnerID         string   `json:"owner_id"`
	URL             string   `json:"url"`
	Events          []string `json:"events"` // JSON array in DB
	Secret          string   `json:"secret"`
	Active          bool     `json:"active"`
	LastTriggeredAt *int64   `json:"last_triggered_at,omitempty"`
	CreatedAt       int64    `json:"created_at"`
	UpdatedAt       int64    `json:"updated_at"`
}

type WebhookEvent struct {
	ID        string      `json:"id"`
	Event     string      `json:"event"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data"`
}
