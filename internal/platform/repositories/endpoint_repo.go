package repositories

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"ridehooks/internal/platform/models"
)

type EndpointRepository struct {
	db *sql.DB
}

func NewEndpointRepository(db *sql.DB) *EndpointRepository {
	return &EndpointRepository{db: db}
}

func (r *EndpointRepository) Create(endpoint *models.WebhookEndpoint) error {
	if endpoint.ID == "" {
		endpoint.ID = "wep_" + uuid.New().String()
	}
	now := time.Now().Unix()
	endpoint.CreatedAt = now
	endpoint.UpdatedAt = now

	eventsJSON, err := json.Marshal(endpoint.Events)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhook_endpoints (id, owner_id, url, events, secret, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query, endpoint.ID, endpoint.OwnerID, endpoint.URL, string(eventsJSON), endpoint.Secret, endpoint.Active, endpoint.CreatedAt, endpoint.UpdatedAt)
	return err
}

func (r *EndpointRepository) GetByID(id string) (*models.WebhookEndpoint, error) {
	query := `SELECT id, owner_id, url, events, secret, active, last_triggered_at, created_at, updated_at FROM webhook_endpoints WHERE id = ?`
	row := r.db.QueryRow(query, id)

	endpoint, err := scanEndpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return endpoint, err
}

func (r *EndpointRepository) ListByOwner(ownerID string) ([]*models.WebhookEndpoint, error) {
	query := `SELECT id, owner_id, url, events, secret, active, last_triggered_at, created_at, updated_at FROM webhook_endpoints WHERE owner_id = ? ORDER BY created_at DESC`
	rows, err := r.db.Query(query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []*models.WebhookEndpoint
	for rows.Next() {
		endpoint, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, endpoint)
	}
	return endpoints, rows.Err()
}

// ListActiveByOwnerEvent returns the owner's active endpoints subscribed to the
// given event type. Events are stored as a JSON array, so matching happens here
// rather than in SQL.
func (r *EndpointRepository) ListActiveByOwnerEvent(ownerID, eventType string) ([]*models.WebhookEndpoint, error) {
	query := `SELECT id, owner_id, url, events, secret, active, last_triggered_at, created_at, updated_at FROM webhook_endpoints WHERE owner_id = ? AND active = 1`
	rows, err := r.db.Query(query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matched []*models.WebhookEndpoint
	for rows.Next() {
		endpoint, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		for _, e := range endpoint.Events {
			if e == eventType {
				matched = append(matched, endpoint)
				break
			}
		}
	}
	return matched, rows.Err()
}

func (r *EndpointRepository) SetActive(id string, active bool) error {
	_, err := r.db.Exec(`UPDATE webhook_endpoints SET active = ?, updated_at = ? WHERE id = ?`, active, time.Now().Unix(), id)
	return err
}

func (r *EndpointRepository) UpdateLastTriggered(id string, timestamp int64) error {
	_, err := r.db.Exec(`UPDATE webhook_endpoints SET last_triggered_at = ? WHERE id = ?`, timestamp, id)
	return err
}

func (r *EndpointRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM webhook_endpoints WHERE id = ?`, id)
	return err
}

func scanEndpoint(s interface {
	Scan(dest ...interface{}) error
}) (*models.WebhookEndpoint, error) {
	var e models.WebhookEndpoint
	var eventsStr string
	var lastTriggeredAt sql.NullInt64

	err := s.Scan(&e.ID, &e.OwnerID, &e.URL, &eventsStr, &e.Secret, &e.Active, &lastTriggeredAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastTriggeredAt.Valid {
		val := lastTriggeredAt.Int64
		e.LastTriggeredAt = &val
	}

	json.Unmarshal([]byte(eventsStr), &e.Events)

	return &e, nil
}
