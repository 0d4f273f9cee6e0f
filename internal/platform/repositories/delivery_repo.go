package repositories

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"ridehooks/internal/platform/models"
)

type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

const deliveryColumns = `id, endpoint_id, event_type, payload, status, attempt_count, max_retries, timeout_seconds, next_attempt_at, last_http_status, last_error, created_at, updated_at`

func (r *DeliveryRepository) Create(delivery *models.Delivery) error {
	if delivery.ID == "" {
		delivery.ID = "dlv_" + uuid.New().String()
	}
	now := time.Now().Unix()
	delivery.CreatedAt = now
	delivery.UpdatedAt = now
	if delivery.Status == "" {
		delivery.Status = models.DeliveryPending
	}

	query := `
		INSERT INTO deliveries (` + deliveryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		delivery.ID,
		delivery.EndpointID,
		delivery.EventType,
		delivery.Payload,
		string(delivery.Status),
		delivery.AttemptCount,
		delivery.MaxRetries,
		delivery.TimeoutSeconds,
		delivery.NextAttemptAt,
		delivery.LastHTTPStatus,
		delivery.LastError,
		delivery.CreatedAt,
		delivery.UpdatedAt,
	)
	return err
}

func (r *DeliveryRepository) GetByID(id string) (*models.Delivery, error) {
	row := r.db.QueryRow(`SELECT `+deliveryColumns+` FROM deliveries WHERE id = ?`, id)
	delivery, err := scanDelivery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return delivery, err
}

// ClaimDue atomically claims up to limit due deliveries. Each candidate row is
// transitioned to in_flight by a conditional update; a row whose status changed
// between the select and the update loses the compare-and-swap and is skipped,
// so two overlapping dispatcher runs never claim the same delivery.
func (r *DeliveryRepository) ClaimDue(limit int, now int64) ([]*models.Delivery, error) {
	query := `
		SELECT ` + deliveryColumns + ` FROM deliveries
		WHERE status IN (?, ?) AND next_attempt_at <= ?
		ORDER BY next_attempt_at ASC
		LIMIT ?
	`
	rows, err := r.db.Query(query, string(models.DeliveryPending), string(models.DeliveryRetryable), now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*models.Delivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, delivery)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var claimed []*models.Delivery
	for _, delivery := range candidates {
		res, err := r.db.Exec(`
			UPDATE deliveries SET status = ?, updated_at = ?
			WHERE id = ? AND status IN (?, ?) AND next_attempt_at <= ?
		`, string(models.DeliveryInFlight), now, delivery.ID, string(models.DeliveryPending), string(models.DeliveryRetryable), now)
		if err != nil {
			return claimed, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return claimed, err
		}
		if n == 0 {
			// lost the race to a concurrent claimer
			continue
		}
		delivery.Status = models.DeliveryInFlight
		delivery.UpdatedAt = now
		claimed = append(claimed, delivery)
	}
	return claimed, nil
}

func (r *DeliveryRepository) Update(delivery *models.Delivery) error {
	delivery.UpdatedAt = time.Now().Unix()
	query := `
		UPDATE deliveries
		SET status = ?, attempt_count = ?, next_attempt_at = ?, last_http_status = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(query,
		string(delivery.Status),
		delivery.AttemptCount,
		delivery.NextAttemptAt,
		delivery.LastHTTPStatus,
		delivery.LastError,
		delivery.UpdatedAt,
		delivery.ID,
	)
	return err
}

func (r *DeliveryRepository) ListByEndpoint(endpointID string, limit int) ([]*models.Delivery, error) {
	query := `
		SELECT ` + deliveryColumns + ` FROM deliveries
		WHERE endpoint_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := r.db.Query(query, endpointID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*models.Delivery
	for rows.Next() {
		delivery, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, delivery)
	}
	return deliveries, rows.Err()
}

// CancelPendingForEndpoint marks every non-terminal delivery for the endpoint
// exhausted. Used when the endpoint is deleted.
func (r *DeliveryRepository) CancelPendingForEndpoint(endpointID, reason string) error {
	_, err := r.db.Exec(`
		UPDATE deliveries SET status = ?, last_error = ?, updated_at = ?
		WHERE endpoint_id = ? AND status IN (?, ?)
	`, string(models.DeliveryExhausted), reason, time.Now().Unix(), endpointID, string(models.DeliveryPending), string(models.DeliveryRetryable))
	return err
}

func scanDelivery(s interface {
	Scan(dest ...interface{}) error
}) (*models.Delivery, error) {
	var d models.Delivery
	var status string
	var lastHTTPStatus sql.NullInt64
	var lastError sql.NullString

	err := s.Scan(
		&d.ID,
		&d.EndpointID,
		&d.EventType,
		&d.Payload,
		&status,
		&d.AttemptCount,
		&d.MaxRetries,
		&d.TimeoutSeconds,
		&d.NextAttemptAt,
		&lastHTTPStatus,
		&lastError,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = models.DeliveryStatus(status)
	if lastHTTPStatus.Valid {
		val := int(lastHTTPStatus.Int64)
		d.LastHTTPStatus = &val
	}
	if lastError.Valid {
		d.LastError = lastError.String
	}

	return &d, nil
}
