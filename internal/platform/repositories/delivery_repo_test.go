package repositories

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"

	"ridehooks/internal/platform/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	// :memory: is per-connection; keep the pool on a single one.
	db.SetMaxOpenConns(1)

	query := `
	CREATE TABLE webhook_endpoints (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		url TEXT NOT NULL,
		events TEXT NOT NULL,
		secret TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		last_triggered_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE deliveries (
		id TEXT PRIMARY KEY,
		endpoint_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload BLOB NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempt_count INTEGER NOT NULL DEFAULT 0,
		max_retries INTEGER NOT NULL DEFAULT 5,
		timeout_seconds INTEGER NOT NULL DEFAULT 10,
		next_attempt_at INTEGER NOT NULL,
		last_http_status INTEGER,
		last_error TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}
	return db
}

func addPending(t *testing.T, repo *DeliveryRepository, dueAt int64) *models.Delivery {
	t.Helper()
	d := &models.Delivery{
		EndpointID:    "wep_1",
		EventType:     "ride.created",
		Payload:       []byte(`{}`),
		Status:        models.DeliveryPending,
		MaxRetries:    5,
		NextAttemptAt: dueAt,
	}
	if err := repo.Create(d); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return d
}

func TestDeliveryRepository_ClaimDue_OnlyDue(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewDeliveryRepository(db)

	now := time.Now().Unix()
	due := addPending(t, repo, now-10)
	addPending(t, repo, now+3600) // not yet due

	claimed, err := repo.ClaimDue(10, now)
	if err != nil {
		t.Fatalf("ClaimDue failed: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected 1 claimed delivery, got %d", len(claimed))
	}
	if claimed[0].ID != due.ID {
		t.Errorf("claimed wrong delivery %s", claimed[0].ID)
	}
	if claimed[0].Status != models.DeliveryInFlight {
		t.Errorf("claimed delivery status %s, want in_flight", claimed[0].Status)
	}
}

func TestDeliveryRepository_ClaimDue_Exclusive(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewDeliveryRepository(db)

	now := time.Now().Unix()
	total := 20
	for i := 0; i < total; i++ {
		addPending(t, repo, now-1)
	}

	// Two concurrent claimers must split the set with no overlap.
	var wg sync.WaitGroup
	results := make([][]*models.Delivery, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claimed, err := repo.ClaimDue(total, now)
			if err != nil {
				t.Errorf("claimer %d failed: %v", i, err)
				return
			}
			results[i] = claimed
		}(i)
	}
	wg.Wait()

	seen := make(map[string]int)
	for _, claimed := range results {
		for _, d := range claimed {
			seen[d.ID]++
		}
	}
	if len(seen) != total {
		t.Errorf("expected %d distinct claims across both runs, got %d", total, len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("delivery %s claimed %d times", id, count)
		}
	}

	// Nothing left to claim.
	leftover, err := repo.ClaimDue(total, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(leftover) != 0 {
		t.Errorf("expected empty third claim, got %d", len(leftover))
	}
}

func TestDeliveryRepository_ClaimDue_RetryableDue(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewDeliveryRepository(db)

	now := time.Now().Unix()
	d := addPending(t, repo, now-10)
	d.Status = models.DeliveryRetryable
	d.AttemptCount = 2
	if err := repo.Update(d); err != nil {
		t.Fatal(err)
	}

	claimed, err := repo.ClaimDue(10, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(claimed) != 1 || claimed[0].ID != d.ID {
		t.Fatalf("retryable due delivery not claimed: %d claimed", len(claimed))
	}
	if claimed[0].AttemptCount != 2 {
		t.Errorf("claim lost attempt_count, got %d", claimed[0].AttemptCount)
	}
}

func TestDeliveryRepository_ClaimDue_SkipsTerminal(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewDeliveryRepository(db)

	now := time.Now().Unix()
	for _, status := range []models.DeliveryStatus{models.DeliverySuccess, models.DeliveryExhausted, models.DeliveryInFlight} {
		d := addPending(t, repo, now-10)
		d.Status = status
		if err := repo.Update(d); err != nil {
			t.Fatal(err)
		}
	}

	claimed, err := repo.ClaimDue(10, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(claimed) != 0 {
		t.Errorf("claimed %d terminal/in-flight deliveries", len(claimed))
	}
}

func TestDeliveryRepository_ListByEndpoint_MostRecentFirst(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	repo := NewDeliveryRepository(db)

	// Insert with explicit created_at to get a stable order.
	for i := 0; i < 3; i++ {
		d := &models.Delivery{
			ID:            "dlv_" + string(rune('a'+i)),
			EndpointID:    "wep_1",
			EventType:     "ride.created",
			Payload:       []byte(`{}`),
			Status:        models.DeliverySuccess,
			NextAttemptAt: 0,
		}
		if err := repo.Create(d); err != nil {
			t.Fatal(err)
		}
		if _, err := db.Exec(`UPDATE deliveries SET created_at = ? WHERE id = ?`, int64(1000+i), d.ID); err != nil {
			t.Fatal(err)
		}
	}

	list, err := repo.ListByEndpoint("wep_1", 2)
	if err != nil {
		t.Fatalf("ListByEndpoint failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(list))
	}
	if list[0].ID != "dlv_c" || list[1].ID != "dlv_b" {
		t.Errorf("unexpected order: %s, %s", list[0].ID, list[1].ID)
	}
}

func TestDeliveryRepository_Update_StorageError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock setup failed: %v", err)
	}
	defer db.Close()

	repo := NewDeliveryRepository(db)

	mock.ExpectExec("UPDATE deliveries").WillReturnError(sql.ErrConnDone)

	d := &models.Delivery{ID: "dlv_1", Status: models.DeliverySuccess}
	if err := repo.Update(d); err == nil {
		t.Error("expected storage error to propagate")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
