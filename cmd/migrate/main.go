package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	"ridehooks/internal/platform/config"
	"ridehooks/internal/platform/database"
)

const schemaUp = `
CREATE TABLE IF NOT EXISTS webhook_endpoints (
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

CREATE INDEX IF NOT EXISTS idx_webhook_endpoints_owner ON webhook_endpoints(owner_id);

CREATE TABLE IF NOT EXISTS deliveries (
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

CREATE INDEX IF NOT EXISTS idx_deliveries_due ON deliveries(status, next_attempt_at);
CREATE INDEX IF NOT EXISTS idx_deliveries_endpoint ON deliveries(endpoint_id, created_at);
`

const schemaDown = `
DROP INDEX IF EXISTS idx_deliveries_endpoint;
DROP INDEX IF EXISTS idx_deliveries_due;
DROP TABLE IF EXISTS deliveries;
DROP INDEX IF EXISTS idx_webhook_endpoints_owner;
DROP TABLE IF EXISTS webhook_endpoints;
`

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migrate(db, *direction); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Migration completed successfully")
}

func migrate(db *sql.DB, direction string) error {
	switch direction {
	case "up":
		_, err := db.Exec(schemaUp)
		return err
	case "down":
		_, err := db.Exec(schemaDown)
		return err
	default:
		return fmt.Errorf("invalid direction %q: must be 'up' or 'down'", direction)
	}
}
