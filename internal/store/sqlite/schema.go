package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates the tables used by SQLiteStore. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	id               TEXT PRIMARY KEY,
	order_number     TEXT NOT NULL UNIQUE,
	user_id          TEXT NOT NULL,
	items            TEXT NOT NULL,
	shipping_address TEXT NOT NULL,
	payment_method   TEXT NOT NULL DEFAULT 'cod',
	shipping_price   REAL NOT NULL DEFAULT 0,
	total_price      REAL NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	delivered_at     DATETIME,
	created_at       DATETIME NOT NULL,
	updated_at       DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS appointments (
	id             TEXT PRIMARY KEY,
	farmer_name    TEXT NOT NULL,
	farmer_user_id TEXT,
	expert_user_id TEXT NOT NULL,
	crops          TEXT NOT NULL,
	issue          TEXT NOT NULL,
	location       TEXT NOT NULL DEFAULT '',
	languages      TEXT NOT NULL,
	preferred_time TEXT,
	status         TEXT NOT NULL DEFAULT 'pending',
	call_status    TEXT NOT NULL DEFAULT 'not_requested',
	room_name      TEXT,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_appointments_expert ON appointments(expert_user_id, created_at DESC);
`

// ApplySchema runs Schema against db. It matches the setup signature of NewWithSetup.
func ApplySchema(db *sql.DB) error {
	if _, err := db.ExecContext(context.Background(), Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
