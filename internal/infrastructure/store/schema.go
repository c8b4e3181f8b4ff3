package store

import (
	"context"
	"database/sql"
	"fmt"
)

const orderSeqLock = "order_seq"

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		price NUMERIC(12,2) NOT NULL,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at TIMESTAMPTZ NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inventory_movements (
		id BIGSERIAL PRIMARY KEY,
		item_id BIGINT NOT NULL REFERENCES items(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		movement_type CHAR(1) NOT NULL CHECK (movement_type IN ('T', 'W')),
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at TIMESTAMPTZ NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_movements_item ON inventory_movements (item_id, is_deleted)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_no VARCHAR(32) PRIMARY KEY,
		order_seq BIGINT NOT NULL UNIQUE,
		item_id BIGINT NOT NULL REFERENCES items(id),
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		price NUMERIC(12,2) NOT NULL,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at TIMESTAMPTZ NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_item ON orders (item_id, is_deleted)`,
	`CREATE TABLE IF NOT EXISTS ledger_events (
		seq BIGSERIAL PRIMARY KEY,
		event_id VARCHAR(36) NOT NULL UNIQUE,
		aggregate_type VARCHAR(32) NOT NULL,
		aggregate_id VARCHAR(64) NOT NULL,
		event_type VARCHAR(64) NOT NULL,
		data JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_events_aggregate ON ledger_events (aggregate_type, aggregate_id, seq)`,
	`CREATE TABLE IF NOT EXISTS ledger_locks (name VARCHAR(32) PRIMARY KEY)`,
	`INSERT INTO ledger_locks (name) VALUES ('` + orderSeqLock + `') ON CONFLICT DO NOTHING`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS inventory_movements (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		item_id BIGINT NOT NULL,
		quantity INT NOT NULL,
		movement_type CHAR(1) NOT NULL,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_movements_item (item_id, is_deleted),
		CONSTRAINT fk_movements_item FOREIGN KEY (item_id) REFERENCES items(id),
		CONSTRAINT chk_movements_qty CHECK (quantity > 0),
		CONSTRAINT chk_movements_type CHECK (movement_type IN ('T', 'W'))
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_no VARCHAR(32) PRIMARY KEY,
		order_seq BIGINT NOT NULL UNIQUE,
		item_id BIGINT NOT NULL,
		quantity INT NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		INDEX idx_orders_item (item_id, is_deleted),
		CONSTRAINT fk_orders_item FOREIGN KEY (item_id) REFERENCES items(id),
		CONSTRAINT chk_orders_qty CHECK (quantity > 0)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS ledger_events (
		seq BIGINT AUTO_INCREMENT PRIMARY KEY,
		event_id VARCHAR(36) NOT NULL UNIQUE,
		aggregate_type VARCHAR(32) NOT NULL,
		aggregate_id VARCHAR(64) NOT NULL,
		event_type VARCHAR(64) NOT NULL,
		data JSON NOT NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_ledger_events_aggregate (aggregate_type, aggregate_id, seq)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS ledger_locks (name VARCHAR(32) PRIMARY KEY) ENGINE=InnoDB`,
	`INSERT IGNORE INTO ledger_locks (name) VALUES ('` + orderSeqLock + `')`,
}

// Migrate creates the ledger tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	stmts := postgresSchema
	if d == MySQL {
		stmts = mysqlSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
