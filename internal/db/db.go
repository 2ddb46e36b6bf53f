package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// RunMigrations runs database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS slots (
			id UUID PRIMARY KEY,
			label INT NOT NULL,
			photo_url TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'open',
			creation_seq BIGSERIAL,
			queue_position BIGINT NOT NULL DEFAULT 0,
			affinity_room TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_slots_status ON slots(status);

		CREATE TABLE IF NOT EXISTS correlations (
			slot_id UUID PRIMARY KEY REFERENCES slots(id) ON DELETE CASCADE,
			label INT NOT NULL,
			expected_amount INT NOT NULL,
			source_room TEXT NOT NULL,
			source_message_id TEXT NOT NULL,
			target_room TEXT NOT NULL,
			target_message_id TEXT NOT NULL,
			submitter_id TEXT NOT NULL,
			reply_anchor_id TEXT NOT NULL DEFAULT '',
			click_mode BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_correlations_target
			ON correlations(target_room, target_message_id);

		CREATE TABLE IF NOT EXISTS approvals (
			id UUID PRIMARY KEY,
			slot_id UUID NOT NULL,
			proposed_amount INT NOT NULL,
			responder_id TEXT NOT NULL,
			responder_name TEXT NOT NULL,
			anchor_message_id TEXT NOT NULL,
			reply_anchor_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS intake_rooms (
			room_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS fulfillment_rooms (
			room_id TEXT PRIMARY KEY,
			percentage INT NOT NULL DEFAULT 100,
			click_mode BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS operators (
			room_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			added_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (room_id, user_id)
		);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}
