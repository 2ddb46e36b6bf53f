package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// Room registration and runtime toggles. DB satisfies slot.Settings.

func (db *DB) AddIntakeRoom(ctx context.Context, roomID string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO intake_rooms (room_id) VALUES ($1) ON CONFLICT DO NOTHING`, roomID)
	return err
}

func (db *DB) IsIntakeRoom(ctx context.Context, roomID string) (bool, error) {
	var one int
	err := db.pool.QueryRow(ctx,
		`SELECT 1 FROM intake_rooms WHERE room_id = $1`, roomID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (db *DB) IntakeRooms(ctx context.Context) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT room_id FROM intake_rooms ORDER BY room_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (db *DB) AddFulfillmentRoom(ctx context.Context, roomID string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO fulfillment_rooms (room_id) VALUES ($1) ON CONFLICT DO NOTHING`, roomID)
	return err
}

// RemoveRoom drops a room from both registries.
func (db *DB) RemoveRoom(ctx context.Context, roomID string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM intake_rooms WHERE room_id = $1`, roomID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM fulfillment_rooms WHERE room_id = $1`, roomID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM operators WHERE room_id = $1`, roomID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (db *DB) IsFulfillmentRoom(ctx context.Context, roomID string) (bool, error) {
	var one int
	err := db.pool.QueryRow(ctx,
		`SELECT 1 FROM fulfillment_rooms WHERE room_id = $1`, roomID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (db *DB) FulfillmentRooms(ctx context.Context) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT room_id FROM fulfillment_rooms ORDER BY room_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (db *DB) SetRoomPercentage(ctx context.Context, roomID string, percentage int) error {
	ct, err := db.pool.Exec(ctx,
		`UPDATE fulfillment_rooms SET percentage = $2 WHERE room_id = $1`, roomID, percentage)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("room not registered")
	}
	return nil
}

func (db *DB) RoomPercentages(ctx context.Context) (map[string]int, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT room_id, percentage FROM fulfillment_rooms`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var id string
		var p int
		if err := rows.Scan(&id, &p); err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, rows.Err()
}

func (db *DB) SetClickMode(ctx context.Context, roomID string, enabled bool) error {
	ct, err := db.pool.Exec(ctx,
		`UPDATE fulfillment_rooms SET click_mode = $2 WHERE room_id = $1`, roomID, enabled)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.New("room not registered")
	}
	return nil
}

func (db *DB) ClickMode(ctx context.Context, roomID string) (bool, error) {
	var enabled bool
	err := db.pool.QueryRow(ctx,
		`SELECT click_mode FROM fulfillment_rooms WHERE room_id = $1`, roomID).Scan(&enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return enabled, err
}

func (db *DB) SetForwarding(ctx context.Context, enabled bool) error {
	value := "off"
	if enabled {
		value = "on"
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ('forwarding', $1)
         ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, value)
	return err
}

// ForwardingEnabled defaults to on when never configured.
func (db *DB) ForwardingEnabled(ctx context.Context) (bool, error) {
	var value string
	err := db.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = 'forwarding'`).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return value == "on", nil
}

// Operator grants are per fulfillment room: a user promoted in one
// room has no standing anywhere else.
func (db *DB) AddOperator(ctx context.Context, roomID, userID, addedBy string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO operators (room_id, user_id, added_by) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		roomID, userID, addedBy)
	return err
}

func (db *DB) RemoveOperator(ctx context.Context, roomID, userID string) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM operators WHERE room_id = $1 AND user_id = $2`, roomID, userID)
	return err
}

func (db *DB) IsOperator(ctx context.Context, roomID, userID string) (bool, error) {
	var one int
	err := db.pool.QueryRow(ctx,
		`SELECT 1 FROM operators WHERE room_id = $1 AND user_id = $2`, roomID, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
