package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lumihe/slotbot/internal/slot"
)

func scanSlot(row pgx.Row) (*slot.Slot, error) {
	var s slot.Slot
	var status string
	err := row.Scan(&s.ID, &s.Label, &s.PhotoURL, &status, &s.CreationSeq, &s.QueuePos, &s.AffinityRoom, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, slot.ErrNotFound
		}
		return nil, err
	}
	s.Status = slot.Status(status)
	return &s, nil
}

const slotColumns = `id, label, photo_url, status, creation_seq, queue_position, affinity_room, created_at`

func (db *DB) CreateSlot(ctx context.Context, s *slot.Slot) error {
	return db.pool.QueryRow(ctx,
		`INSERT INTO slots (id, label, photo_url, status, affinity_room, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING creation_seq`,
		s.ID, s.Label, s.PhotoURL, string(s.Status), s.AffinityRoom, s.CreatedAt,
	).Scan(&s.CreationSeq)
}

func (db *DB) SlotsInCreationOrder(ctx context.Context) ([]slot.Slot, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+slotColumns+` FROM slots ORDER BY creation_seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []slot.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (db *DB) SlotByID(ctx context.Context, id string) (*slot.Slot, error) {
	return scanSlot(db.pool.QueryRow(ctx,
		`SELECT `+slotColumns+` FROM slots WHERE id = $1`, id))
}

// ClaimSlot advances the queue position and closes the slot only if it
// is still open and nobody moved it past pos first. The single guarded
// UPDATE is the check-and-set: of any set of racing claimers exactly
// one sees a row affected, and the winner's slot is already closed so
// no concurrent allocation can reselect it.
func (db *DB) ClaimSlot(ctx context.Context, id string, pos int64) error {
	ct, err := db.pool.Exec(ctx,
		`UPDATE slots SET queue_position = $2, status = 'closed'
         WHERE id = $1 AND status = 'open' AND queue_position < $2`,
		id, pos)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return slot.ErrConflict
	}
	return nil
}

func (db *DB) SetSlotStatus(ctx context.Context, id string, st slot.Status) error {
	ct, err := db.pool.Exec(ctx,
		`UPDATE slots SET status = $2 WHERE id = $1`, id, string(st))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return slot.ErrNotFound
	}
	return nil
}

func (db *DB) SetAffinityRoom(ctx context.Context, id, room string) error {
	ct, err := db.pool.Exec(ctx,
		`UPDATE slots SET affinity_room = $2 WHERE id = $1`, id, room)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return slot.ErrNotFound
	}
	return nil
}

func (db *DB) ResetQueuePositions(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `UPDATE slots SET queue_position = 0`)
	return err
}

func (db *DB) ReopenAllSlots(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `UPDATE slots SET status = 'open'`)
	return err
}

func (db *DB) DeleteSlotsByRoom(ctx context.Context, room string) (int, error) {
	ct, err := db.pool.Exec(ctx,
		`DELETE FROM slots WHERE affinity_room = $1`, room)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func (db *DB) DeleteSlotsByLabel(ctx context.Context, room string, label int) (int, error) {
	ct, err := db.pool.Exec(ctx,
		`DELETE FROM slots WHERE affinity_room = $1 AND label = $2`, room, label)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}
