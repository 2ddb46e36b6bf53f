package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lumihe/slotbot/internal/slot"
)

const correlationColumns = `slot_id, label, expected_amount, source_room, source_message_id,
	target_room, target_message_id, submitter_id, reply_anchor_id, click_mode, created_at`

func scanCorrelation(row pgx.Row) (*slot.Correlation, error) {
	var c slot.Correlation
	err := row.Scan(&c.SlotID, &c.Label, &c.ExpectedAmount, &c.SourceRoom, &c.SourceMessageID,
		&c.TargetRoom, &c.TargetMessageID, &c.SubmitterID, &c.ReplyAnchorID, &c.ClickMode, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, slot.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// PutCorrelation inserts or replaces the live correlation for a slot.
func (db *DB) PutCorrelation(ctx context.Context, c *slot.Correlation) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO correlations (`+correlationColumns+`)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
         ON CONFLICT (slot_id) DO UPDATE SET
            label = EXCLUDED.label,
            expected_amount = EXCLUDED.expected_amount,
            source_room = EXCLUDED.source_room,
            source_message_id = EXCLUDED.source_message_id,
            target_room = EXCLUDED.target_room,
            target_message_id = EXCLUDED.target_message_id,
            submitter_id = EXCLUDED.submitter_id,
            reply_anchor_id = EXCLUDED.reply_anchor_id,
            click_mode = EXCLUDED.click_mode,
            created_at = EXCLUDED.created_at`,
		c.SlotID, c.Label, c.ExpectedAmount, c.SourceRoom, c.SourceMessageID,
		c.TargetRoom, c.TargetMessageID, c.SubmitterID, c.ReplyAnchorID, c.ClickMode, c.CreatedAt)
	return err
}

func (db *DB) CorrelationBySlot(ctx context.Context, slotID string) (*slot.Correlation, error) {
	return scanCorrelation(db.pool.QueryRow(ctx,
		`SELECT `+correlationColumns+` FROM correlations WHERE slot_id = $1`, slotID))
}

func (db *DB) CorrelationByTargetMessage(ctx context.Context, room, messageID string) (*slot.Correlation, error) {
	return scanCorrelation(db.pool.QueryRow(ctx,
		`SELECT `+correlationColumns+` FROM correlations
         WHERE target_room = $1 AND target_message_id = $2`, room, messageID))
}

func (db *DB) CorrelationByAmount(ctx context.Context, amount int) (*slot.Correlation, error) {
	return scanCorrelation(db.pool.QueryRow(ctx,
		`SELECT `+correlationColumns+` FROM correlations
         WHERE expected_amount = $1
         ORDER BY created_at DESC LIMIT 1`, amount))
}

func (db *DB) CorrelationByLabel(ctx context.Context, label int) (*slot.Correlation, error) {
	return scanCorrelation(db.pool.QueryRow(ctx,
		`SELECT `+correlationColumns+` FROM correlations
         WHERE label = $1
         ORDER BY created_at DESC LIMIT 1`, label))
}

func (db *DB) LatestCorrelation(ctx context.Context) (*slot.Correlation, error) {
	return scanCorrelation(db.pool.QueryRow(ctx,
		`SELECT `+correlationColumns+` FROM correlations
         ORDER BY created_at DESC LIMIT 1`))
}

func (db *DB) DeleteCorrelationsByRoom(ctx context.Context, room string) error {
	_, err := db.pool.Exec(ctx,
		`DELETE FROM correlations WHERE target_room = $1`, room)
	return err
}
