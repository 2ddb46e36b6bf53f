package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/lumihe/slotbot/internal/slot"
)

const approvalColumns = `id, slot_id, proposed_amount, responder_id, responder_name,
	anchor_message_id, reply_anchor_id, created_at`

func scanApproval(row pgx.Row) (*slot.PendingApproval, error) {
	var p slot.PendingApproval
	err := row.Scan(&p.ID, &p.SlotID, &p.ProposedAmount, &p.ResponderID, &p.ResponderName,
		&p.AnchorMessageID, &p.ReplyAnchorID, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, slot.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (db *DB) CreateApproval(ctx context.Context, p *slot.PendingApproval) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO approvals (`+approvalColumns+`)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.SlotID, p.ProposedAmount, p.ResponderID, p.ResponderName,
		p.AnchorMessageID, p.ReplyAnchorID, p.CreatedAt)
	return err
}

func (db *DB) Approvals(ctx context.Context) ([]slot.PendingApproval, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+approvalColumns+` FROM approvals ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []slot.PendingApproval
	for rows.Next() {
		p, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (db *DB) LatestApproval(ctx context.Context) (*slot.PendingApproval, error) {
	return scanApproval(db.pool.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM approvals
         ORDER BY created_at DESC LIMIT 1`))
}

// TakeApproval removes and returns the approval in one statement so
// only one of any set of racing approvers gets it back.
func (db *DB) TakeApproval(ctx context.Context, id string) (*slot.PendingApproval, error) {
	return scanApproval(db.pool.QueryRow(ctx,
		`DELETE FROM approvals WHERE id = $1 RETURNING `+approvalColumns, id))
}
