package database

import (
	"context"
	"fmt"

	"fieldbooking/internal/models"
)

func (t *storeTx) AppendTransitionRecord(ctx context.Context, rec *models.TransitionRecord) error {
	if rec == nil {
		return fmt.Errorf("transition record is nil")
	}

	res, err := t.tx.ExecContext(ctx, `INSERT INTO booking_transitions (
			booking_id, action, from_status, to_status, actor_id, reason, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.BookingID, string(rec.Action), string(rec.FromStatus), string(rec.ToStatus),
		rec.ActorID, rec.Reason, rec.Notes, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append transition record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("append transition record id: %w", err)
	}
	rec.ID = id
	return nil
}

// ListTransitions returns the history of a booking in append order.
func (db *DB) ListTransitions(ctx context.Context, bookingID int64) ([]models.TransitionRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, booking_id, action, from_status, to_status, actor_id, reason, notes, created_at
		FROM booking_transitions
		WHERE booking_id = ?
		ORDER BY id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var records []models.TransitionRecord
	for rows.Next() {
		var r models.TransitionRecord
		var action, from, to string
		if err := rows.Scan(&r.ID, &r.BookingID, &action, &from, &to, &r.ActorID, &r.Reason, &r.Notes, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Action = models.Action(action)
		r.FromStatus = models.Status(from)
		r.ToStatus = models.Status(to)
		records = append(records, r)
	}
	return records, rows.Err()
}
