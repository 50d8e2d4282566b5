package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fieldbooking/internal/domain"
	"fieldbooking/internal/models"
)

const paymentColumns = `id, booking_id, method, provider, amount, fee, total, status, external_ref,
	expires_at, created_by, paid_by, paid_at, failed_at, refunded_by, refunded_at, created_at, updated_at`

func scanPayment(rs rowScanner) (*models.Payment, error) {
	var p models.Payment
	var method, status string
	var expiresAt, paidAt, failedAt, refundedAt sql.NullTime
	var paidBy, refundedBy sql.NullInt64

	if err := rs.Scan(
		&p.ID, &p.BookingID, &method, &p.Provider, &p.Amount, &p.Fee, &p.Total, &status, &p.ExternalRef,
		&expiresAt, &p.CreatedBy, &paidBy, &paidAt, &failedAt, &refundedBy, &refundedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Method = models.PaymentMethod(method)
	p.Status = models.PaymentStatus(status)
	p.ExpiresAt = timePtr(expiresAt)
	p.PaidBy, p.PaidAt = int64Ptr(paidBy), timePtr(paidAt)
	p.FailedAt = timePtr(failedAt)
	p.RefundedBy, p.RefundedAt = int64Ptr(refundedBy), timePtr(refundedAt)
	return &p, nil
}

func listPayments(ctx context.Context, q querier, bookingID int64) ([]models.Payment, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func getPayment(ctx context.Context, q querier, id int64) (*models.Payment, error) {
	p, err := scanPayment(q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %d: %w", id, err)
	}
	return p, nil
}

// ListPayments returns the payment attempts of a booking in creation order.
func (db *DB) ListPayments(ctx context.Context, bookingID int64) ([]models.Payment, error) {
	return listPayments(ctx, db.DB, bookingID)
}

// GetPayment returns a payment by id.
func (db *DB) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	return getPayment(ctx, db.DB, id)
}

func (t *storeTx) ListPayments(ctx context.Context, bookingID int64) ([]models.Payment, error) {
	return listPayments(ctx, t.tx, bookingID)
}

func (t *storeTx) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	return getPayment(ctx, t.tx, id)
}

func (t *storeTx) InsertPayment(ctx context.Context, p *models.Payment) error {
	if p == nil {
		return fmt.Errorf("payment is nil")
	}

	res, err := t.tx.ExecContext(ctx, `INSERT INTO payments (
			booking_id, method, provider, amount, fee, total, status, external_ref,
			expires_at, created_by, paid_by, paid_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.BookingID, string(p.Method), p.Provider, p.Amount, p.Fee, p.Total, string(p.Status), p.ExternalRef,
		nullTime(p.ExpiresAt), p.CreatedBy, nullInt64(p.PaidBy), nullTime(p.PaidAt), p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert payment id: %w", err)
	}
	p.ID = id
	return nil
}

func (t *storeTx) UpdatePaymentStatus(ctx context.Context, id int64, expected models.PaymentStatus, change domain.PaymentChange) (*models.Payment, error) {
	at := change.At.UTC()
	var query string
	var args []any

	switch change.To {
	case models.PaymentPaid:
		query = `UPDATE payments SET status = ?, paid_by = ?, paid_at = ?, updated_at = ? WHERE id = ? AND status = ?`
		args = []any{string(change.To), nullInt64(change.ActorID), at, at, id, string(expected)}
	case models.PaymentFailed:
		query = `UPDATE payments SET status = ?, failed_at = ?, updated_at = ? WHERE id = ? AND status = ?`
		args = []any{string(change.To), at, at, id, string(expected)}
	case models.PaymentRefunded:
		query = `UPDATE payments SET status = ?, refunded_by = ?, refunded_at = ?, updated_at = ? WHERE id = ? AND status = ?`
		args = []any{string(change.To), nullInt64(change.ActorID), at, at, id, string(expected)}
	default:
		return nil, fmt.Errorf("unsupported payment status %q", change.To)
	}

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update payment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update payment %d: %w", id, err)
	}
	if n == 0 {
		if _, err := getPayment(ctx, t.tx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("payment %d not %s: %w", id, expected, domain.ErrStaleState)
	}
	return getPayment(ctx, t.tx, id)
}
