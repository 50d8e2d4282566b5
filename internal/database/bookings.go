package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldbooking/internal/domain"
	"fieldbooking/internal/models"
)

const bookingColumns = `id, public_id, booking_number, field_id, booking_date, start_time, end_time,
	duration_minutes, base_amount, discount_amount, fee_amount, total_amount,
	status, payment_status, customer_id, notes, created_by,
	confirmed_by, confirmed_at, cancelled_by, cancelled_at, cancel_reason,
	rejected_by, rejected_at, reject_reason, completed_by, completed_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(rs rowScanner) (*models.Booking, error) {
	var b models.Booking
	var status, paymentStatus string
	var confirmedBy, cancelledBy, rejectedBy, completedBy sql.NullInt64
	var confirmedAt, cancelledAt, rejectedAt, completedAt sql.NullTime

	err := rs.Scan(
		&b.ID, &b.PublicID, &b.BookingNumber, &b.FieldID, &b.Date, &b.StartTime, &b.EndTime,
		&b.Duration, &b.BaseAmount, &b.DiscountAmount, &b.FeeAmount, &b.TotalAmount,
		&status, &paymentStatus, &b.CustomerID, &b.Notes, &b.CreatedBy,
		&confirmedBy, &confirmedAt, &cancelledBy, &cancelledAt, &b.CancelReason,
		&rejectedBy, &rejectedAt, &b.RejectReason, &completedBy, &completedAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Status, err = models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("booking %d: %w", b.ID, err)
	}
	b.PaymentStatus = models.PaymentStatus(paymentStatus)
	b.ConfirmedBy, b.ConfirmedAt = int64Ptr(confirmedBy), timePtr(confirmedAt)
	b.CancelledBy, b.CancelledAt = int64Ptr(cancelledBy), timePtr(cancelledAt)
	b.RejectedBy, b.RejectedAt = int64Ptr(rejectedBy), timePtr(rejectedAt)
	b.CompletedBy, b.CompletedAt = int64Ptr(completedBy), timePtr(completedAt)
	return &b, nil
}

func getBooking(ctx context.Context, q querier, id int64) (*models.Booking, error) {
	row := q.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return b, nil
}

func collectBookings(rows *sql.Rows) ([]models.Booking, error) {
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// GetBooking returns a booking by id.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return getBooking(ctx, db.DB, id)
}

// GetBookingByPublicID returns a booking by its shareable identifier.
func (db *DB) GetBookingByPublicID(ctx context.Context, publicID string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE public_id = ?`, publicID)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %s: %w", publicID, domain.ErrNotFound)
	}
	return b, err
}

// ListBookingsOnDate returns every booking of a field on a date, live or not.
func (db *DB) ListBookingsOnDate(ctx context.Context, fieldID int64, date string) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE field_id = ? AND booking_date = ?
		ORDER BY start_time, id`, fieldID, date)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

// SelectAutoCompletionCandidates lists confirmed bookings whose end has passed by
// at least grace. Dates and clocks are compared as zero-padded text in now's zone.
func (db *DB) SelectAutoCompletionCandidates(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]models.Booking, error) {
	cutoff := now.Add(-grace)
	cutoffDate := cutoff.Format(models.DateLayout)
	cutoffClock := cutoff.Format(models.ClockLayout)
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE status = ? AND completed_at IS NULL
		AND (booking_date < ? OR (booking_date = ? AND end_time <= ?))
		ORDER BY booking_date, end_time, id
		LIMIT ?`,
		string(models.StatusConfirmed), cutoffDate, cutoffDate, cutoffClock, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select auto-completion candidates: %w", err)
	}
	return collectBookings(rows)
}

func (t *storeTx) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return getBooking(ctx, t.tx, id)
}

var livePlaceholders = strings.TrimSuffix(strings.Repeat("?, ", len(models.LiveStatuses)), ", ")

func overlapArgs(fieldID int64, date, start, end string, excludeID int64) []any {
	args := []any{fieldID, date, end, start}
	for _, st := range models.LiveStatuses {
		args = append(args, string(st))
	}
	return append(args, excludeID)
}

func (t *storeTx) FindOverlapping(ctx context.Context, fieldID int64, date, start, end string, excludeID int64) ([]models.Booking, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings
		WHERE field_id = ? AND booking_date = ?
		AND start_time < ? AND end_time > ?
		AND status IN (`+livePlaceholders+`)
		AND id <> ?
		ORDER BY start_time`,
		overlapArgs(fieldID, date, start, end, excludeID)...,
	)
	if err != nil {
		return nil, fmt.Errorf("find overlapping: %w", err)
	}
	return collectBookings(rows)
}

func (t *storeTx) InsertBooking(ctx context.Context, b *models.Booking) error {
	if b == nil {
		return fmt.Errorf("booking is nil")
	}

	res, err := t.tx.ExecContext(ctx, `INSERT INTO bookings (
			public_id, booking_number, field_id, booking_date, start_time, end_time,
			duration_minutes, base_amount, discount_amount, fee_amount, total_amount,
			status, payment_status, customer_id, notes, created_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.PublicID, b.BookingNumber, b.FieldID, b.Date, b.StartTime, b.EndTime,
		b.Duration, b.BaseAmount, b.DiscountAmount, b.FeeAmount, b.TotalAmount,
		string(b.Status), string(b.PaymentStatus), b.CustomerID, b.Notes, b.CreatedBy,
		b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert booking id: %w", err)
	}
	b.ID = id
	return nil
}

func (t *storeTx) UpdateBookingState(ctx context.Context, id int64, expected models.Status, change domain.StateChange) (*models.Booking, error) {
	at := change.At.UTC()
	sets := []string{"status = ?", "updated_at = ?"}
	args := []any{string(change.To), at}

	switch change.To {
	case models.StatusConfirmed:
		sets = append(sets, "confirmed_by = ?", "confirmed_at = ?")
		args = append(args, nullInt64(change.ActorID), at)
	case models.StatusCancelled:
		sets = append(sets, "cancelled_by = ?", "cancelled_at = ?", "cancel_reason = ?")
		args = append(args, nullInt64(change.ActorID), at, change.Reason)
	case models.StatusRejected:
		sets = append(sets, "rejected_by = ?", "rejected_at = ?", "reject_reason = ?")
		args = append(args, nullInt64(change.ActorID), at, change.Reason)
	case models.StatusCompleted:
		sets = append(sets, "completed_by = ?", "completed_at = ?")
		args = append(args, nullInt64(change.ActorID), at)
	default:
		return nil, fmt.Errorf("unsupported target status %q", change.To)
	}
	args = append(args, id, string(expected))

	res, err := t.tx.ExecContext(ctx,
		`UPDATE bookings SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update booking %d state: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update booking %d state: %w", id, err)
	}
	if n == 0 {
		if _, err := getBooking(ctx, t.tx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("booking %d not %s: %w", id, expected, domain.ErrStaleState)
	}

	return getBooking(ctx, t.tx, id)
}

func (t *storeTx) SetBookingPaymentStatus(ctx context.Context, bookingID int64, status models.PaymentStatus) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE bookings SET payment_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), bookingID,
	)
	if err != nil {
		return fmt.Errorf("set booking %d payment status: %w", bookingID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("booking %d: %w", bookingID, domain.ErrNotFound)
	}
	return nil
}
