// Package domain declares the persistence contracts the booking core depends on.
package domain

import (
	"context"
	"errors"
	"time"

	"fieldbooking/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStaleState is returned by conditional updates when the row is no longer
	// in the expected state.
	ErrStaleState = errors.New("state changed concurrently")
)

// StateChange describes a booking state write and the provenance to stamp with it.
type StateChange struct {
	To      models.Status
	ActorID *int64 // nil for the system actor
	Reason  string
	At      time.Time
}

// PaymentChange describes a payment status write.
type PaymentChange struct {
	To      models.PaymentStatus
	ActorID *int64
	At      time.Time
}

// Tx is a unit of work. Everything done through one Tx commits or rolls back together.
type Tx interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetField(ctx context.Context, id int64) (*models.Field, error)

	// FindOverlapping returns live bookings on the field and date whose
	// [start, end) window intersects the given one. excludeID of 0 excludes nothing.
	FindOverlapping(ctx context.Context, fieldID int64, date, start, end string, excludeID int64) ([]models.Booking, error)
	InsertBooking(ctx context.Context, b *models.Booking) error
	// UpdateBookingState fails with ErrStaleState when the current status is not expected.
	UpdateBookingState(ctx context.Context, id int64, expected models.Status, change StateChange) (*models.Booking, error)
	SetBookingPaymentStatus(ctx context.Context, bookingID int64, status models.PaymentStatus) error
	AppendTransitionRecord(ctx context.Context, rec *models.TransitionRecord) error

	InsertPayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	ListPayments(ctx context.Context, bookingID int64) ([]models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id int64, expected models.PaymentStatus, change PaymentChange) (*models.Payment, error)
}

// Store is the authoritative booking store.
type Store interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetField(ctx context.Context, id int64) (*models.Field, error)
	ListTransitions(ctx context.Context, bookingID int64) ([]models.TransitionRecord, error)
	ListPayments(ctx context.Context, bookingID int64) ([]models.Payment, error)

	// WithinTx runs fn in a serializable write transaction. A non-nil error
	// from fn rolls the transaction back and is returned unchanged.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// CandidateSource lists confirmed bookings that may be due for automatic completion.
type CandidateSource interface {
	// SelectAutoCompletionCandidates returns confirmed, not yet completed bookings
	// whose end lies at or before now minus grace, evaluated in now's location.
	SelectAutoCompletionCandidates(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]models.Booking, error)
}

// UserRoles resolves the stored role name of a user.
type UserRoles interface {
	GetUserRole(ctx context.Context, userID int64) (string, error)
	SetUserRole(ctx context.Context, userID int64, role string) error
}
