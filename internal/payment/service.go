// Package payment records payment attempts and keeps the booking's payment
// status current. It never changes booking state.
package payment

import (
	"context"
	"strings"
	"time"

	"fieldbooking/internal/booking"
	"fieldbooking/internal/domain"
	"fieldbooking/internal/metrics"
	"fieldbooking/internal/models"
	"fieldbooking/shared/access"

	"github.com/rs/zerolog"
)

// Input describes a payment attempt.
type Input struct {
	Method      models.PaymentMethod `json:"method"`
	Provider    string               `json:"provider"`
	Amount      int64                `json:"amount"`
	Fee         int64                `json:"fee"`
	ExternalRef string               `json:"external_ref"`
	ExpiresAt   *time.Time           `json:"expires_at,omitempty"`
}

type Service struct {
	store  domain.Store
	now    func() time.Time
	logger zerolog.Logger
}

func NewService(store domain.Store, now func() time.Time, logger *zerolog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:  store,
		now:    now,
		logger: logger.With().Str("component", "payment").Logger(),
	}
}

func isSettler(actor booking.Actor) bool {
	return actor.System || actor.Role.AtLeast(access.RoleCashier)
}

// RecordPayment creates a payment attempt. Cash is collected on the spot and
// recorded paid; other methods start pending until settled.
func (s *Service) RecordPayment(ctx context.Context, bookingID int64, in Input, actor booking.Actor) (*models.Payment, error) {
	if !in.Method.IsValid() {
		return nil, booking.NewError(booking.CodeValidation, "unsupported payment method %q", in.Method)
	}
	if in.Amount <= 0 {
		return nil, booking.NewError(booking.CodeValidation, "amount must be positive")
	}
	if in.Fee < 0 {
		return nil, booking.NewError(booking.CodeValidation, "fee must not be negative")
	}
	if in.Method == models.MethodCash && !actor.Role.AtLeast(access.RoleCashier) {
		return nil, booking.NewError(booking.CodeUnauthorized, "cash payments are recorded by a cashier")
	}

	now := s.now()
	var created *models.Payment

	err := s.store.WithinTx(ctx, func(tx domain.Tx) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return booking.FromStore(err, "booking")
		}
		if !isSettler(actor) && actor.UserID != b.CustomerID {
			return booking.NewError(booking.CodeUnauthorized, "only the owner or a cashier may pay booking %d", b.ID)
		}
		if !b.Status.IsLive() {
			return booking.NewError(booking.CodeInvalidTransition, "booking %d is %s", b.ID, b.Status)
		}
		if b.PaymentStatus == models.PaymentPaid {
			return booking.NewError(booking.CodeInvalidTransition, "booking %d is already paid", b.ID)
		}

		p := &models.Payment{
			BookingID:   b.ID,
			Method:      in.Method,
			Provider:    strings.TrimSpace(in.Provider),
			Amount:      in.Amount,
			Fee:         in.Fee,
			Total:       in.Amount + in.Fee,
			Status:      models.PaymentPending,
			ExternalRef: strings.TrimSpace(in.ExternalRef),
			ExpiresAt:   in.ExpiresAt,
			CreatedBy:   actor.UserID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if in.Method == models.MethodCash {
			p.Status = models.PaymentPaid
			paidBy := actor.UserID
			p.PaidBy = &paidBy
			p.PaidAt = &now
		}

		if err := tx.InsertPayment(ctx, p); err != nil {
			return booking.FromStore(err, "payment")
		}
		if err := tx.SetBookingPaymentStatus(ctx, b.ID, p.Status); err != nil {
			return booking.FromStore(err, "booking payment status")
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, booking.FromStore(err, "payment")
	}

	metrics.IncPaymentRecorded(string(created.Method), string(created.Status))
	s.logger.Info().
		Int64("booking_id", bookingID).
		Int64("payment_id", created.ID).
		Str("method", string(created.Method)).
		Str("status", string(created.Status)).
		Msg("payment recorded")
	return created, nil
}

// MarkPaid settles a pending payment. At most one payment per booking may be paid.
func (s *Service) MarkPaid(ctx context.Context, paymentID int64, actor booking.Actor) (*models.Payment, error) {
	return s.settle(ctx, paymentID, actor, models.PaymentPending, models.PaymentPaid)
}

// MarkFailed records that a pending payment did not go through.
func (s *Service) MarkFailed(ctx context.Context, paymentID int64, actor booking.Actor) (*models.Payment, error) {
	return s.settle(ctx, paymentID, actor, models.PaymentPending, models.PaymentFailed)
}

// Refund returns a paid payment.
func (s *Service) Refund(ctx context.Context, paymentID int64, actor booking.Actor) (*models.Payment, error) {
	return s.settle(ctx, paymentID, actor, models.PaymentPaid, models.PaymentRefunded)
}

func (s *Service) settle(ctx context.Context, paymentID int64, actor booking.Actor, from, to models.PaymentStatus) (*models.Payment, error) {
	if !isSettler(actor) {
		return nil, booking.NewError(booking.CodeUnauthorized, "%s may not settle payments", actor.Role)
	}

	now := s.now()
	var updated *models.Payment

	err := s.store.WithinTx(ctx, func(tx domain.Tx) error {
		p, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return booking.FromStore(err, "payment")
		}
		if p.Status != from {
			return booking.NewError(booking.CodeInvalidTransition, "payment %d is %s, expected %s", p.ID, p.Status, from)
		}

		siblings, err := tx.ListPayments(ctx, p.BookingID)
		if err != nil {
			return booking.FromStore(err, "payments")
		}
		if to == models.PaymentPaid {
			b, err := tx.GetBooking(ctx, p.BookingID)
			if err != nil {
				return booking.FromStore(err, "booking")
			}
			if !b.Status.IsLive() {
				return booking.NewError(booking.CodeInvalidTransition, "booking %d is %s", b.ID, b.Status)
			}
			for _, other := range siblings {
				if other.ID != p.ID && other.Status == models.PaymentPaid {
					return booking.NewError(booking.CodeInvalidTransition, "booking %d already has paid payment %d", p.BookingID, other.ID)
				}
			}
		}

		updated, err = tx.UpdatePaymentStatus(ctx, p.ID, from, domain.PaymentChange{To: to, ActorID: actorID(actor), At: now})
		if err != nil {
			return booking.FromStore(err, "payment")
		}

		bookingStatus := to
		if to == models.PaymentFailed {
			bookingStatus = models.PaymentUnpaid
			for _, other := range siblings {
				if other.ID == p.ID {
					continue
				}
				if other.Status == models.PaymentPaid {
					bookingStatus = models.PaymentPaid
					break
				}
				if other.Status == models.PaymentPending {
					bookingStatus = models.PaymentPending
				}
			}
		}
		if err := tx.SetBookingPaymentStatus(ctx, p.BookingID, bookingStatus); err != nil {
			return booking.FromStore(err, "booking payment status")
		}
		return nil
	})
	if err != nil {
		return nil, booking.FromStore(err, "payment")
	}

	metrics.IncPaymentRecorded(string(updated.Method), string(updated.Status))
	s.logger.Info().
		Int64("booking_id", updated.BookingID).
		Int64("payment_id", updated.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("actor_id", actor.Label()).
		Msg("payment settled")
	return updated, nil
}

func actorID(actor booking.Actor) *int64 {
	if actor.System {
		return nil
	}
	id := actor.UserID
	return &id
}

// List returns the payment attempts of a booking.
func (s *Service) List(ctx context.Context, bookingID int64) ([]models.Payment, error) {
	if _, err := s.store.GetBooking(ctx, bookingID); err != nil {
		return nil, booking.FromStore(err, "booking")
	}
	payments, err := s.store.ListPayments(ctx, bookingID)
	if err != nil {
		return nil, booking.FromStore(err, "payments")
	}
	return payments, nil
}
