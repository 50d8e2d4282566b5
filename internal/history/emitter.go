// Package history records booking transitions and announces them once committed.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"fieldbooking/internal/domain"
	"fieldbooking/internal/events"
	"fieldbooking/internal/models"

	"github.com/rs/zerolog"
)

// Publisher receives committed transition events.
type Publisher interface {
	Publish(ctx context.Context, event events.Event)
}

// Emitter appends transition records through the caller's transaction.
type Emitter struct {
	publisher Publisher
	logger    zerolog.Logger
}

func NewEmitter(publisher Publisher, logger *zerolog.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger.With().Str("component", "history").Logger(),
	}
}

// Validate reports whether rec carries every field a transition record needs.
func Validate(rec *models.TransitionRecord) error {
	switch {
	case rec == nil:
		return fmt.Errorf("transition record is nil")
	case rec.BookingID <= 0:
		return fmt.Errorf("transition record: booking id is required")
	case !rec.Action.IsValid():
		return fmt.Errorf("transition record: invalid action %q", rec.Action)
	case !rec.ToStatus.IsValid():
		return fmt.Errorf("transition record: invalid to status %q", rec.ToStatus)
	case rec.FromStatus != "" && !rec.FromStatus.IsValid():
		return fmt.Errorf("transition record: invalid from status %q", rec.FromStatus)
	case rec.FromStatus == "" && rec.Action != models.ActionCreate:
		return fmt.Errorf("transition record: from status is required for %s", rec.Action)
	case rec.ActorID == "":
		return fmt.Errorf("transition record: actor is required")
	case rec.CreatedAt.IsZero():
		return fmt.Errorf("transition record: timestamp is required")
	}
	return nil
}

// Emit appends rec inside tx. An error here must abort the transition.
func (e *Emitter) Emit(ctx context.Context, tx domain.Tx, rec *models.TransitionRecord) error {
	if err := Validate(rec); err != nil {
		return err
	}
	return tx.AppendTransitionRecord(ctx, rec)
}

// TransitionEvent is the published form of a committed transition.
type TransitionEvent struct {
	RecordID      int64     `json:"record_id"`
	BookingID     int64     `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	FieldID       int64     `json:"field_id"`
	Date          string    `json:"date"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	Action        string    `json:"action"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	PaymentStatus string    `json:"payment_status"`
	ActorID       string    `json:"actor_id"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publish announces a committed record. It never fails the transition.
func (e *Emitter) Publish(ctx context.Context, rec models.TransitionRecord, b *models.Booking) {
	if e.publisher == nil || b == nil {
		return
	}

	payload, err := json.Marshal(TransitionEvent{
		RecordID:      rec.ID,
		BookingID:     rec.BookingID,
		BookingNumber: b.BookingNumber,
		FieldID:       b.FieldID,
		Date:          b.Date,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		Action:        string(rec.Action),
		From:          string(rec.FromStatus),
		To:            string(rec.ToStatus),
		PaymentStatus: string(b.PaymentStatus),
		ActorID:       rec.ActorID,
		Reason:        rec.Reason,
		OccurredAt:    rec.CreatedAt,
	})
	if err != nil {
		e.logger.Error().Err(err).Int64("booking_id", rec.BookingID).Msg("marshal transition event")
		return
	}

	e.publisher.Publish(ctx, events.Event{
		Type:    events.TypeBookingTransition,
		Key:     strconv.FormatInt(rec.BookingID, 10),
		Payload: payload,
		Headers: map[string]string{
			"action":   string(rec.Action),
			"actor_id": rec.ActorID,
			"to":       string(rec.ToStatus),
		},
		CreatedAt: rec.CreatedAt,
	})
}
