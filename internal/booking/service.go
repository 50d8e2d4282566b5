package booking

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fieldbooking/internal/domain"
	"fieldbooking/internal/lock"
	"fieldbooking/internal/metrics"
	"fieldbooking/internal/models"
	"fieldbooking/shared/access"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SystemActorID is recorded in history for transitions driven without a human.
const SystemActorID = "system"

// Actor is the caller of a transition.
type Actor struct {
	UserID int64
	Role   access.Role
	System bool
}

// SystemActor is the synthetic caller used by background processes.
func SystemActor() Actor {
	return Actor{System: true}
}

// Label is the actor id written to history.
func (a Actor) Label() string {
	if a.System {
		return SystemActorID
	}
	return strconv.FormatInt(a.UserID, 10)
}

func (a Actor) idPtr() *int64 {
	if a.System {
		return nil
	}
	id := a.UserID
	return &id
}

// NewBooking carries the fields of a booking to create.
type NewBooking struct {
	FieldID        int64  `json:"field_id"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	CustomerID     int64  `json:"customer_id"`
	BaseAmount     int64  `json:"base_amount"`
	DiscountAmount int64  `json:"discount_amount"`
	FeeAmount      int64  `json:"fee_amount"`
	Notes          string `json:"notes"`
}

// Request asks for one transition. New is set only for create; BookingID otherwise.
type Request struct {
	BookingID int64
	New       *NewBooking
	Action    models.Action
	Actor     Actor
	Reason    string
}

// Authorizer answers whether a role may request a transition.
type Authorizer interface {
	IsPermitted(role access.Role, action models.Action, isOwner bool) bool
}

// HistoryEmitter records transitions inside the transaction and announces them after commit.
type HistoryEmitter interface {
	Emit(ctx context.Context, tx domain.Tx, rec *models.TransitionRecord) error
	Publish(ctx context.Context, rec models.TransitionRecord, b *models.Booking)
}

type Config struct {
	// GracePeriod delays automatic completion after a booking's end. Default: 15 minutes.
	GracePeriod time.Duration
	// Location is the zone booking dates and clocks are expressed in. Default: UTC.
	Location *time.Location
	Now      func() time.Time
}

// Service is the booking state machine. RequestTransition is the only writer of booking state.
type Service struct {
	store    domain.Store
	history  HistoryEmitter
	authz    Authorizer
	calendar *lock.KeyedMutex
	cfg      Config
	logger   zerolog.Logger
}

func NewService(store domain.Store, history HistoryEmitter, authz Authorizer, cfg Config, logger *zerolog.Logger) *Service {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 15 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if authz == nil {
		authz = access.Policy{}
	}
	return &Service{
		store:    store,
		history:  history,
		authz:    authz,
		calendar: lock.NewKeyedMutex(),
		cfg:      cfg,
		logger:   logger.With().Str("component", "booking").Logger(),
	}
}

// GracePeriod returns the configured auto-completion delay.
func (s *Service) GracePeriod() time.Duration {
	return s.cfg.GracePeriod
}

// Location returns the booking wall-clock zone.
func (s *Service) Location() *time.Location {
	return s.cfg.Location
}

func (s *Service) now() time.Time {
	return s.cfg.Now().In(s.cfg.Location)
}

func calendarKey(fieldID int64, date string) string {
	return fmt.Sprintf("%d|%s", fieldID, date)
}

// RequestTransition validates and applies one transition atomically with its history record.
// Every failure is a *Error.
func (s *Service) RequestTransition(ctx context.Context, req Request) (*models.Booking, error) {
	var (
		b   *models.Booking
		err error
	)
	if req.Action == models.ActionCreate {
		b, err = s.create(ctx, req)
	} else {
		b, err = s.transition(ctx, req)
	}

	if err != nil {
		code := CodeOf(err)
		metrics.IncTransition(string(req.Action), string(code))

		ev := s.logger.Warn()
		if code == CodePersistence {
			ev = s.logger.Error()
		}
		ev.Err(err).
			Str("action", string(req.Action)).
			Int64("booking_id", req.BookingID).
			Str("actor_id", req.Actor.Label()).
			Str("code", string(code)).
			Msg("transition refused")
		return nil, err
	}

	metrics.IncTransition(string(req.Action), "OK")
	s.logger.Info().
		Str("action", string(req.Action)).
		Int64("booking_id", b.ID).
		Int64("field_id", b.FieldID).
		Str("to", string(b.Status)).
		Str("actor_id", req.Actor.Label()).
		Msg("transition applied")
	return b, nil
}

type validatedBooking struct {
	fieldID    int64
	customerID int64
	date       string
	start, end string
	startMin   int
	endMin     int
}

func (s *Service) validateNew(nb *NewBooking, customerID int64) (*validatedBooking, error) {
	if nb.FieldID <= 0 {
		return nil, newError(CodeValidation, "field_id is required")
	}
	if customerID <= 0 {
		return nil, newError(CodeValidation, "customer_id is required")
	}
	d, err := models.ParseDate(nb.Date, s.cfg.Location)
	if err != nil {
		return nil, &Error{Code: CodeValidation, Message: "date is invalid", Err: err}
	}
	startMin, endMin, err := models.ValidateInterval(nb.StartTime, nb.EndTime)
	if err != nil {
		return nil, &Error{Code: CodeValidation, Message: "time window is invalid", Err: err}
	}
	if nb.BaseAmount < 0 || nb.DiscountAmount < 0 || nb.FeeAmount < 0 {
		return nil, newError(CodeValidation, "amounts must not be negative")
	}
	if nb.DiscountAmount > nb.BaseAmount {
		return nil, newError(CodeValidation, "discount exceeds base amount")
	}
	return &validatedBooking{
		fieldID:    nb.FieldID,
		customerID: customerID,
		date:       d.Format(models.DateLayout),
		start:      models.FormatClock(startMin),
		end:        models.FormatClock(endMin),
		startMin:   startMin,
		endMin:     endMin,
	}, nil
}

func (s *Service) create(ctx context.Context, req Request) (*models.Booking, error) {
	nb := req.New
	if nb == nil {
		return nil, newError(CodeValidation, "booking fields are required to create")
	}
	if req.BookingID != 0 {
		return nil, newError(CodeValidation, "booking_id must be empty on create")
	}
	if req.Actor.System {
		return nil, newError(CodeUnauthorized, "system actor cannot create bookings")
	}

	customerID := nb.CustomerID
	if customerID == 0 {
		customerID = req.Actor.UserID
	}
	if !s.authz.IsPermitted(req.Actor.Role, models.ActionCreate, false) {
		return nil, newError(CodeUnauthorized, "%s may not create bookings", req.Actor.Role)
	}
	if customerID != req.Actor.UserID && !req.Actor.Role.IsStaff() {
		return nil, newError(CodeUnauthorized, "only staff may book on behalf of another customer")
	}

	v, err := s.validateNew(nb, customerID)
	if err != nil {
		return nil, err
	}

	unlock := s.calendar.Lock(calendarKey(v.fieldID, v.date))
	defer unlock()

	now := s.now()
	var created *models.Booking
	var rec models.TransitionRecord

	err = s.store.WithinTx(ctx, func(tx domain.Tx) error {
		field, err := tx.GetField(ctx, v.fieldID)
		if err != nil {
			return FromStore(err, "field")
		}
		if !field.IsActive {
			return newError(CodeValidation, "field %d is not active", field.ID)
		}
		if !field.Covers(v.startMin, v.endMin) {
			return newError(CodeValidation, "%s-%s is outside operating hours %s-%s", v.start, v.end, field.OpenTime, field.CloseTime)
		}

		candidates, err := tx.FindOverlapping(ctx, v.fieldID, v.date, v.start, v.end, 0)
		if err != nil {
			return FromStore(err, "calendar")
		}
		if clash := Conflicts(candidates, v.fieldID, v.date, v.startMin, v.endMin, 0); len(clash) > 0 {
			metrics.IncConflict()
			return newError(CodeConflict, "field %d is already booked %s-%s on %s (booking %s)",
				v.fieldID, clash[0].StartTime, clash[0].EndTime, v.date, clash[0].BookingNumber)
		}

		b := &models.Booking{
			PublicID:       uuid.NewString(),
			BookingNumber:  newBookingNumber(now),
			FieldID:        v.fieldID,
			Date:           v.date,
			StartTime:      v.start,
			EndTime:        v.end,
			Duration:       v.endMin - v.startMin,
			BaseAmount:     nb.BaseAmount,
			DiscountAmount: nb.DiscountAmount,
			FeeAmount:      nb.FeeAmount,
			TotalAmount:    models.ComputeTotal(nb.BaseAmount, nb.DiscountAmount, nb.FeeAmount),
			Status:         models.StatusPending,
			PaymentStatus:  models.PaymentUnpaid,
			CustomerID:     v.customerID,
			Notes:          strings.TrimSpace(nb.Notes),
			CreatedBy:      req.Actor.UserID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return FromStore(err, "booking")
		}

		rec = models.TransitionRecord{
			BookingID: b.ID,
			Action:    models.ActionCreate,
			ToStatus:  models.StatusPending,
			ActorID:   req.Actor.Label(),
			Notes:     b.Notes,
			CreatedAt: now,
		}
		if err := s.history.Emit(ctx, tx, &rec); err != nil {
			return FromStore(err, "transition record")
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, FromStore(err, "booking")
	}

	s.history.Publish(ctx, rec, created)
	return created, nil
}

func newBookingNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("BK-%s-%s", now.Format("20060102"), suffix)
}

func (s *Service) transition(ctx context.Context, req Request) (*models.Booking, error) {
	if !req.Action.IsValid() {
		return nil, newError(CodeValidation, "unknown action %q", req.Action)
	}
	if req.BookingID <= 0 {
		return nil, newError(CodeValidation, "booking_id is required")
	}
	if req.New != nil {
		return nil, newError(CodeValidation, "booking fields are only accepted on create")
	}
	reason := strings.TrimSpace(req.Reason)
	if requiresReason(req.Action) && reason == "" {
		return nil, newError(CodeValidation, "reason is required to %s", req.Action)
	}
	if req.Actor.System && req.Action != models.ActionComplete {
		return nil, newError(CodeUnauthorized, "system actor may only complete bookings")
	}

	current, err := s.store.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, FromStore(err, "booking")
	}

	unlock := s.calendar.Lock(calendarKey(current.FieldID, current.Date))
	defer unlock()

	now := s.now()
	var updated *models.Booking
	var rec models.TransitionRecord

	err = s.store.WithinTx(ctx, func(tx domain.Tx) error {
		b, err := tx.GetBooking(ctx, req.BookingID)
		if err != nil {
			return FromStore(err, "booking")
		}
		if err := s.authorize(req.Actor, req.Action, b); err != nil {
			return err
		}

		to, ok := Next(b.Status, req.Action)
		if !ok && b.Status.IsTerminal() {
			return newError(CodeInvalidTransition, "booking %d is %s and cannot change", b.ID, b.Status)
		}
		if !ok {
			return newError(CodeInvalidTransition, "cannot %s a %s booking", req.Action, b.Status)
		}
		if err := s.checkPreconditions(req, b, now); err != nil {
			return err
		}

		updated, err = tx.UpdateBookingState(ctx, b.ID, b.Status, domain.StateChange{
			To:      to,
			ActorID: req.Actor.idPtr(),
			Reason:  reason,
			At:      now,
		})
		if err != nil {
			return FromStore(err, "booking state")
		}

		rec = models.TransitionRecord{
			BookingID:  b.ID,
			Action:     req.Action,
			FromStatus: b.Status,
			ToStatus:   to,
			ActorID:    req.Actor.Label(),
			Reason:     reason,
			CreatedAt:  now,
		}
		if err := s.history.Emit(ctx, tx, &rec); err != nil {
			return FromStore(err, "transition record")
		}
		return nil
	})
	if err != nil {
		return nil, FromStore(err, "booking")
	}

	s.history.Publish(ctx, rec, updated)
	return updated, nil
}

func (s *Service) authorize(actor Actor, action models.Action, b *models.Booking) error {
	if actor.System {
		return nil
	}
	isOwner := actor.UserID != 0 && actor.UserID == b.CustomerID
	if !s.authz.IsPermitted(actor.Role, action, isOwner) {
		if floor, ok := access.MinRole(action); ok {
			return newError(CodeUnauthorized, "%s may not %s booking %d; requires %s", actor.Role, action, b.ID, floor)
		}
		return newError(CodeUnauthorized, "%s may not %s booking %d", actor.Role, action, b.ID)
	}
	return nil
}

func (s *Service) checkPreconditions(req Request, b *models.Booking, now time.Time) error {
	switch req.Action {
	case models.ActionConfirm:
		if !CanConfirm(b) {
			metrics.IncPaymentGateRejection()
			return newError(CodePaymentNotCompleted, "payment is %s; process payment first", b.PaymentStatus)
		}
	case models.ActionComplete:
		if req.Actor.System {
			if !s.dueForAutoCompletion(b, now) {
				return newError(CodeInvalidTransition, "booking %d is not past its end plus grace period", b.ID)
			}
			return nil
		}
		start, err := b.StartAt(s.cfg.Location)
		if err != nil {
			return &Error{Code: CodeValidation, Message: "stored start time is unreadable", Err: err}
		}
		if now.Before(start) {
			return newError(CodeInvalidTransition, "booking %d has not started yet", b.ID)
		}
	}
	return nil
}

func (s *Service) dueForAutoCompletion(b *models.Booking, now time.Time) bool {
	end, err := b.EndAt(s.cfg.Location)
	if err != nil {
		return false
	}
	return !now.Before(end.Add(s.cfg.GracePeriod))
}

// EligibleForAutoCompletion re-checks a candidate against its current row:
// confirmed, not completed, and now at or past end plus grace.
func (s *Service) EligibleForAutoCompletion(b *models.Booking, now time.Time) bool {
	if b == nil || b.Status != models.StatusConfirmed || b.CompletedAt != nil {
		return false
	}
	return s.dueForAutoCompletion(b, now.In(s.cfg.Location))
}

// Get returns a booking by id.
func (s *Service) Get(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, FromStore(err, "booking")
	}
	return b, nil
}

// History returns the transition records of a booking in append order.
func (s *Service) History(ctx context.Context, id int64) ([]models.TransitionRecord, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.store.ListTransitions(ctx, id)
	if err != nil {
		return nil, FromStore(err, "history")
	}
	return records, nil
}
