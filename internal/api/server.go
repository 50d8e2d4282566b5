// Package api exposes the booking lifecycle over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"fieldbooking/internal/autocomplete"
	"fieldbooking/internal/booking"
	"fieldbooking/internal/models"
	"fieldbooking/internal/payment"
	"fieldbooking/shared/access"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// UserIDHeader carries the caller's user id.
const UserIDHeader = "X-User-ID"

type BookingService interface {
	RequestTransition(ctx context.Context, req booking.Request) (*models.Booking, error)
	Get(ctx context.Context, id int64) (*models.Booking, error)
	History(ctx context.Context, id int64) ([]models.TransitionRecord, error)
}

type PaymentService interface {
	RecordPayment(ctx context.Context, bookingID int64, in payment.Input, actor booking.Actor) (*models.Payment, error)
	MarkPaid(ctx context.Context, paymentID int64, actor booking.Actor) (*models.Payment, error)
	MarkFailed(ctx context.Context, paymentID int64, actor booking.Actor) (*models.Payment, error)
	Refund(ctx context.Context, paymentID int64, actor booking.Actor) (*models.Payment, error)
	List(ctx context.Context, bookingID int64) ([]models.Payment, error)
}

// Calendar lists fields and their bookings for read-only views.
type Calendar interface {
	GetField(ctx context.Context, id int64) (*models.Field, error)
	ListActiveFields(ctx context.Context) ([]models.Field, error)
	ListBookingsOnDate(ctx context.Context, fieldID int64, date string) ([]models.Booking, error)
}

type Identity interface {
	RoleOf(ctx context.Context, userID int64) (access.Role, error)
	SetUserRole(ctx context.Context, actorID, userID int64, role access.Role) error
}

type AutoCompleter interface {
	RunNow(ctx context.Context) (autocomplete.RunResult, error)
}

// Deps are the services behind the HTTP surface.
type Deps struct {
	Bookings     BookingService
	Payments     PaymentService
	Calendar     Calendar
	Identity     Identity
	AutoComplete AutoCompleter

	// Location and Now drive availability; defaults are UTC and time.Now.
	Location *time.Location
	Now      func() time.Time
}

type Handler struct {
	deps   Deps
	logger zerolog.Logger
}

func NewHandler(deps Deps, logger *zerolog.Logger) *Handler {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Handler{
		deps:   deps,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(h.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.identify)

		r.Get("/fields", h.listFields)
		r.Get("/fields/{id}/bookings", h.listFieldBookings)
		r.Get("/fields/{id}/availability", h.fieldAvailability)

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", h.createBooking)
			r.Get("/{id}", h.getBooking)
			r.Get("/{id}/history", h.bookingHistory)
			r.Get("/{id}/payments", h.listPayments)
			r.Post("/{id}/payments", h.recordPayment)
			r.Post("/{id}/{action}", h.transition)
		})

		r.Post("/payments/{id}/{outcome}", h.settlePayment)
		r.Put("/users/{id}/role", h.setUserRole)
		r.Post("/auto-complete/run", h.runAutoComplete)
	})
	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("request")
	})
}

type actorKey struct{}

// identify resolves the caller from UserIDHeader. A missing header is a guest.
func (h *Handler) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var userID int64
		if raw := r.Header.Get(UserIDHeader); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				writeError(w, http.StatusBadRequest, string(booking.CodeValidation), "invalid "+UserIDHeader+" header")
				return
			}
			userID = id
		}

		role, err := h.deps.Identity.RoleOf(r.Context(), userID)
		if err != nil {
			h.logger.Error().Err(err).Int64("user_id", userID).Msg("resolve caller role")
			writeError(w, http.StatusInternalServerError, string(booking.CodePersistence), "could not resolve caller")
			return
		}

		actor := booking.Actor{UserID: userID, Role: role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, actor)))
	})
}

func actorFrom(ctx context.Context) booking.Actor {
	a, _ := ctx.Value(actorKey{}).(booking.Actor)
	return a
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

var statusByCode = map[booking.Code]int{
	booking.CodeValidation:          http.StatusBadRequest,
	booking.CodeUnauthorized:        http.StatusForbidden,
	booking.CodeNotFound:            http.StatusNotFound,
	booking.CodeConflict:            http.StatusConflict,
	booking.CodeInvalidTransition:   http.StatusConflict,
	booking.CodePaymentNotCompleted: http.StatusPaymentRequired,
	booking.CodePersistence:         http.StatusInternalServerError,
}

// writeServiceError maps a booking error to its status. Persistence details stay in the log.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var e *booking.Error
	if !errors.As(err, &e) {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("unexpected error")
		writeError(w, http.StatusInternalServerError, string(booking.CodePersistence), "internal error")
		return
	}

	status, ok := statusByCode[e.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	msg := e.Message
	if e.Code == booking.CodePersistence {
		msg = "could not save changes, try again"
	}
	writeError(w, status, string(e.Code), msg)
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
