package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"fieldbooking/internal/autocomplete"
	"fieldbooking/internal/booking"
	"fieldbooking/internal/models"
	"fieldbooking/internal/payment"
	"fieldbooking/internal/slots"
	"fieldbooking/shared/access"

	"github.com/go-chi/chi/v5"
)

type transitionRequest struct {
	Reason string `json:"reason"`
}

// createBooking handles POST /api/bookings.
func (h *Handler) createBooking(w http.ResponseWriter, r *http.Request) {
	var nb booking.NewBooking
	if err := decodeJSON(r, &nb); err != nil {
		writeError(w, http.StatusBadRequest, string(booking.CodeValidation), "invalid request body: "+err.Error())
		return
	}

	b, err := h.deps.Bookings.RequestTransition(r.Context(), booking.Request{
		Action: models.ActionCreate,
		New:    &nb,
		Actor:  actorFrom(r.Context()),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// getBooking handles GET /api/bookings/{id}. Customers only see their own bookings.
func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) bookingHistory(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	records, err := h.deps.Bookings.History(r.Context(), b.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []models.TransitionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) loadVisible(w http.ResponseWriter, r *http.Request) (*models.Booking, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(booking.CodeValidation), "invalid booking id")
		return nil, false
	}
	b, err := h.deps.Bookings.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return nil, false
	}
	actor := actorFrom(r.Context())
	if !actor.Role.IsStaff() && actor.UserID != b.CustomerID {
		writeError(w, http.StatusForbidden, string(booking.CodeUnauthorized), "not your booking")
		return nil, false
	}
	return b, true
}

// transition handles POST /api/bookings/{id}/{confirm|reject|cancel|complete}.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(booking.CodeValidation), "invalid booking id")
		return
	}
	action := models.Action(chi.URLParam(r, "action"))
	if !action.IsValid() || action == models.ActionCreate {
		writeError(w, http.StatusNotFound, string(booking.CodeNotFound), "unknown action")
		return
	}

	var req transitionRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, string(booking.CodeValidation), "invalid request body: "+err.Error())
		return
	}

	b, err := h.deps.Bookings.RequestTransition(r.Context(), booking.Request{
		BookingID: id,
		Action:    action,
		Actor:     actorFrom(r.Context()),
		Reason:    req.Reason,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// recordPayment handles POST /api/bookings/{id}/payments.
func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(booking.CodeValidation), "invalid booking id")
		return
	}
	var in payment.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, string(booking.CodeValidation), "invalid request body: "+err.Error())
		return
	}

	p, err := h.deps.Payments.RecordPayment(r.Context(), id, in, actorFrom(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	payments, err := h.deps.Payments.List(r.Context(), b.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	writeJSON(w, http.StatusOK, payments)
}

// settlePayment handles POST /api/payments/{id}/{paid|failed|refund}.
func (h *Handler) settlePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(booking.CodeValidation), "invalid payment id")
		return
	}

	actor := actorFrom(r.Context())
	var (
		p   *models.Payment
		err error
	)
	switch chi.URLParam(r, "outcome") {
	case "paid":
		p, err = h.deps.Payments.MarkPaid(r.Context(), id, actor)
	case "failed":
		p, err = h.deps.Payments.MarkFailed(r.Context(), id, actor)
	case "refund":
		p, err = h.deps.Payments.Refund(r.Context(), id, actor)
	default:
		writeError(w, http.StatusNotFound, string(booking.CodeNotFound), "unknown payment outcome")
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) listFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.deps.Calendar.ListActiveFields(r.Context())
	if err != nil {
		h.writeServiceError(w, r, booking.FromStore(err, "fields"))
		return
	}
	if fields == nil {
		fields = []models.Field{}
	}
	writeJSON(w, http.StatusOK, fields)
}

// listFieldBookings handles GET /api/fields/{id}/bookings?date=YYYY-MM-DD.
// Only live bookings are listed; staff see every detail, others only the slots.
func (h *Handler) listFieldBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(booking.CodeValidation), "invalid field id")
		return
	}
	date := r.URL.Query().Get("date")
	if _, err := models.ParseDate(date, nil); err != nil {
		writeError(w, http.StatusBadRequest, string(booking.CodeValidation), err.Error())
		return
	}

	all, err := h.deps.Calendar.ListBookingsOnDate(r.Context(), id, date)
	if err != nil {
		h.writeServiceError(w, r, booking.FromStore(err, "bookings"))
		return
	}

	type slot struct {
		StartTime string        `json:"start_time"`
		EndTime   string        `json:"end_time"`
		Status    models.Status `json:"status"`
	}
	actor := actorFrom(r.Context())
	live := make([]any, 0, len(all))
	for i := range all {
		if !all[i].Status.IsLive() {
			continue
		}
		if actor.Role.IsStaff() {
			live = append(live, all[i])
		} else {
			live = append(live, slot{StartTime: all[i].StartTime, EndTime: all[i].EndTime, Status: all[i].Status})
		}
	}
	writeJSON(w, http.StatusOK, live)
}

// fieldAvailability handles GET /api/fields/{id}/availability?date=YYYY-MM-DD&duration=60&free=1.
func (h *Handler) fieldAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(booking.CodeValidation), "invalid field id")
		return
	}
	q := r.URL.Query()
	date := q.Get("date")
	if _, err := models.ParseDate(date, h.deps.Location); err != nil {
		writeError(w, http.StatusBadRequest, string(booking.CodeValidation), err.Error())
		return
	}
	duration := slots.DefaultDuration
	if raw := q.Get("duration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d <= 0 || d > 24*60 {
			writeError(w, http.StatusBadRequest, string(booking.CodeValidation), "duration must be minutes between 1 and 1440")
			return
		}
		duration = d
	}

	field, err := h.deps.Calendar.GetField(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, booking.FromStore(err, "field"))
		return
	}
	bookings, err := h.deps.Calendar.ListBookingsOnDate(r.Context(), id, date)
	if err != nil {
		h.writeServiceError(w, r, booking.FromStore(err, "bookings"))
		return
	}

	all, err := slots.Generate(field, date, duration, bookings, h.deps.Now(), h.deps.Location)
	if err != nil {
		h.writeServiceError(w, r, booking.NewError(booking.CodeValidation, "%v", err))
		return
	}
	if q.Get("free") == "1" {
		all = slots.FilterAvailable(all)
	}
	if all == nil {
		all = []slots.SlotInfo{}
	}
	writeJSON(w, http.StatusOK, all)
}

type roleRequest struct {
	Role string `json:"role"`
}

// setUserRole handles PUT /api/users/{id}/role.
func (h *Handler) setUserRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(booking.CodeValidation), "invalid user id")
		return
	}
	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(booking.CodeValidation), "invalid request body: "+err.Error())
		return
	}
	role, err := access.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(booking.CodeValidation), err.Error())
		return
	}

	actor := actorFrom(r.Context())
	if err := h.deps.Identity.SetUserRole(r.Context(), actor.UserID, id, role); err != nil {
		if access.IsAccessDenied(err) {
			writeError(w, http.StatusForbidden, string(booking.CodeUnauthorized), err.Error())
			return
		}
		h.logger.Error().Err(err).Int64("user_id", id).Msg("set user role")
		writeError(w, http.StatusInternalServerError, string(booking.CodePersistence), "could not save role")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": id, "role": role.String()})
}

// runAutoComplete handles POST /api/auto-complete/run.
func (h *Handler) runAutoComplete(w http.ResponseWriter, r *http.Request) {
	if h.deps.AutoComplete == nil {
		writeError(w, http.StatusNotFound, string(booking.CodeNotFound), "auto-completion is disabled")
		return
	}
	if !actorFrom(r.Context()).Role.AtLeast(access.RoleSupervisor) {
		writeError(w, http.StatusForbidden, string(booking.CodeUnauthorized), "requires supervisor role")
		return
	}

	result, err := h.deps.AutoComplete.RunNow(r.Context())
	if errors.Is(err, autocomplete.ErrRunInProgress) {
		writeError(w, http.StatusConflict, "RUN_IN_PROGRESS", err.Error())
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("manual auto-completion run")
		writeError(w, http.StatusInternalServerError, string(booking.CodePersistence), "auto-completion run failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
