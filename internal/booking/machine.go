// Package booking owns the booking lifecycle: the transition table, the
// conflict detector, the payment gate and the single entry point that applies them.
package booking

import (
	"fieldbooking/internal/models"
)

type edge struct {
	from   models.Status
	action models.Action
}

// transitions is the complete lifecycle. Anything absent is an invalid transition.
var transitions = map[edge]models.Status{
	{"", models.ActionCreate}:                       models.StatusPending,
	{models.StatusPending, models.ActionConfirm}:    models.StatusConfirmed,
	{models.StatusPending, models.ActionReject}:     models.StatusRejected,
	{models.StatusPending, models.ActionCancel}:     models.StatusCancelled,
	{models.StatusConfirmed, models.ActionCancel}:   models.StatusCancelled,
	{models.StatusConfirmed, models.ActionComplete}: models.StatusCompleted,
}

// Next returns the target state of action from the current state.
func Next(from models.Status, action models.Action) (models.Status, bool) {
	to, ok := transitions[edge{from, action}]
	return to, ok
}

// CanTransition reports whether some action moves from into to.
func CanTransition(from, to models.Status) bool {
	for e, target := range transitions {
		if e.from == from && target == to {
			return true
		}
	}
	return false
}

// CanConfirm is the payment gate.
func CanConfirm(b *models.Booking) bool {
	return b != nil && b.PaymentStatus == models.PaymentPaid
}

// requiresReason lists actions that must carry a non-empty reason.
func requiresReason(action models.Action) bool {
	return action == models.ActionCancel || action == models.ActionReject
}

// Conflicts returns the live bookings among existing that overlap [startMin, endMin)
// on fieldID and date. excludeID of 0 excludes nothing.
func Conflicts(existing []models.Booking, fieldID int64, date string, startMin, endMin int, excludeID int64) []models.Booking {
	var out []models.Booking
	for _, b := range existing {
		if b.ID == excludeID && excludeID != 0 {
			continue
		}
		if b.FieldID != fieldID || b.Date != date || !b.Status.IsLive() {
			continue
		}
		s, err := models.ParseClock(b.StartTime)
		if err != nil {
			continue
		}
		e, err := models.ParseClock(b.EndTime)
		if err != nil {
			continue
		}
		if models.Overlaps(startMin, endMin, s, e) {
			out = append(out, b)
		}
	}
	return out
}
