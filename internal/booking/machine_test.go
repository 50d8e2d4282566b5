package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"fieldbooking/internal/domain"
	"fieldbooking/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from   models.Status
		action models.Action
		to     models.Status
		ok     bool
	}{
		{"", models.ActionCreate, models.StatusPending, true},
		{models.StatusPending, models.ActionConfirm, models.StatusConfirmed, true},
		{models.StatusPending, models.ActionReject, models.StatusRejected, true},
		{models.StatusPending, models.ActionCancel, models.StatusCancelled, true},
		{models.StatusConfirmed, models.ActionCancel, models.StatusCancelled, true},
		{models.StatusConfirmed, models.ActionComplete, models.StatusCompleted, true},
		{models.StatusPending, models.ActionComplete, "", false},
		{models.StatusConfirmed, models.ActionConfirm, "", false},
		{models.StatusConfirmed, models.ActionReject, "", false},
		{models.StatusPending, models.ActionCreate, "", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s", tt.from, tt.action), func(t *testing.T) {
			to, ok := Next(tt.from, tt.action)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	actions := []models.Action{models.ActionCreate, models.ActionConfirm, models.ActionReject, models.ActionCancel, models.ActionComplete}
	for _, from := range []models.Status{models.StatusCompleted, models.StatusCancelled, models.StatusRejected} {
		for _, a := range actions {
			_, ok := Next(from, a)
			assert.False(t, ok, "%s --%s--> should not exist", from, a)
		}
		for _, to := range []models.Status{models.StatusPending, models.StatusConfirmed, models.StatusCompleted, models.StatusCancelled, models.StatusRejected} {
			assert.False(t, CanTransition(from, to))
		}
	}
	assert.True(t, CanTransition(models.StatusPending, models.StatusConfirmed))
	assert.False(t, CanTransition(models.StatusConfirmed, models.StatusPending))
}

func TestCanConfirm(t *testing.T) {
	for _, ps := range []models.PaymentStatus{models.PaymentUnpaid, models.PaymentPending, models.PaymentFailed, models.PaymentRefunded} {
		assert.False(t, CanConfirm(&models.Booking{PaymentStatus: ps}), ps)
	}
	assert.True(t, CanConfirm(&models.Booking{PaymentStatus: models.PaymentPaid}))
	assert.False(t, CanConfirm(nil))
}

func TestConflicts(t *testing.T) {
	existing := []models.Booking{
		{ID: 1, FieldID: 1, Date: "2025-06-15", StartTime: "10:00", EndTime: "11:00", Status: models.StatusPending},
		{ID: 2, FieldID: 1, Date: "2025-06-15", StartTime: "14:00", EndTime: "16:00", Status: models.StatusConfirmed},
		{ID: 3, FieldID: 1, Date: "2025-06-15", StartTime: "12:00", EndTime: "13:00", Status: models.StatusCancelled},
		{ID: 4, FieldID: 1, Date: "2025-06-15", StartTime: "17:00", EndTime: "18:00", Status: models.StatusCompleted},
		{ID: 5, FieldID: 2, Date: "2025-06-15", StartTime: "10:00", EndTime: "11:00", Status: models.StatusPending},
	}
	clock := func(s string) int {
		m, err := models.ParseClock(s)
		if err != nil {
			t.Fatal(err)
		}
		return m
	}

	tests := []struct {
		name       string
		start, end string
		exclude    int64
		wantIDs    []int64
	}{
		{"touching end", "11:00", "12:00", 0, nil},
		{"touching start", "09:00", "10:00", 0, nil},
		{"overlap confirmed", "15:00", "17:00", 0, []int64{2}},
		{"spans two", "10:30", "14:30", 0, []int64{1, 2}},
		{"cancelled does not block", "12:00", "13:00", 0, nil},
		{"completed does not block", "17:00", "18:00", 0, nil},
		{"excluded", "10:00", "11:00", 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Conflicts(existing, 1, "2025-06-15", clock(tt.start), clock(tt.end), tt.exclude)
			var ids []int64
			for _, b := range got {
				ids = append(ids, b.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(CodeConflict, "slot taken"))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, CodeConflict, CodeOf(err))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, "CONFLICT_DETECTED: slot taken", newError(CodeConflict, "slot taken").Error())

	tests := []struct {
		in   error
		want Code
	}{
		{fmt.Errorf("booking 1: %w", domain.ErrNotFound), CodeNotFound},
		{fmt.Errorf("booking 1: %w", domain.ErrStaleState), CodeInvalidTransition},
		{context.Canceled, CodePersistence},
		{errors.New("disk I/O error"), CodePersistence},
		{ErrPaymentNotCompleted, CodePaymentNotCompleted},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CodeOf(FromStore(tt.in, "booking")), tt.in.Error())
	}
	assert.NoError(t, FromStore(nil, "booking"))

	storeErr := errors.New("database is locked")
	assert.ErrorIs(t, FromStore(storeErr, "booking"), storeErr)
}
