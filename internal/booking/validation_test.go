package booking

import (
	"context"
	"io"
	"testing"
	"time"

	"fieldbooking/internal/domain"
	"fieldbooking/internal/models"
	"fieldbooking/shared/access"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Error(1)
}

func (m *mockStore) GetField(ctx context.Context, id int64) (*models.Field, error) {
	args := m.Called(ctx, id)
	f, _ := args.Get(0).(*models.Field)
	return f, args.Error(1)
}

func (m *mockStore) ListTransitions(ctx context.Context, bookingID int64) ([]models.TransitionRecord, error) {
	args := m.Called(ctx, bookingID)
	recs, _ := args.Get(0).([]models.TransitionRecord)
	return recs, args.Error(1)
}

func (m *mockStore) ListPayments(ctx context.Context, bookingID int64) ([]models.Payment, error) {
	args := m.Called(ctx, bookingID)
	ps, _ := args.Get(0).([]models.Payment)
	return ps, args.Error(1)
}

func (m *mockStore) WithinTx(ctx context.Context, fn func(domain.Tx) error) error {
	return m.Called(ctx, fn).Error(0)
}

type nopHistory struct{}

func (nopHistory) Emit(context.Context, domain.Tx, *models.TransitionRecord) error { return nil }
func (nopHistory) Publish(context.Context, models.TransitionRecord, *models.Booking) {}

func newMockedService(store domain.Store, now time.Time) *Service {
	logger := zerolog.New(io.Discard)
	return NewService(store, nopHistory{}, nil, Config{Now: func() time.Time { return now }}, &logger)
}

func TestRefusedRequestsNeverReachStore(t *testing.T) {
	store := &mockStore{}
	svc := newMockedService(store, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC))
	cust := Actor{UserID: 42, Role: access.RoleCustomer}

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"create without fields", Request{Action: models.ActionCreate, Actor: cust}, ErrValidation},
		{"create with id", Request{Action: models.ActionCreate, BookingID: 1, Actor: cust, New: &NewBooking{FieldID: 1}}, ErrValidation},
		{"system creates", Request{Action: models.ActionCreate, Actor: SystemActor(), New: &NewBooking{FieldID: 1}}, ErrUnauthorized},
		{"reversed window", Request{Action: models.ActionCreate, Actor: cust, New: &NewBooking{FieldID: 1, Date: "2025-06-15", StartTime: "11:00", EndTime: "10:00"}}, ErrValidation},
		{"no booking id", Request{Action: models.ActionConfirm, Actor: cust}, ErrValidation},
		{"fields on confirm", Request{Action: models.ActionConfirm, BookingID: 1, Actor: cust, New: &NewBooking{}}, ErrValidation},
		{"cancel without reason", Request{Action: models.ActionCancel, BookingID: 1, Actor: cust}, ErrValidation},
		{"system confirms", Request{Action: models.ActionConfirm, BookingID: 1, Actor: SystemActor()}, ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RequestTransition(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	store.AssertNotCalled(t, "GetBooking", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "WithinTx", mock.Anything, mock.Anything)
}

func TestEligibleForAutoCompletion(t *testing.T) {
	svc := newMockedService(&mockStore{}, time.Time{})
	b := &models.Booking{Date: "2025-06-15", StartTime: "14:00", EndTime: "16:00", Status: models.StatusConfirmed}

	assert.False(t, svc.EligibleForAutoCompletion(b, time.Date(2025, 6, 15, 16, 14, 59, 0, time.UTC)))
	assert.True(t, svc.EligibleForAutoCompletion(b, time.Date(2025, 6, 15, 16, 15, 0, 0, time.UTC)))
	// Zone of now does not matter, only the instant.
	assert.True(t, svc.EligibleForAutoCompletion(b, time.Date(2025, 6, 15, 23, 15, 0, 0, time.FixedZone("WIB", 7*3600))))

	pending := *b
	pending.Status = models.StatusPending
	assert.False(t, svc.EligibleForAutoCompletion(&pending, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)))

	done := *b
	at := time.Date(2025, 6, 15, 16, 20, 0, 0, time.UTC)
	done.CompletedAt = &at
	assert.False(t, svc.EligibleForAutoCompletion(&done, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)))
	assert.False(t, svc.EligibleForAutoCompletion(nil, at))
}
