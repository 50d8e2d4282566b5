package events

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusPublish(t *testing.T) {
	bus := NewEventBus(nil)

	var got []Event
	bus.Subscribe(TypeBookingTransition, func(_ context.Context, e Event) error {
		got = append(got, e)
		return nil
	})
	bus.Subscribe(TypeBookingTransition, func(_ context.Context, e Event) error {
		return errors.New("handler down")
	})
	bus.Subscribe("other", func(_ context.Context, e Event) error {
		t.Fatal("unexpected delivery")
		return nil
	})

	bus.Publish(context.Background(), Event{Type: TypeBookingTransition, Key: "7"})
	bus.Publish(context.Background(), Event{Type: "unsubscribed"})

	require.Len(t, got, 1)
	assert.Equal(t, "7", got[0].Key)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestKafkaForwarderSends(t *testing.T) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"booking_id":7}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	logger := zerolog.Nop()
	fwd := NewKafkaForwarder(producer, "booking-transitions", &logger)
	bus := NewEventBus(&logger)
	fwd.Attach(bus, TypeBookingTransition)

	bus.Publish(context.Background(), Event{
		Type:    TypeBookingTransition,
		Key:     "7",
		Payload: []byte(`{"booking_id":7}`),
		Headers: map[string]string{"action": "confirm", "actor_id": "3"},
	})

	err := fwd.Handle(context.Background(), Event{Type: TypeBookingTransition, Key: "8", Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	require.NoError(t, fwd.Close())
}

func TestRecordHeadersSorted(t *testing.T) {
	headers := recordHeaders(Event{Type: "x", Headers: map[string]string{"b": "2", "a": "1"}})
	require.Len(t, headers, 4)
	assert.Equal(t, "event_type", string(headers[0].Key))
	assert.Equal(t, "a", string(headers[2].Key))
	assert.Equal(t, "b", string(headers[3].Key))
}
