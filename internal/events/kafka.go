package events

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fieldbooking/internal/metrics"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// NewSyncProducer builds a sarama producer tuned for ordered, acknowledged delivery.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Timeout = 10 * time.Second
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	// same booking id, same partition
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return producer, nil
}

// KafkaForwarder copies bus events onto a Kafka topic.
type KafkaForwarder struct {
	producer sarama.SyncProducer
	topic    string
	logger   zerolog.Logger
}

func NewKafkaForwarder(producer sarama.SyncProducer, topic string, logger *zerolog.Logger) *KafkaForwarder {
	return &KafkaForwarder{
		producer: producer,
		topic:    topic,
		logger:   logger.With().Str("component", "kafka_forwarder").Logger(),
	}
}

// Attach subscribes the forwarder to eventType on bus.
func (f *KafkaForwarder) Attach(bus *EventBus, eventType string) {
	bus.Subscribe(eventType, f.Handle)
}

// Handle sends one event. The bus logs the returned error.
func (f *KafkaForwarder) Handle(_ context.Context, event Event) error {
	msg := &sarama.ProducerMessage{
		Topic:     f.topic,
		Key:       sarama.StringEncoder(event.Key),
		Value:     sarama.ByteEncoder(event.Payload),
		Headers:   recordHeaders(event),
		Timestamp: event.CreatedAt,
	}

	partition, offset, err := f.producer.SendMessage(msg)
	if err != nil {
		metrics.IncEventPublished("error")
		return fmt.Errorf("failed to send %s to Kafka: %w", event.Type, err)
	}
	metrics.IncEventPublished("ok")

	f.logger.Debug().
		Str("topic", f.topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Str("key", event.Key).
		Msg("event published")
	return nil
}

func recordHeaders(event Event) []sarama.RecordHeader {
	headers := []sarama.RecordHeader{
		{Key: []byte("event_type"), Value: []byte(event.Type)},
		{Key: []byte("created_at"), Value: []byte(event.CreatedAt.Format(time.RFC3339))},
	}

	keys := make([]string, 0, len(event.Headers))
	for k := range event.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(event.Headers[k])})
	}
	return headers
}

// Close closes the underlying producer.
func (f *KafkaForwarder) Close() error {
	if f.producer == nil {
		return nil
	}
	if err := f.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}
