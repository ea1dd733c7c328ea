package broker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/telemetry"
)

type published struct {
	topic string
	key   string
	event any
}

type fakePublisher struct {
	messages []published
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, topic, key string, event any) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{topic: topic, key: key, event: event})
	return nil
}

func newTestConsumer(handlers map[string]HandlerFunc, dlq *fakePublisher) *Consumer {
	return &Consumer{
		handlers: handlers,
		dlq:      dlq,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:  telemetry.NewMetrics(prometheus.NewRegistry()),
	}
}

func paymentMessage(t *testing.T, topic, orderID string) kafka.Message {
	t.Helper()
	event := domain.PaymentOutcomeEvent{
		EventType: "payment.succeeded",
		Timestamp: 1700000000000,
		Payload:   domain.PaymentOutcomePayload{OrderID: orderID, PaymentID: "pay-1", Provider: "stripe"},
	}
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Topic: topic, Value: value}
}

func TestConsumerRoutesToHandler(t *testing.T) {
	var got domain.PaymentOutcomeEvent
	handlers := map[string]HandlerFunc{
		domain.TopicPaymentSucceeded: func(_ context.Context, e domain.PaymentOutcomeEvent) error {
			got = e
			return nil
		},
	}
	dlq := &fakePublisher{}
	c := newTestConsumer(handlers, dlq)

	c.handle(context.Background(), paymentMessage(t, domain.TopicPaymentSucceeded, "order-1"))

	assert.Equal(t, "order-1", got.Payload.OrderID)
	assert.Empty(t, dlq.messages)
}

func TestConsumerSendsUndecodableToDLQ(t *testing.T) {
	handlers := map[string]HandlerFunc{
		domain.TopicPaymentFailed: func(context.Context, domain.PaymentOutcomeEvent) error {
			t.Fatal("handler must not run for undecodable messages")
			return nil
		},
	}
	dlq := &fakePublisher{}
	c := newTestConsumer(handlers, dlq)

	c.handle(context.Background(), kafka.Message{
		Topic: domain.TopicPaymentFailed,
		Value: []byte("{not valid json"),
	})

	require.Len(t, dlq.messages, 1)
	assert.Equal(t, domain.TopicDLQ, dlq.messages[0].topic)

	event, ok := dlq.messages[0].event.(domain.DLQEvent)
	require.True(t, ok)
	assert.Equal(t, domain.TopicPaymentFailed, event.OriginalTopic)
	assert.Equal(t, "{not valid json", event.OriginalMessage)
	assert.Equal(t, "JSONDecodeError", event.Error)
}

func TestConsumerSendsHandlerFailureToDLQ(t *testing.T) {
	handlers := map[string]HandlerFunc{
		domain.TopicPaymentTimeout: func(context.Context, domain.PaymentOutcomeEvent) error {
			return errors.New("order not found")
		},
	}
	dlq := &fakePublisher{}
	c := newTestConsumer(handlers, dlq)

	c.handle(context.Background(), paymentMessage(t, domain.TopicPaymentTimeout, "order-9"))

	require.Len(t, dlq.messages, 1)
	event, ok := dlq.messages[0].event.(domain.DLQEvent)
	require.True(t, ok)
	assert.Equal(t, "payment.succeeded", event.EventType)
	assert.Equal(t, "order not found", event.Error)
	assert.Contains(t, event.OriginalMessage, "order-9")
}

func TestConsumerUnknownTopicGoesToDLQ(t *testing.T) {
	dlq := &fakePublisher{}
	c := newTestConsumer(map[string]HandlerFunc{}, dlq)

	c.handle(context.Background(), kafka.Message{Topic: "mystery.topic", Value: []byte("{}")})

	require.Len(t, dlq.messages, 1)
	event := dlq.messages[0].event.(domain.DLQEvent)
	assert.Equal(t, "mystery.topic", event.OriginalTopic)
	assert.Equal(t, "no handler registered for topic", event.Error)
}
