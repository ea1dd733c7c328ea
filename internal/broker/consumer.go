package broker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/telemetry"
)

// HandlerFunc processes one decoded payment event. A returned error sends
// the event to the dead-letter queue; the message is committed either way.
type HandlerFunc func(ctx context.Context, event domain.PaymentOutcomeEvent) error

// Consumer reads the payment.order.* topics as one consumer group and routes
// each message to its topic handler. Undecodable or rejected messages go to
// the DLQ instead of blocking the partition.
type Consumer struct {
	reader   *kafka.Reader
	handlers map[string]HandlerFunc
	dlq      Publisher
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

func NewConsumer(brokers []string, groupID string, handlers map[string]HandlerFunc, dlq Publisher, logger *slog.Logger, metrics *telemetry.Metrics) *Consumer {
	topics := make([]string, 0, len(handlers))
	for topic := range handlers {
		topics = append(topics, topic)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		GroupTopics: topics,
		MaxBytes:    10e6, // 10MB
	})
	return &Consumer{
		reader:   reader,
		handlers: handlers,
		dlq:      dlq,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run consumes until ctx is cancelled. Each message is processed and then
// committed exactly once, so a crash between the two re-delivers the message
// and the handlers must stay idempotent.
func (c *Consumer) Run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			c.logger.ErrorContext(ctx, "failed to fetch message", "error", err)
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.ErrorContext(ctx, "failed to commit message",
				"topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	handler, ok := c.handlers[msg.Topic]
	if !ok {
		c.deadLetter(ctx, msg.Topic, "", string(msg.Value), "no handler registered for topic")
		return
	}

	var event domain.PaymentOutcomeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.WarnContext(ctx, "undecodable message",
			"topic", msg.Topic, "offset", msg.Offset, "error", err)
		c.deadLetter(ctx, msg.Topic, "", string(msg.Value), "JSONDecodeError")
		return
	}

	if err := handler(ctx, event); err != nil {
		c.logger.ErrorContext(ctx, "payment event rejected",
			"topic", msg.Topic, "order_id", event.Payload.OrderID, "error", err)
		payload, merr := json.Marshal(event)
		if merr != nil {
			payload = msg.Value
		}
		c.deadLetter(ctx, msg.Topic, event.EventType, string(payload), err.Error())
		return
	}

	c.metrics.EventsHandled.WithLabelValues(msg.Topic, "ok").Inc()
}

// deadLetter forwards a failed message to the DLQ. A DLQ publish failure is
// logged and the message is still committed: one poison message must not
// stall the whole partition.
func (c *Consumer) deadLetter(ctx context.Context, topic, eventType, original, reason string) {
	c.metrics.EventsHandled.WithLabelValues(topic, "dlq").Inc()

	dlqEvent := domain.DLQEvent{
		EventType:       eventType,
		OriginalTopic:   topic,
		OriginalMessage: original,
		Error:           reason,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.dlq.Publish(ctx, domain.TopicDLQ, topic, dlqEvent); err != nil {
		c.logger.ErrorContext(ctx, "failed to publish to dlq",
			"topic", topic, "reason", reason, "error", err)
	}
}
