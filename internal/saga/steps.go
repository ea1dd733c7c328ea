package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edulearn/order-service/internal/broker"
	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/repository"
)

// CreateOrderStep persists the order aggregate. Its compensation marks the
// order failed so a half-finished saga never leaves an order payable.
type CreateOrderStep struct {
	orders repository.OrderRepository
	order  *domain.Order
}

func NewCreateOrderStep(orders repository.OrderRepository, order *domain.Order) *CreateOrderStep {
	return &CreateOrderStep{orders: orders, order: order}
}

func (s *CreateOrderStep) Name() string { return "create_order" }

func (s *CreateOrderStep) Execute(ctx context.Context, sc *Context) error {
	if err := s.orders.Save(ctx, s.order); err != nil {
		return fmt.Errorf("persist order: %w", err)
	}
	sc.OrderID = s.order.ID
	sc.Timestamp = time.Now().UTC()
	return nil
}

func (s *CreateOrderStep) Compensate(ctx context.Context, _ *Context) error {
	if err := s.order.MarkFailed(); err != nil {
		return err
	}
	return s.orders.Save(ctx, s.order)
}

// RequestPaymentStep asks the payment service to start a charge. Its
// compensation publishes a cancellation so the charge is never completed for
// a rolled-back order.
type RequestPaymentStep struct {
	publisher broker.Publisher
}

func NewRequestPaymentStep(publisher broker.Publisher) *RequestPaymentStep {
	return &RequestPaymentStep{publisher: publisher}
}

func (s *RequestPaymentStep) Name() string { return "request_payment" }

func (s *RequestPaymentStep) Execute(ctx context.Context, sc *Context) error {
	event := domain.PaymentRequestEvent{
		EventType:     "payment.requested",
		OrderID:       sc.OrderID,
		Status:        "pending",
		TransactionID: uuid.NewString(),
		Timestamp:     sc.Timestamp.Format(time.RFC3339),
	}
	if err := s.publisher.Publish(ctx, domain.TopicPaymentRequested, sc.OrderID, event); err != nil {
		return fmt.Errorf("request payment: %w", err)
	}
	return nil
}

func (s *RequestPaymentStep) Compensate(ctx context.Context, sc *Context) error {
	event := domain.PaymentRequestEvent{
		EventType:     "payment.cancelled",
		OrderID:       sc.OrderID,
		Status:        "cancelled",
		TransactionID: uuid.NewString(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	return s.publisher.Publish(ctx, domain.TopicPaymentCancelled, sc.OrderID, event)
}
