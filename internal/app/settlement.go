package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edulearn/order-service/internal/domain"
)

// The settlement reconciler applies payment outcomes to orders. Every
// operation is idempotent against redelivery: the broker guarantees
// at-least-once, so the same outcome can arrive twice and late events can
// arrive after the order already settled.

// OnPaymentInitiated marks the order PROCESSING once the provider has picked
// up the charge.
func (s *Service) OnPaymentInitiated(ctx context.Context, event domain.PaymentOutcomeEvent) error {
	return s.withRetry(ctx, "payment_initiated", func() error {
		order, err := s.deps.Orders.FindByID(ctx, event.Payload.OrderID)
		if err != nil {
			return err
		}
		if order.Status == domain.StatusProcessing {
			return nil
		}
		if err := order.MarkProcessing(); err != nil {
			return err
		}
		return s.deps.Orders.Save(ctx, order)
	})
}

// OnPaymentSucceeded settles the order as SUCCEEDED and announces it.
func (s *Service) OnPaymentSucceeded(ctx context.Context, event domain.PaymentOutcomeEvent) error {
	return s.settle(ctx, "payment_succeeded", event, settlement{
		paymentStatus: domain.PaymentSuccess,
		markPayment:   (*domain.PaymentDetails).MarkSuccess,
		markOrder:     (*domain.Order).MarkCompleted,
		orderStatus:   domain.StatusSucceeded,
		topic:         domain.TopicOrderSucceeded,
		eventType:     "order.succeeded",
	})
}

// OnPaymentFailed settles the order as FAILED and announces it.
func (s *Service) OnPaymentFailed(ctx context.Context, event domain.PaymentOutcomeEvent) error {
	return s.settle(ctx, "payment_failed", event, settlement{
		paymentStatus: domain.PaymentFailed,
		markPayment:   (*domain.PaymentDetails).MarkFailed,
		markOrder:     (*domain.Order).MarkFailed,
		orderStatus:   domain.StatusFailed,
		topic:         domain.TopicOrderFailed,
		eventType:     "order.failed",
	})
}

// OnPaymentTimeout expires the order. Downstream consumers see a timeout
// identically to a failure.
func (s *Service) OnPaymentTimeout(ctx context.Context, event domain.PaymentOutcomeEvent) error {
	return s.settle(ctx, "payment_timeout", event, settlement{
		paymentStatus: domain.PaymentExpired,
		markPayment:   (*domain.PaymentDetails).MarkExpired,
		markOrder:     (*domain.Order).MarkExpired,
		orderStatus:   domain.StatusExpired,
		topic:         domain.TopicOrderFailed,
		eventType:     "order.failed",
	})
}

type settlement struct {
	paymentStatus domain.PaymentStatus
	markPayment   func(*domain.PaymentDetails) error
	markOrder     func(*domain.Order) error
	orderStatus   domain.OrderStatus
	topic         string
	eventType     string
}

func (s *Service) settle(ctx context.Context, name string, event domain.PaymentOutcomeEvent, out settlement) error {
	var settledOrder *domain.Order

	err := s.withRetry(ctx, name, func() error {
		order, err := s.deps.Orders.FindByID(ctx, event.Payload.OrderID)
		if err != nil {
			return err
		}

		// Redelivery of an outcome the order already reached is a no-op:
		// no error, no duplicate event.
		if order.Status == out.orderStatus &&
			order.PaymentDetails != nil && order.PaymentDetails.Status == out.paymentStatus {
			return nil
		}
		// A late, conflicting outcome for an already-settled order (e.g. a
		// timeout arriving after success) is dropped: settlement is
		// first-outcome-wins and events may be reordered across partitions.
		if settled(order) {
			s.deps.Logger.WarnContext(ctx, "dropping late payment outcome for settled order",
				"order_id", order.ID, "order_status", string(order.Status), "event_type", event.EventType)
			return nil
		}

		if order.PaymentDetails == nil {
			pd := domain.NewPaymentDetails(uuid.NewString(), event.Payload.PaymentID,
				event.Payload.Provider, event.Payload.ProviderOrderID, out.paymentStatus, eventTime(event))
			if err := order.SetPaymentDetails(pd); err != nil {
				return err
			}
		} else {
			pd := order.PaymentDetails
			pd.PaymentID = event.Payload.PaymentID
			pd.Provider = event.Payload.Provider
			pd.ProviderOrderID = event.Payload.ProviderOrderID
			if err := out.markPayment(pd); err != nil {
				return err
			}
		}

		if err := out.markOrder(order); err != nil {
			return err
		}
		if err := s.deps.Orders.Save(ctx, order); err != nil {
			return err
		}
		settledOrder = order
		return nil
	})
	if err != nil || settledOrder == nil {
		return err
	}

	outcome := domain.OrderOutcomeEvent{
		EventType: out.eventType,
		OrderID:   settledOrder.ID,
		UserID:    settledOrder.UserID,
		Items:     eventItems(settledOrder),
		Amount:    settledOrder.Amount.Amount,
		Currency:  settledOrder.Amount.Currency,
	}
	return s.withRetry(ctx, name+"_publish", func() error {
		if err := s.deps.Publisher.Publish(ctx, out.topic, settledOrder.ID, outcome); err != nil {
			return fmt.Errorf("publish %s: %w", out.topic, err)
		}
		return nil
	})
}

// settled reports whether the order already reached a payment outcome.
func settled(o *domain.Order) bool {
	switch o.Status {
	case domain.StatusSucceeded, domain.StatusFailed, domain.StatusExpired,
		domain.StatusCancelled, domain.StatusRefunded:
		return true
	}
	return false
}

func eventTime(event domain.PaymentOutcomeEvent) time.Time {
	if event.Timestamp == 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(event.Timestamp).UTC()
}
