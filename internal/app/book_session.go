package app

import (
	"context"

	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/saga"
)

// BookSessionInput books one seat in a live session, paid through the course
// attached to that session.
type BookSessionInput struct {
	UserID    string
	SessionID string
	CourseID  string
}

// BookSessionResult pairs the created order with its seat reservation.
type BookSessionResult struct {
	Order     *domain.Order
	BookingID string
}

// BookSession runs the slot-limited booking saga: check capacity, persist
// the order, reserve the seat under the session lock, request payment. A
// failed step rolls the earlier ones back (order marked failed, booking
// cancelled, payment cancelled).
func (s *Service) BookSession(ctx context.Context, in BookSessionInput) (*BookSessionResult, error) {
	if _, err := s.deps.Users.GetUser(ctx, in.UserID); err != nil {
		return nil, err
	}
	if err := s.deps.Resolver.CheckEnrollment(ctx, in.UserID, []string{in.CourseID}); err != nil {
		return nil, err
	}

	prices, err := s.deps.Resolver.ResolvePrices(ctx, []string{in.CourseID})
	if err != nil {
		return nil, err
	}

	placement := PlaceOrderInput{UserID: in.UserID, CourseIDs: []string{in.CourseID}}
	totals, items := s.computeTotals(ctx, placement, prices)

	order, err := domain.NewOrder(in.UserID, "", items,
		domain.NewMoney(totals.total, ""), totals.subtotal, totals.salesTax, totals.couponDiscount)
	if err != nil {
		return nil, err
	}
	if err := order.MarkPendingPayment(); err != nil {
		return nil, err
	}

	steps := []saga.Step{
		saga.NewCheckSessionAvailabilityStep(s.deps.Sessions, in.SessionID),
		saga.NewCreateOrderStep(s.deps.Orders, order),
		saga.NewCreateSessionBookingStep(s.deps.Bookings, s.deps.Locks, in.UserID),
		saga.NewRequestPaymentStep(s.deps.Publisher),
	}
	orchestrator := saga.NewOrchestrator(order.ID, steps, s.deps.SagaLogs, s.deps.Logger, s.deps.Metrics)

	sc := &saga.Context{OrderID: order.ID, SessionID: in.SessionID}
	if err := orchestrator.Start(ctx, sc); err != nil {
		return nil, err
	}

	s.deps.Metrics.OrdersPlaced.Inc()
	return &BookSessionResult{Order: order, BookingID: sc.BookingID}, nil
}
