package app

import (
	"context"

	"github.com/edulearn/order-service/internal/domain"
)

// RestoreOrder forces a failed or expired order back to CREATED so payment
// can be re-attempted. Reset bypasses the transition table by design, so the
// use case gates it: only the order's owner may restore, and an order that
// settled successfully stays settled.
func (s *Service) RestoreOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.deps.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		// Not-found instead of forbidden: don't reveal other users' orders.
		return nil, domain.ErrOrderNotFound
	}
	switch order.Status {
	case domain.StatusSucceeded, domain.StatusRefunded:
		return nil, &domain.Error{Code: domain.ECONFLICT, Message: "settled orders cannot be restored"}
	case domain.StatusCreated:
		return order, nil
	}

	order.Reset()
	if err := s.deps.Orders.Save(ctx, order); err != nil {
		return nil, err
	}
	s.deps.Logger.InfoContext(ctx, "order restored for payment retry", "order_id", order.ID)
	return order, nil
}
