package app

import (
	"context"

	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/repository"
	"github.com/edulearn/order-service/internal/saga"
)

func (s *Service) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.deps.Orders.FindByID(ctx, orderID)
}

func (s *Service) GetOrderStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	order, err := s.deps.Orders.FindByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	return order.Status, nil
}

// GetOrders returns one page of the user's orders plus the total count for
// the same filter. The status filter uses the public vocabulary (pending,
// succeeded, failed, cancelled, refunded).
func (s *Service) GetOrders(ctx context.Context, userID string, q repository.ListQuery) ([]*domain.Order, int64, error) {
	return s.deps.Orders.FindByUserID(ctx, userID, q)
}

func (s *Service) GetRevenueStats(ctx context.Context) (*repository.RevenueStats, error) {
	return s.deps.Orders.RevenueStats(ctx)
}

// GetSagaState returns the latest saga log entry for an order's placement or
// booking saga, for ops inspection.
func (s *Service) GetSagaState(ctx context.Context, sagaID string) (*saga.Entry, error) {
	if s.deps.SagaStates == nil {
		return nil, &domain.Error{Code: domain.ENOTFOUND, Message: "saga state tracking is not enabled"}
	}
	return s.deps.SagaStates.GetLatest(ctx, sagaID)
}
