package app

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/pricing"
)

// PlaceOrderInput carries one placement request.
type PlaceOrderInput struct {
	UserID         string
	CourseIDs      []string
	CouponCode     string
	IdempotencyKey string
}

// PlaceOrder runs the placement workflow: idempotency short-circuit, user
// check, concurrent enrollment and pricing resolution, minor-unit totals,
// persist in PENDING_PAYMENT, and a best-effort order-created notification.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	if len(in.CourseIDs) == 0 {
		return nil, &domain.Error{Code: domain.EINVALID, Message: "at least one course is required"}
	}

	if in.IdempotencyKey != "" {
		existing, err := s.deps.Orders.FindByIdempotencyKey(ctx, in.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
	}

	if _, err := s.deps.Users.GetUser(ctx, in.UserID); err != nil {
		return nil, err
	}

	// Enrollment and pricing are independent, run them in parallel.
	var prices map[string]pricing.CoursePrice
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.deps.Resolver.CheckEnrollment(gctx, in.UserID, in.CourseIDs)
	})
	g.Go(func() error {
		var err error
		prices, err = s.deps.Resolver.ResolvePrices(gctx, in.CourseIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totals, items := s.computeTotals(ctx, in, prices)

	order, err := domain.NewOrder(in.UserID, in.IdempotencyKey, items,
		domain.NewMoney(totals.total, ""), totals.subtotal, totals.salesTax, totals.couponDiscount)
	if err != nil {
		return nil, err
	}
	if err := order.MarkPendingPayment(); err != nil {
		return nil, err
	}

	if err := s.deps.Orders.Save(ctx, order); err != nil {
		// Two requests raced on the same idempotency key: the other writer
		// won, return its order.
		if errors.Is(err, domain.ErrConcurrency) && in.IdempotencyKey != "" {
			return s.deps.Orders.FindByIdempotencyKey(ctx, in.IdempotencyKey)
		}
		return nil, err
	}
	s.deps.Metrics.OrdersPlaced.Inc()

	s.publishOrderCreated(ctx, order, totals)
	return order, nil
}

type orderTotals struct {
	subtotal       int64
	itemDiscount   int64
	couponDiscount int64
	salesTax       int64
	total          int64
}

// computeTotals prices the requested lines in minor units. Duplicated course
// ids are priced independently, and each persisted line carries the
// discounted price.
func (s *Service) computeTotals(ctx context.Context, in PlaceOrderInput, prices map[string]pricing.CoursePrice) (orderTotals, []domain.OrderItem) {
	var t orderTotals
	items := make([]domain.OrderItem, 0, len(in.CourseIDs))

	for _, courseID := range in.CourseIDs {
		p := prices[courseID]
		list := toMinorUnits(p.Price)
		discounted := toMinorUnits(p.DiscountedPrice)

		t.subtotal += list
		if d := list - discounted; d > 0 {
			t.itemDiscount += d
		} else {
			discounted = list
		}
		items = append(items, domain.OrderItem{
			ID:       uuid.NewString(),
			CourseID: courseID,
			Price:    discounted,
		})
	}

	if in.CouponCode != "" {
		amount, err := s.deps.Coupons.Validate(ctx, in.UserID, in.CouponCode, t.subtotal)
		if err != nil {
			s.deps.Logger.WarnContext(ctx, "coupon validation failed, ignoring coupon",
				"coupon", in.CouponCode, "error", err)
			amount = 0
		}
		t.couponDiscount = clamp(amount, 0, t.subtotal-t.itemDiscount)
	}

	taxable := t.subtotal - t.itemDiscount - t.couponDiscount
	t.salesTax = int64(math.Round(float64(taxable) * s.deps.TaxRate))
	t.total = taxable + t.salesTax
	return t, items
}

// publishOrderCreated is a notification, not a saga step: a publish failure
// is logged and the placed order is still returned.
func (s *Service) publishOrderCreated(ctx context.Context, order *domain.Order, totals orderTotals) {
	event := domain.OrderCreatedEvent{
		EventType:      "order.created",
		OrderID:        order.ID,
		UserID:         order.UserID,
		Items:          eventItems(order),
		Subtotal:       totals.subtotal,
		Discount:       totals.itemDiscount,
		CouponDiscount: totals.couponDiscount,
		Tax:            totals.salesTax,
		Total:          totals.total,
		Currency:       order.Amount.Currency,
	}
	if err := s.deps.Publisher.Publish(ctx, domain.TopicOrderCreated, order.ID, event); err != nil {
		s.deps.Logger.ErrorContext(ctx, "failed to publish order created event",
			"order_id", order.ID, "error", err)
	}
}

func eventItems(order *domain.Order) []domain.EventItem {
	items := make([]domain.EventItem, len(order.Items))
	for i, it := range order.Items {
		items[i] = domain.EventItem{CourseID: it.CourseID, Price: it.Price}
	}
	return items
}

func toMinorUnits(major float64) int64 {
	return int64(math.Round(major * 100))
}

func clamp(v, lo, hi int64) int64 {
	if hi < lo {
		hi = lo
	}
	return min(max(v, lo), hi)
}
