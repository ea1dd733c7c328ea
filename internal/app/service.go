// Package app holds the use cases behind the service's public operations:
// placement, settlement, restore, queries and session booking. Each use case
// orchestrates the domain model through the capability interfaces and never
// talks to a concrete driver directly.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/edulearn/order-service/internal/broker"
	"github.com/edulearn/order-service/internal/cache"
	"github.com/edulearn/order-service/internal/clients"
	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/pricing"
	"github.com/edulearn/order-service/internal/repository"
	"github.com/edulearn/order-service/internal/saga"
	"github.com/edulearn/order-service/internal/telemetry"
)

// CouponValidator resolves a coupon code into an amount-off in minor units.
// The real validator is an external collaborator; the current implementation
// is a stub and placement treats its failure as "no discount".
type CouponValidator interface {
	Validate(ctx context.Context, userID, code string, subtotal int64) (int64, error)
}

// NoopCouponValidator accepts every code with zero discount.
type NoopCouponValidator struct{}

func (NoopCouponValidator) Validate(context.Context, string, string, int64) (int64, error) {
	return 0, nil
}

// Deps bundles everything the use cases need. All fields are required except
// Coupons, which defaults to the noop validator.
type Deps struct {
	Orders    repository.OrderRepository
	Bookings  repository.BookingRepository
	Users     clients.UserClient
	Sessions  clients.SessionClient
	Resolver  *pricing.Resolver
	Coupons   CouponValidator
	Publisher broker.Publisher
	SagaLogs  saga.LogRepository
	// SagaStates reads the saga audit trail back; nil disables inspection.
	SagaStates saga.LogReader
	Locks      cache.Cache
	Logger    *slog.Logger
	Metrics   *telemetry.Metrics
	// TaxRate is the sales tax applied to the discounted subtotal, in [0, 1).
	TaxRate float64
}

// Service implements the seven public operations.
type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	if deps.Coupons == nil {
		deps.Coupons = NoopCouponValidator{}
	}
	return &Service{deps: deps}
}

const maxAttempts = 3

// withRetry retries op up to three times with exponential backoff (1s base,
// 10s cap). Domain errors are business outcomes and fail immediately.
func (s *Service) withRetry(ctx context.Context, name string, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Second
	policy.MaxInterval = 10 * time.Second

	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if domain.IsDomainError(err) || errors.Is(err, context.Canceled) {
			return backoff.Permanent(err)
		}
		s.deps.Logger.WarnContext(ctx, "transient failure, will retry",
			"operation", name, "attempt", attempt, "error", err)
		return err
	}
	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(policy, maxAttempts-1), ctx))
}
