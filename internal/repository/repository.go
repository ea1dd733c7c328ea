// Package repository persists orders and session bookings in Postgres and
// layers a cache-aside read path on top. The cache is strictly an
// optimization: every read falls back to the database, and corrupt cache
// entries are dropped and re-fetched.
package repository

import (
	"context"
	"fmt"

	"github.com/edulearn/order-service/internal/domain"
)

// ListQuery shapes a paginated order listing.
type ListQuery struct {
	Page     int
	PageSize int
	// SortBy is one of created_at, updated_at, amount.
	SortBy string
	// SortOrder is asc or desc.
	SortOrder string
	// Status is the public filter value (pending, succeeded, failed,
	// cancelled, refunded) or empty for all.
	Status string
}

// Normalize clamps paging and sorting to safe values.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 10
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	switch q.SortBy {
	case "created_at", "updated_at", "amount":
	default:
		q.SortBy = "created_at"
	}
	if q.SortOrder != "asc" {
		q.SortOrder = "desc"
	}
	return q
}

// statusFilters maps the public status filter onto the internal lifecycle
// states it covers. "pending" covers everything still in flight, and
// "cancelled" includes expirations.
var statusFilters = map[string][]domain.OrderStatus{
	"pending":   {domain.StatusCreated, domain.StatusPendingPayment, domain.StatusProcessing},
	"succeeded": {domain.StatusSucceeded},
	"failed":    {domain.StatusFailed},
	"cancelled": {domain.StatusCancelled, domain.StatusExpired},
	"refunded":  {domain.StatusRefunded},
}

// ExpandStatusFilter resolves a public filter value to lifecycle states.
// An empty filter means no filtering.
func ExpandStatusFilter(status string) ([]domain.OrderStatus, error) {
	if status == "" {
		return nil, nil
	}
	states, ok := statusFilters[status]
	if !ok {
		return nil, &domain.Error{Code: domain.EINVALID, Message: fmt.Sprintf("unknown status filter %q", status)}
	}
	return states, nil
}

// RevenueStats sums succeeded order totals, in minor units, for the current
// and previous calendar month.
type RevenueStats struct {
	RevenueThisMonth int64  `json:"revenue_this_month"`
	RevenueLastMonth int64  `json:"revenue_last_month"`
	Currency         string `json:"currency"`
}

// OrderRepository is the persistence port for the order aggregate.
// Save writes the whole aggregate (order, items, payment details) in one
// transaction; a duplicate idempotency key surfaces as domain.ErrConcurrency.
type OrderRepository interface {
	Save(ctx context.Context, order *domain.Order) error
	// FindByID returns domain.ErrOrderNotFound when absent.
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	// FindByIdempotencyKey returns domain.ErrOrderNotFound when absent.
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	// FindByUserID returns one page of the user's orders plus the total count
	// for the same filter.
	FindByUserID(ctx context.Context, userID string, q ListQuery) ([]*domain.Order, int64, error)
	RevenueStats(ctx context.Context) (*RevenueStats, error)
}

// BookingRepository persists live-session seat reservations.
type BookingRepository interface {
	Save(ctx context.Context, booking *domain.SessionBooking) error
	FindByID(ctx context.Context, id string) (*domain.SessionBooking, error)
	// CountConfirmedForSession counts active seats, used to enforce capacity
	// under the session lock.
	CountConfirmedForSession(ctx context.Context, sessionID string) (int, error)
}
