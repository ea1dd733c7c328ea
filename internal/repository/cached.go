package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/edulearn/order-service/internal/cache"
	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/telemetry"
)

// CachedOrderRepository wraps an OrderRepository with a cache-aside read
// path. Writes go to the source of truth first and then invalidate every
// cache view of the affected order; reads consult the cache and fall back.
// Cache failures are logged and ignored: the database always wins.
type CachedOrderRepository struct {
	inner   OrderRepository
	cache   cache.Cache
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

func NewCachedOrderRepository(inner OrderRepository, c cache.Cache, logger *slog.Logger, metrics *telemetry.Metrics) *CachedOrderRepository {
	return &CachedOrderRepository{inner: inner, cache: c, logger: logger, metrics: metrics}
}

// Save persists the aggregate and invalidates the by-id, by-idempotency-key
// and per-user list entries. Invalidation instead of write-through keeps the
// cache from ever holding a value the database rejected.
func (r *CachedOrderRepository) Save(ctx context.Context, o *domain.Order) error {
	if err := r.inner.Save(ctx, o); err != nil {
		return err
	}

	keys := []string{orderKey(o.ID)}
	if o.IdempotencyKey != "" {
		keys = append(keys, idempotencyCacheKey(o.IdempotencyKey))
	}
	if err := r.cache.Delete(ctx, keys...); err != nil {
		r.logger.WarnContext(ctx, "failed to invalidate order cache", "order_id", o.ID, "error", err)
	}
	if err := r.cache.DeletePattern(ctx, userOrdersPattern(o.UserID)); err != nil {
		r.logger.WarnContext(ctx, "failed to invalidate user order lists", "user_id", o.UserID, "error", err)
	}
	return nil
}

func (r *CachedOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	key := orderKey(id)
	if o := r.lookupOrder(ctx, key, "order"); o != nil {
		return o, nil
	}

	o, err := r.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, o, orderTTL)
	return o, nil
}

func (r *CachedOrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	ck := idempotencyCacheKey(key)
	if o := r.lookupOrder(ctx, ck, "idempotency"); o != nil {
		return o, nil
	}

	o, err := r.inner.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	r.store(ctx, ck, o, orderTTL)
	return o, nil
}

// userOrdersPage is the cached shape of one listing page.
type userOrdersPage struct {
	Orders []*domain.Order `json:"orders"`
	Total  int64           `json:"total"`
}

func (r *CachedOrderRepository) FindByUserID(ctx context.Context, userID string, q ListQuery) ([]*domain.Order, int64, error) {
	q = q.Normalize()
	if _, err := ExpandStatusFilter(q.Status); err != nil {
		return nil, 0, err
	}

	key := userOrdersKey(userID, q)
	if raw := r.lookupRaw(ctx, key, "user_orders"); raw != "" {
		var page userOrdersPage
		if err := json.Unmarshal([]byte(raw), &page); err == nil {
			return page.Orders, page.Total, nil
		}
		r.dropCorrupt(ctx, key)
	}

	orders, total, err := r.inner.FindByUserID(ctx, userID, q)
	if err != nil {
		return nil, 0, err
	}
	r.store(ctx, key, userOrdersPage{Orders: orders, Total: total}, userOrdersTTL)
	return orders, total, nil
}

// RevenueStats always hits the database: it is an admin roll-up where
// freshness matters more than latency.
func (r *CachedOrderRepository) RevenueStats(ctx context.Context) (*RevenueStats, error) {
	return r.inner.RevenueStats(ctx)
}

// lookupOrder returns the cached order for key, or nil on miss, cache error
// or corruption.
func (r *CachedOrderRepository) lookupOrder(ctx context.Context, key, kind string) *domain.Order {
	raw := r.lookupRaw(ctx, key, kind)
	if raw == "" {
		return nil
	}
	var o domain.Order
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		r.dropCorrupt(ctx, key)
		return nil
	}
	return &o
}

func (r *CachedOrderRepository) lookupRaw(ctx context.Context, key, kind string) string {
	raw, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
		return ""
	}
	if raw == "" {
		r.metrics.CacheMisses.WithLabelValues(kind).Inc()
		return ""
	}
	r.metrics.CacheHits.WithLabelValues(kind).Inc()
	return raw
}

func (r *CachedOrderRepository) store(ctx context.Context, key string, v any, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, string(b), ttl); err != nil {
		r.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
}

func (r *CachedOrderRepository) dropCorrupt(ctx context.Context, key string) {
	r.logger.WarnContext(ctx, "dropping corrupt cache entry", "key", key)
	if err := r.cache.Delete(ctx, key); err != nil {
		r.logger.WarnContext(ctx, "failed to drop corrupt cache entry", "key", key, "error", err)
	}
}
