// Package cache defines the key-value capability the order service needs:
// TTL'd get/set, single and pattern delete, and an auto-expiring distributed
// lock. The store is an optimization layer only — callers must treat any
// miss or corruption as "fetch from the source of truth".
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrLockNotAcquired is returned when another holder owns the lock.
var ErrLockNotAcquired = errors.New("cache: lock not acquired")

// Cache is the key-value capability consumed by repositories and resolvers.
type Cache interface {
	// Get returns the raw value, or ("", nil) on a miss.
	Get(ctx context.Context, key string) (string, error)
	// GetMany returns values aligned with keys; misses are empty strings.
	GetMany(ctx context.Context, keys []string) ([]string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetMany(ctx context.Context, entries map[string]string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern removes every key matching a glob pattern, e.g.
	// "user_orders:42:p*".
	DeletePattern(ctx context.Context, pattern string) error
	// Lock acquires an auto-expiring mutex on key and returns an unlock
	// function. Returns ErrLockNotAcquired if the lock is held elsewhere.
	Lock(ctx context.Context, key string, ttl time.Duration) (func(ctx context.Context) error, error)
}
