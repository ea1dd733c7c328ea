package repository

import (
	"fmt"
	"time"
)

// Cache key namespace and TTLs for the order read path. List entries expire
// faster than single orders because they are invalidated only by pattern.
const (
	orderTTL      = time.Hour
	userOrdersTTL = 20 * time.Minute
)

func orderKey(id string) string {
	return "orders:" + id
}

func idempotencyCacheKey(key string) string {
	return "orders:idempotency_key:" + key
}

func userOrdersKey(userID string, q ListQuery) string {
	status := q.Status
	if status == "" {
		status = "all"
	}
	return fmt.Sprintf("user_orders:%s:p%d:s%d:o%s_%s:status:%s",
		userID, q.Page, q.PageSize, q.SortBy, q.SortOrder, status)
}

func userOrdersPattern(userID string) string {
	return "user_orders:" + userID + ":*"
}
