package httpx

import (
	"context"
	"net/http"
)

type contextKey string

const (
	contextKeyIdempotencyKey contextKey = "idempotency_key"
	contextKeyUserID         contextKey = "user_id"
)

// HeaderUserID is the authenticated user id injected by the gateway.
const HeaderUserID = "X-User-ID"

// ExtractRequestMetadata copies the Idempotency-Key and gateway-injected user
// id headers into the request context so handlers read typed values instead
// of headers.
func ExtractRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if key := r.Header.Get("Idempotency-Key"); key != "" {
			ctx = context.WithValue(ctx, contextKeyIdempotencyKey, key)
		}
		if userID := r.Header.Get(HeaderUserID); userID != "" {
			ctx = context.WithValue(ctx, contextKeyUserID, userID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func idempotencyKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(contextKeyIdempotencyKey).(string)
	return key
}

func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(contextKeyUserID).(string)
	return userID
}
