package httpx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulearn/order-service/internal/app"
	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/repository"
	"github.com/edulearn/order-service/internal/saga"
)

type stubService struct {
	placeOrder   func(ctx context.Context, in app.PlaceOrderInput) (*domain.Order, error)
	getOrder     func(ctx context.Context, id string) (*domain.Order, error)
	restoreOrder func(ctx context.Context, userID, orderID string) (*domain.Order, error)
	getOrders    func(ctx context.Context, userID string, q repository.ListQuery) ([]*domain.Order, int64, error)
	getSagaState func(ctx context.Context, sagaID string) (*saga.Entry, error)
	bookSession  func(ctx context.Context, in app.BookSessionInput) (*app.BookSessionResult, error)
}

func (s *stubService) PlaceOrder(ctx context.Context, in app.PlaceOrderInput) (*domain.Order, error) {
	return s.placeOrder(ctx, in)
}

func (s *stubService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return s.getOrder(ctx, id)
}

func (s *stubService) GetOrderStatus(ctx context.Context, id string) (domain.OrderStatus, error) {
	o, err := s.getOrder(ctx, id)
	if err != nil {
		return "", err
	}
	return o.Status, nil
}

func (s *stubService) RestoreOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	return s.restoreOrder(ctx, userID, orderID)
}

func (s *stubService) GetOrders(ctx context.Context, userID string, q repository.ListQuery) ([]*domain.Order, int64, error) {
	return s.getOrders(ctx, userID, q)
}

func (s *stubService) GetRevenueStats(context.Context) (*repository.RevenueStats, error) {
	return &repository.RevenueStats{RevenueThisMonth: 19600, RevenueLastMonth: 4200, Currency: "USD"}, nil
}

func (s *stubService) GetSagaState(ctx context.Context, sagaID string) (*saga.Entry, error) {
	return s.getSagaState(ctx, sagaID)
}

func (s *stubService) BookSession(ctx context.Context, in app.BookSessionInput) (*app.BookSessionResult, error) {
	return s.bookSession(ctx, in)
}

func newServer(svc OrderService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(NewHandler(svc, logger))
}

func sampleOrder(t *testing.T) *domain.Order {
	t.Helper()
	o, err := domain.NewOrder("user-1", "",
		[]domain.OrderItem{{ID: "it-1", CourseID: "go-101", Price: 800}},
		domain.NewMoney(800, "USD"), 1000, 0, 0)
	require.NoError(t, err)
	return o
}

func TestPlaceOrderEndpoint(t *testing.T) {
	order := sampleOrder(t)
	var captured app.PlaceOrderInput
	srv := newServer(&stubService{
		placeOrder: func(_ context.Context, in app.PlaceOrderInput) (*domain.Order, error) {
			captured = in
			return order, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders",
		strings.NewReader(`{"course_ids":["go-101"],"coupon_code":"WELCOME"}`))
	req.Header.Set(HeaderUserID, "user-1")
	req.Header.Set("Idempotency-Key", "idem-9")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "user-1", captured.UserID)
	assert.Equal(t, []string{"go-101"}, captured.CourseIDs)
	assert.Equal(t, "WELCOME", captured.CouponCode)
	assert.Equal(t, "idem-9", captured.IdempotencyKey)

	var resp OrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, order.ID, resp.ID)
	assert.Equal(t, int64(800), resp.Total)
}

func TestPlaceOrderRequiresUser(t *testing.T) {
	srv := newServer(&stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"course_ids":["a"]}`))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlaceOrderUnavailableCoursesBody(t *testing.T) {
	srv := newServer(&stubService{
		placeOrder: func(context.Context, app.PlaceOrderInput) (*domain.Order, error) {
			return nil, &domain.UnavailableCoursesError{Courses: []domain.CourseStatus{
				{CourseID: "draft-1", Status: "draft"},
			}}
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"course_ids":["draft-1"]}`))
	req.Header.Set(HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.EUNAVAILABLE, resp.Error)
	assert.Equal(t, []string{"draft-1: draft"}, resp.Details)
}

func TestGetOrderNotFound(t *testing.T) {
	srv := newServer(&stubService{
		getOrder: func(context.Context, string) (*domain.Order, error) {
			return nil, domain.ErrOrderNotFound
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ghost", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.ENOTFOUND, resp.Error)
}

func TestGetOrdersPassesQuery(t *testing.T) {
	var captured repository.ListQuery
	srv := newServer(&stubService{
		getOrders: func(_ context.Context, _ string, q repository.ListQuery) ([]*domain.Order, int64, error) {
			captured = q
			return nil, 0, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/orders?page=3&page_size=5&sort_by=amount&sort_order=asc&status=pending", nil)
	req.Header.Set(HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, captured.Page)
	assert.Equal(t, 5, captured.PageSize)
	assert.Equal(t, "amount", captured.SortBy)
	assert.Equal(t, "asc", captured.SortOrder)
	assert.Equal(t, "pending", captured.Status)
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	srv := newServer(&stubService{
		getOrder: func(context.Context, string) (*domain.Order, error) {
			return nil, assert.AnError
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/any", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.EINTERNAL, resp.Error)
	assert.Equal(t, "internal error", resp.Message, "no transport details leak to the caller")
}

func TestRevenueStatsEndpoint(t *testing.T) {
	srv := newServer(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/revenue-stats", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RevenueStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(19600), resp.RevenueThisMonth)
	assert.Equal(t, int64(4200), resp.RevenueLastMonth)
	assert.Equal(t, "USD", resp.Currency)
}

func TestSagaStateEndpoint(t *testing.T) {
	srv := newServer(&stubService{
		getSagaState: func(_ context.Context, sagaID string) (*saga.Entry, error) {
			assert.Equal(t, "order-9", sagaID)
			return &saga.Entry{
				SagaID:        "order-9",
				Status:        saga.StatusFailed,
				CurrentStep:   "request_payment",
				ErrorMessages: `["step request_payment failed: broker unavailable"]`,
				UpdatedAt:     time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/sagas/order-9", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SagaStateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(saga.StatusFailed), resp.Status)
	assert.Equal(t, "request_payment", resp.CurrentStep)
	assert.Equal(t, []string{"step request_payment failed: broker unavailable"}, resp.Errors)
	assert.Equal(t, "2026-09-01T12:00:00Z", resp.UpdatedAt)
}

func TestSagaStateNotFound(t *testing.T) {
	srv := newServer(&stubService{
		getSagaState: func(context.Context, string) (*saga.Entry, error) {
			return nil, &domain.Error{Code: domain.ENOTFOUND, Message: `saga "ghost" not found`}
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/sagas/ghost", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookSessionEndpoint(t *testing.T) {
	order := sampleOrder(t)
	srv := newServer(&stubService{
		bookSession: func(_ context.Context, in app.BookSessionInput) (*app.BookSessionResult, error) {
			assert.Equal(t, "sess-1", in.SessionID)
			return &app.BookSessionResult{Order: order, BookingID: "book-1"}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings",
		strings.NewReader(`{"session_id":"sess-1","course_id":"live-101"}`))
	req.Header.Set(HeaderUserID, "user-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp BookSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "book-1", resp.BookingID)
	assert.Equal(t, order.ID, resp.Order.ID)
}
