package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/edulearn/order-service/internal/app"
	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/repository"
	"github.com/edulearn/order-service/internal/saga"
)

// OrderService is the use case surface the HTTP edge depends on,
// implemented by app.Service.
type OrderService interface {
	PlaceOrder(ctx context.Context, in app.PlaceOrderInput) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetOrderStatus(ctx context.Context, orderID string) (domain.OrderStatus, error)
	RestoreOrder(ctx context.Context, userID, orderID string) (*domain.Order, error)
	GetOrders(ctx context.Context, userID string, q repository.ListQuery) ([]*domain.Order, int64, error)
	GetRevenueStats(ctx context.Context) (*repository.RevenueStats, error)
	GetSagaState(ctx context.Context, sagaID string) (*saga.Entry, error)
	BookSession(ctx context.Context, in app.BookSessionInput) (*app.BookSessionResult, error)
}

// Handler exposes the order use cases over HTTP.
type Handler struct {
	svc    OrderService
	logger *slog.Logger
}

func NewHandler(svc OrderService, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// PlaceOrder places a new order. Repeating the request with the same
// Idempotency-Key header returns the original order.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing "+HeaderUserID+" header", nil)
		return
	}

	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	if len(req.CourseIDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "course_ids is required", nil)
		return
	}

	order, err := h.svc.PlaceOrder(r.Context(), app.PlaceOrderInput{
		UserID:         userID,
		CourseIDs:      req.CourseIDs,
		CouponCode:     req.CouponCode,
		IdempotencyKey: idempotencyKeyFrom(r.Context()),
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrderToResponse(order))
}

func (h *Handler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

func (h *Handler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	status, err := h.svc.GetOrderStatus(r.Context(), orderID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OrderStatusResponse{OrderID: orderID, Status: string(status)})
}

// RestoreOrder resets a failed or expired order for a payment retry. Only
// the order's owner may restore it.
func (h *Handler) RestoreOrder(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing "+HeaderUserID+" header", nil)
		return
	}

	order, err := h.svc.RestoreOrder(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// GetOrders lists the caller's orders, paginated and optionally filtered by
// the public status vocabulary.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing "+HeaderUserID+" header", nil)
		return
	}

	q := repository.ListQuery{
		Page:      intQuery(r, "page"),
		PageSize:  intQuery(r, "page_size"),
		SortBy:    r.URL.Query().Get("sort_by"),
		SortOrder: r.URL.Query().Get("sort_order"),
		Status:    r.URL.Query().Get("status"),
	}.Normalize()

	orders, total, err := h.svc.GetOrders(r.Context(), userID, q)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := OrderListResponse{
		Orders:   make([]OrderResponse, len(orders)),
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	for i, o := range orders {
		resp.Orders[i] = mapOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetRevenueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetRevenueStats(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapStatsToResponse(stats))
}

// GetSagaState returns the latest saga log entry for an order, for ops
// inspection of stuck or failed placements.
func (h *Handler) GetSagaState(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.GetSagaState(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSagaEntryToResponse(entry))
}

// BookSession reserves a live-session seat through the booking saga.
func (h *Handler) BookSession(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "missing "+HeaderUserID+" header", nil)
		return
	}

	var req BookSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error(), nil)
		return
	}
	if req.SessionID == "" || req.CourseID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session_id and course_id are required", nil)
		return
	}

	result, err := h.svc.BookSession(r.Context(), app.BookSessionInput{
		UserID:    userID,
		SessionID: req.SessionID,
		CourseID:  req.CourseID,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, BookSessionResponse{
		BookingID: result.BookingID,
		Order:     mapOrderToResponse(result.Order),
	})
}

// writeDomainError maps the error taxonomy onto HTTP statuses and a typed
// body. Unrecognised errors become an opaque 500: callers never see raw
// transport failures.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := statusForCode(code)
	message := err.Error()
	details := errorDetails(err)

	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	writeError(w, status, code, message, details)
}

func statusForCode(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT, domain.EENROLLED, domain.ELIFECYCLE:
		return http.StatusConflict
	case domain.EUNAVAILABLE:
		return http.StatusUnprocessableEntity
	case domain.ESAGA:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorDetails surfaces the per-item breakdown of aggregate errors.
func errorDetails(err error) []string {
	if ue, ok := asError[*domain.UnavailableCoursesError](err); ok {
		details := make([]string, len(ue.Courses))
		for i, c := range ue.Courses {
			details[i] = fmt.Sprintf("%s: %s", c.CourseID, c.Status)
		}
		return details
	}
	if ae, ok := asError[*domain.AlreadyEnrolledError](err); ok {
		return ae.CourseIDs
	}
	return nil
}

func asError[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}

func intQuery(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string, details []string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg, Details: details})
}
