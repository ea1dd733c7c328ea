package httpx

import (
	"encoding/json"
	"time"

	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/repository"
	"github.com/edulearn/order-service/internal/saga"
)

type PlaceOrderRequest struct {
	CourseIDs  []string `json:"course_ids"`
	CouponCode string   `json:"coupon_code,omitempty"`
}

type BookSessionRequest struct {
	SessionID string `json:"session_id"`
	CourseID  string `json:"course_id"`
}

type OrderItemResponse struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Price    int64  `json:"price"`
}

type PaymentDetailsResponse struct {
	PaymentID       string `json:"payment_id"`
	Provider        string `json:"provider"`
	ProviderOrderID string `json:"provider_order_id"`
	Status          string `json:"status"`
}

type OrderResponse struct {
	ID             string                  `json:"id"`
	UserID         string                  `json:"user_id"`
	Status         string                  `json:"status"`
	Items          []OrderItemResponse     `json:"items"`
	SubTotal       int64                   `json:"sub_total"`
	Discount       int64                   `json:"discount"`
	SalesTax       int64                   `json:"sales_tax"`
	Total          int64                   `json:"total"`
	Currency       string                  `json:"currency"`
	PaymentDetails *PaymentDetailsResponse `json:"payment_details,omitempty"`
	CreatedAt      string                  `json:"created_at"`
	UpdatedAt      string                  `json:"updated_at"`
}

type OrderListResponse struct {
	Orders   []OrderResponse `json:"orders"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

type OrderStatusResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type BookSessionResponse struct {
	BookingID string        `json:"booking_id"`
	Order     OrderResponse `json:"order"`
}

type RevenueStatsResponse struct {
	RevenueThisMonth int64  `json:"revenue_this_month"`
	RevenueLastMonth int64  `json:"revenue_last_month"`
	Currency         string `json:"currency"`
}

type SagaStateResponse struct {
	SagaID      string   `json:"saga_id"`
	Status      string   `json:"status"`
	CurrentStep string   `json:"current_step,omitempty"`
	Errors      []string `json:"errors,omitempty"`
	TraceID     string   `json:"trace_id,omitempty"`
	UpdatedAt   string   `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
}

func mapOrderToResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemResponse{ID: it.ID, CourseID: it.CourseID, Price: it.Price}
	}

	resp := OrderResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		Status:    string(o.Status),
		Items:     items,
		SubTotal:  o.SubTotal,
		Discount:  o.Discount,
		SalesTax:  o.SalesTax,
		Total:     o.Amount.Amount,
		Currency:  o.Amount.Currency,
		CreatedAt: o.CreatedAt.Format(time.RFC3339),
		UpdatedAt: o.UpdatedAt.Format(time.RFC3339),
	}
	if pd := o.PaymentDetails; pd != nil {
		resp.PaymentDetails = &PaymentDetailsResponse{
			PaymentID:       pd.PaymentID,
			Provider:        pd.Provider,
			ProviderOrderID: pd.ProviderOrderID,
			Status:          string(pd.Status),
		}
	}
	return resp
}

func mapSagaEntryToResponse(e *saga.Entry) SagaStateResponse {
	// ErrorMessages is stored as a JSON array; an unreadable value just
	// yields no error details.
	var errs []string
	_ = json.Unmarshal([]byte(e.ErrorMessages), &errs)

	return SagaStateResponse{
		SagaID:      e.SagaID,
		Status:      string(e.Status),
		CurrentStep: e.CurrentStep,
		Errors:      errs,
		TraceID:     e.TraceID,
		UpdatedAt:   e.UpdatedAt.Format(time.RFC3339),
	}
}

func mapStatsToResponse(s *repository.RevenueStats) RevenueStatsResponse {
	return RevenueStatsResponse{
		RevenueThisMonth: s.RevenueThisMonth,
		RevenueLastMonth: s.RevenueLastMonth,
		Currency:         s.Currency,
	}
}
