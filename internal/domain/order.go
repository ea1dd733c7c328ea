package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusCreated        OrderStatus = "created"
	StatusPendingPayment OrderStatus = "pending_payment"
	StatusProcessing     OrderStatus = "processing"
	StatusSucceeded      OrderStatus = "succeeded"
	StatusFailed         OrderStatus = "failed"
	StatusCancelled      OrderStatus = "cancelled"
	StatusRefunded       OrderStatus = "refunded"
	StatusExpired        OrderStatus = "expired"
)

// orderLifecycle is the allowed transition table. States absent from the map
// (failed, cancelled, refunded, expired) are fully terminal.
var orderLifecycle = map[OrderStatus][]OrderStatus{
	StatusCreated:        {StatusPendingPayment, StatusCancelled, StatusExpired},
	StatusPendingPayment: {StatusProcessing, StatusCancelled, StatusFailed, StatusExpired},
	StatusProcessing:     {StatusSucceeded, StatusFailed, StatusCancelled},
	StatusSucceeded:      {StatusRefunded},
}

// terminalForMutation blocks item/discount/payment mutations once the order
// has reached a settled state.
var terminalForMutation = map[OrderStatus]bool{
	StatusSucceeded: true,
	StatusFailed:    true,
	StatusCancelled: true,
	StatusRefunded:  true,
	StatusExpired:   true,
}

// OrderItem is one purchased course line. Price is the per-course discounted
// price in minor units, fixed at placement time.
type OrderItem struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id"`
	Price    int64  `json:"price"`
}

// Order is the aggregate root. It exclusively owns its items and payment
// details; Amount is always derived from items and discount.
type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	Items          []OrderItem     `json:"items"`
	Amount         Money           `json:"amount"`
	SubTotal       int64           `json:"sub_total"`
	SalesTax       int64           `json:"sales_tax"`
	Discount       int64           `json:"discount"`
	Status         OrderStatus     `json:"status"`
	PaymentDetails *PaymentDetails `json:"payment_details,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewOrder validates creation invariants and returns an order in CREATED state.
func NewOrder(userID, idempotencyKey string, items []OrderItem, amount Money, subTotal, salesTax, discount int64) (*Order, error) {
	if len(items) == 0 {
		return nil, &Error{Code: EINVALID, Message: "order must have at least one item"}
	}
	if discount < 0 {
		return nil, &Error{Code: EINVALID, Message: "discount cannot be negative"}
	}
	if subTotal < 0 || salesTax < 0 {
		return nil, &Error{Code: EINVALID, Message: "sub_total and sales_tax must be non-negative"}
	}
	for _, it := range items {
		if it.Price < 0 {
			return nil, &Error{Code: EINVALID, Message: "item prices must be non-negative"}
		}
	}
	now := time.Now().UTC()
	return &Order{
		ID:             uuid.NewString(),
		UserID:         userID,
		IdempotencyKey: idempotencyKey,
		Items:          items,
		Amount:         amount,
		SubTotal:       subTotal,
		SalesTax:       salesTax,
		Discount:       discount,
		Status:         StatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (o *Order) transition(to OrderStatus) error {
	for _, allowed := range orderLifecycle[o.Status] {
		if allowed == to {
			o.Status = to
			o.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return &LifecycleError{Entity: "order", From: string(o.Status), To: string(to)}
}

func (o *Order) MarkPendingPayment() error { return o.transition(StatusPendingPayment) }
func (o *Order) MarkProcessing() error     { return o.transition(StatusProcessing) }
func (o *Order) MarkCompleted() error      { return o.transition(StatusSucceeded) }
func (o *Order) MarkFailed() error         { return o.transition(StatusFailed) }
func (o *Order) MarkCancelled() error      { return o.transition(StatusCancelled) }
func (o *Order) MarkRefunded() error       { return o.transition(StatusRefunded) }
func (o *Order) MarkExpired() error        { return o.transition(StatusExpired) }

// AddItem appends one line and recomputes the total.
func (o *Order) AddItem(item OrderItem) error {
	if terminalForMutation[o.Status] {
		return &LifecycleError{Entity: "order", From: string(o.Status), To: "add_item"}
	}
	if item.Price < 0 {
		return &Error{Code: EINVALID, Message: "item price cannot be negative"}
	}
	o.Items = append(o.Items, item)
	o.recalculate()
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// AddItems appends several lines at once and recomputes the total.
func (o *Order) AddItems(items []OrderItem) error {
	if terminalForMutation[o.Status] {
		return &LifecycleError{Entity: "order", From: string(o.Status), To: "add_items"}
	}
	if len(items) == 0 {
		return &Error{Code: EINVALID, Message: "no items provided"}
	}
	for _, it := range items {
		if it.Price < 0 {
			return &Error{Code: EINVALID, Message: "item prices must be non-negative"}
		}
	}
	o.Items = append(o.Items, items...)
	o.recalculate()
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// SetDiscount replaces the flat discount amount and recomputes the total.
func (o *Order) SetDiscount(discount int64) error {
	if terminalForMutation[o.Status] {
		return &LifecycleError{Entity: "order", From: string(o.Status), To: "set_discount"}
	}
	if discount < 0 {
		return &Error{Code: EINVALID, Message: "discount cannot be negative"}
	}
	o.Discount = discount
	o.recalculate()
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// SetPaymentDetails attaches or replaces the owned payment details.
func (o *Order) SetPaymentDetails(pd *PaymentDetails) error {
	switch o.Status {
	case StatusCancelled, StatusRefunded, StatusFailed, StatusExpired:
		return &LifecycleError{Entity: "order", From: string(o.Status), To: "set_payment_details"}
	}
	o.PaymentDetails = pd
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// recalculate derives Amount from the item lines minus the flat discount,
// clamped at zero. Currency is preserved.
func (o *Order) recalculate() {
	var total int64
	for _, it := range o.Items {
		total += it.Price
	}
	if o.Discount > 0 {
		total -= o.Discount
		if total < 0 {
			total = 0
		}
	}
	o.Amount = Money{Amount: total, Currency: o.Amount.Currency}
}

// Reset forces the order back to CREATED and drops its payment details so
// payment can be re-attempted after a failure. This deliberately bypasses the
// transition table; callers are expected to verify ownership first.
func (o *Order) Reset() {
	o.Status = StatusCreated
	o.PaymentDetails = nil
	o.UpdatedAt = time.Now().UTC()
}
