package domain

// Event topics this service publishes and consumes. Names are part of the
// platform contract; bump the version suffix on breaking payload changes.
const (
	TopicOrderCreated   = "order.course.created.v1"
	TopicOrderSucceeded = "order.course.succeeded.v1"
	TopicOrderFailed    = "order.course.failed.v1"

	TopicPaymentInitiated = "payment.order.initiated.v1"
	TopicPaymentSucceeded = "payment.order.succeeded.v1"
	TopicPaymentFailed    = "payment.order.failed.v1"
	TopicPaymentTimeout   = "payment.order.timeout.v1"

	TopicPaymentRequested = "payment-service.payment.requested"
	TopicPaymentCancelled = "payment-service.payment.cancelled"

	TopicDLQ = "order-service.events.dlq"
)

// EventItem is the per-course line embedded in outbound order events.
type EventItem struct {
	CourseID string `json:"courseId"`
	Price    int64  `json:"price"`
}

// OrderCreatedEvent announces a freshly placed order with its full pricing
// breakdown. It is a notification, not a saga step.
type OrderCreatedEvent struct {
	EventType      string      `json:"eventType"`
	OrderID        string      `json:"orderId"`
	UserID         string      `json:"userId"`
	Items          []EventItem `json:"items"`
	Subtotal       int64       `json:"subtotal"`
	Discount       int64       `json:"discount"`
	CouponDiscount int64       `json:"coupon_discount"`
	Tax            int64       `json:"tax"`
	Total          int64       `json:"total"`
	Currency       string      `json:"currency"`
}

// OrderOutcomeEvent is published on both the succeeded and failed topics once
// settlement resolves.
type OrderOutcomeEvent struct {
	EventType string      `json:"eventType"`
	OrderID   string      `json:"orderId"`
	UserID    string      `json:"userId"`
	Items     []EventItem `json:"items"`
	Amount    int64       `json:"amount"`
	Currency  string      `json:"currency"`
}

// PaymentRequestEvent asks the payment service to start (or cancel) a charge.
type PaymentRequestEvent struct {
	EventType     string `json:"eventType"`
	OrderID       string `json:"orderId"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
	Timestamp     string `json:"timestamp"`
}

// PaymentOutcomeEvent is the payload consumed from the payment.order.* topics.
type PaymentOutcomeEvent struct {
	EventType string                `json:"eventType"`
	Timestamp int64                 `json:"timestamp"` // unix millis
	Payload   PaymentOutcomePayload `json:"payload"`
}

// PaymentOutcomePayload identifies the order and the provider-side payment.
type PaymentOutcomePayload struct {
	OrderID         string `json:"order_id"`
	PaymentID       string `json:"payment_id"`
	Provider        string `json:"provider"`
	ProviderOrderID string `json:"provider_order_id"`
}

// DLQEvent wraps an unprocessable message for inspection and replay.
type DLQEvent struct {
	EventType       string `json:"eventType"`
	OriginalTopic   string `json:"originalTopic"`
	OriginalMessage string `json:"originalMessage"`
	Error           string `json:"error"`
	Timestamp       string `json:"timestamp"`
}
