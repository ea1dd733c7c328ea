package domain

import "time"

// PaymentStatus is the lifecycle state of an order's payment details.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentSuccess  PaymentStatus = "success"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
	PaymentExpired  PaymentStatus = "expired"
)

// paymentLifecycle is the allowed transition table. States absent from the
// map are terminal.
var paymentLifecycle = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentSuccess, PaymentFailed, PaymentExpired},
	PaymentSuccess: {PaymentRefunded},
}

// PaymentDetails is owned exclusively by one Order (1:1).
type PaymentDetails struct {
	ID              string        `json:"id"`
	PaymentID       string        `json:"payment_id"`
	Provider        string        `json:"provider"`
	ProviderOrderID string        `json:"provider_order_id"`
	Status          PaymentStatus `json:"payment_status"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func NewPaymentDetails(id, paymentID, provider, providerOrderID string, status PaymentStatus, at time.Time) *PaymentDetails {
	if status == "" {
		status = PaymentPending
	}
	return &PaymentDetails{
		ID:              id,
		PaymentID:       paymentID,
		Provider:        provider,
		ProviderOrderID: providerOrderID,
		Status:          status,
		UpdatedAt:       at,
	}
}

func (p *PaymentDetails) transition(to PaymentStatus) error {
	for _, allowed := range paymentLifecycle[p.Status] {
		if allowed == to {
			p.Status = to
			p.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return &LifecycleError{Entity: "payment", From: string(p.Status), To: string(to)}
}

func (p *PaymentDetails) MarkSuccess() error  { return p.transition(PaymentSuccess) }
func (p *PaymentDetails) MarkFailed() error   { return p.transition(PaymentFailed) }
func (p *PaymentDetails) MarkRefunded() error { return p.transition(PaymentRefunded) }
func (p *PaymentDetails) MarkExpired() error  { return p.transition(PaymentExpired) }
