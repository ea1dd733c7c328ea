package domain

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the lifecycle state of a live-session seat reservation.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// SessionBooking reserves one seat in a live session for a user. Bookings are
// created inside the session saga and cancelled by its compensation.
type SessionBooking struct {
	ID        string        `json:"id"`
	SessionID string        `json:"sessionId"`
	UserID    string        `json:"userId"`
	OrderID   string        `json:"orderId"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func NewSessionBooking(sessionID, userID, orderID string, now time.Time) *SessionBooking {
	return &SessionBooking{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		OrderID:   orderID,
		Status:    BookingConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Cancel releases the seat. Cancelling twice is a no-op.
func (b *SessionBooking) Cancel(now time.Time) {
	if b.Status == BookingCancelled {
		return
	}
	b.Status = BookingCancelled
	b.UpdatedAt = now
}
