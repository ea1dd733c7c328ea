package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/edulearn/order-service/internal/cache"
	"github.com/edulearn/order-service/internal/clients"
	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/repository"
)

const sessionLockTTL = 10 * time.Second

func sessionLockKey(sessionID string) string {
	return "lock:session:" + sessionID
}

// CheckSessionAvailabilityStep asks the session service for the seat
// capacity and records it in the saga context. Read-only, so its
// compensation is a no-op.
type CheckSessionAvailabilityStep struct {
	sessions  clients.SessionClient
	sessionID string
}

func NewCheckSessionAvailabilityStep(sessions clients.SessionClient, sessionID string) *CheckSessionAvailabilityStep {
	return &CheckSessionAvailabilityStep{sessions: sessions, sessionID: sessionID}
}

func (s *CheckSessionAvailabilityStep) Name() string { return "check_session_availability" }

func (s *CheckSessionAvailabilityStep) Execute(ctx context.Context, sc *Context) error {
	slots, err := s.sessions.GetAvailableSlots(ctx, s.sessionID)
	if err != nil {
		return err
	}
	if slots <= 0 {
		return &domain.Error{Code: domain.ECONFLICT, Message: "session is fully booked"}
	}
	sc.SessionID = s.sessionID
	sc.MaxSlots = slots
	return nil
}

func (s *CheckSessionAvailabilityStep) Compensate(context.Context, *Context) error { return nil }

// CreateSessionBookingStep reserves one seat under the session's distributed
// lock so concurrent bookings cannot oversell the remaining capacity. Its
// compensation cancels the reservation.
type CreateSessionBookingStep struct {
	bookings repository.BookingRepository
	locks    cache.Cache
	userID   string
}

func NewCreateSessionBookingStep(bookings repository.BookingRepository, locks cache.Cache, userID string) *CreateSessionBookingStep {
	return &CreateSessionBookingStep{bookings: bookings, locks: locks, userID: userID}
}

func (s *CreateSessionBookingStep) Name() string { return "create_session_booking" }

func (s *CreateSessionBookingStep) Execute(ctx context.Context, sc *Context) error {
	// A held lock is a transient condition: returning the raw error lets the
	// orchestrator retry with backoff instead of failing the saga.
	unlock, err := s.locks.Lock(ctx, sessionLockKey(sc.SessionID), sessionLockTTL)
	if err != nil {
		return fmt.Errorf("lock session %s: %w", sc.SessionID, err)
	}
	defer func() { _ = unlock(ctx) }()

	taken, err := s.bookings.CountConfirmedForSession(ctx, sc.SessionID)
	if err != nil {
		return fmt.Errorf("count bookings: %w", err)
	}
	sc.AvailableSlots = sc.MaxSlots - taken
	if sc.AvailableSlots <= 0 {
		return &domain.Error{Code: domain.ECONFLICT, Message: "session is fully booked"}
	}

	booking := domain.NewSessionBooking(sc.SessionID, s.userID, sc.OrderID, time.Now().UTC())
	if err := s.bookings.Save(ctx, booking); err != nil {
		return fmt.Errorf("save booking: %w", err)
	}
	sc.BookingID = booking.ID
	return nil
}

func (s *CreateSessionBookingStep) Compensate(ctx context.Context, sc *Context) error {
	if sc.BookingID == "" {
		return nil
	}
	booking, err := s.bookings.FindByID(ctx, sc.BookingID)
	if err != nil {
		return err
	}
	booking.Cancel(time.Now().UTC())
	return s.bookings.Save(ctx, booking)
}
