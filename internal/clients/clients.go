// Package clients holds the capability interfaces for the external services
// the order core talks to, plus their HTTP adapters. The core depends only
// on these interfaces; transport details stay in the adapters.
package clients

import "context"

// User is the subset of the user-service record the order flow needs.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CourseInfo carries catalog pricing in major currency units, exactly as the
// catalog service reports it. Conversion to minor units happens at pricing
// time.
type CourseInfo struct {
	CourseID      string  `json:"course_id"`
	Price         float64 `json:"price"`
	DiscountPrice float64 `json:"discount_price"`
	Status        string  `json:"status"`
}

// UserClient looks up platform users.
type UserClient interface {
	// GetUser returns the user or domain.ErrUserNotFound.
	GetUser(ctx context.Context, userID string) (*User, error)
}

// CourseClient reads the course catalog and enrollment state.
type CourseClient interface {
	GetCourse(ctx context.Context, courseID string) (*CourseInfo, error)
	// GetCoursesByIDs returns whatever subset of ids the catalog knows about;
	// missing courses are simply absent from the result.
	GetCoursesByIDs(ctx context.Context, courseIDs []string) ([]CourseInfo, error)
	IsUserEnrolled(ctx context.Context, userID, courseID string) (bool, error)
}

// SessionClient reads live-session capacity.
type SessionClient interface {
	// GetAvailableSlots returns the remaining seats or domain.ErrSessionNotFound.
	GetAvailableSlots(ctx context.Context, sessionID string) (int, error)
}
