package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Machine-readable error codes surfaced to callers.
const (
	ECONFLICT    = "conflict"
	EENROLLED    = "already_enrolled"
	EINTERNAL    = "internal"
	EINVALID     = "invalid"
	ELIFECYCLE   = "lifecycle_violation"
	ENOTFOUND    = "not_found"
	ESAGA        = "saga_execution_failed"
	EUNAVAILABLE = "unavailable_courses"
)

// Error is a domain error with a stable code and a human-readable message.
// Domain errors are never retried and always surfaced as structured responses.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrOrderNotFound   = &Error{Code: ENOTFOUND, Message: "order not found"}
	ErrUserNotFound    = &Error{Code: ENOTFOUND, Message: "user not found"}
	ErrSessionNotFound = &Error{Code: ENOTFOUND, Message: "session not found"}
	ErrConcurrency     = &Error{Code: ECONFLICT, Message: "concurrent modification detected"}
	ErrSagaExecution   = &Error{Code: ESAGA, Message: "saga execution failed"}
)

// LifecycleError reports a state transition outside the allowed table.
// The entity is left unchanged when this is returned.
type LifecycleError struct {
	Entity string
	From   string
	To     string
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("invalid %s status transition from %s to %s", e.Entity, e.From, e.To)
}

// CourseStatus names a course that blocked a price resolution and why.
type CourseStatus struct {
	CourseID string
	Status   string
}

// UnavailableCoursesError aggregates every course that could not be ordered
// because it is not in "published" state.
type UnavailableCoursesError struct {
	Courses []CourseStatus
}

func (e *UnavailableCoursesError) Error() string {
	parts := make([]string, len(e.Courses))
	for i, c := range e.Courses {
		parts[i] = fmt.Sprintf("%s (status: %s)", c.CourseID, c.Status)
	}
	return "courses not available for ordering: " + strings.Join(parts, ", ")
}

// AlreadyEnrolledError lists the courses the user already owns.
type AlreadyEnrolledError struct {
	CourseIDs []string
}

func (e *AlreadyEnrolledError) Error() string {
	return "user already enrolled in course(s): " + strings.Join(e.CourseIDs, ", ")
}

// ErrorCode maps any error to its caller-facing code. Unrecognised errors are
// internal failures: the caller never sees a bare transport error.
func ErrorCode(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	var le *LifecycleError
	if errors.As(err, &le) {
		return ELIFECYCLE
	}
	var ue *UnavailableCoursesError
	if errors.As(err, &ue) {
		return EUNAVAILABLE
	}
	var ae *AlreadyEnrolledError
	if errors.As(err, &ae) {
		return EENROLLED
	}
	return EINTERNAL
}

// IsDomainError reports whether err is a business-rule violation that must
// not be retried.
func IsDomainError(err error) bool {
	return ErrorCode(err) != EINTERNAL
}
