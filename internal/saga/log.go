package saga

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Status represents the lifecycle state of a saga execution.
type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusStepDone     Status = "STEP_DONE"
	StatusCompleted    Status = "COMPLETED"
	StatusCompensating Status = "COMPENSATING"
	StatusFailed       Status = "FAILED"
)

// Entry is a single row in the saga_logs table: a point-in-time snapshot of
// a saga execution. The table is an append-only audit trail — querying the
// latest row per saga_id gives the current state, and trace_id lets you jump
// from a row straight to the distributed trace.
type Entry struct {
	// SagaID is the business identifier for this execution, typically the
	// order ID so it can be joined with business data.
	SagaID string

	Status Status

	// CurrentStep is the name of the step that was just executed or failed.
	CurrentStep string

	// Payload is the JSON-serialised saga context, written once on STARTED.
	Payload string

	// ErrorMessages is a JSON array of failure details, one per failed step
	// or failed compensation.
	ErrorMessages string

	// TraceID and SpanID come from the OpenTelemetry span active when the
	// entry was written. Empty when no span is in flight (tests).
	TraceID string
	SpanID  string

	UpdatedAt time.Time
}

// LogRepository persists saga log entries. Each Save appends a row; the log
// is never updated in place.
type LogRepository interface {
	Save(ctx context.Context, entry *Entry) error
}

// LogReader reads the saga audit trail back, for status inspection and
// crash recovery.
type LogReader interface {
	// GetLatest returns the newest entry for sagaID, or a not-found domain
	// error when the saga never ran.
	GetLatest(ctx context.Context, sagaID string) (*Entry, error)
}

// NewEntry builds a log entry, extracting trace identifiers from the active
// span in ctx when one exists.
func NewEntry(ctx context.Context, sagaID string, status Status, currentStep, payload string, errs []string) *Entry {
	errJSON := "[]"
	if len(errs) > 0 {
		if b, err := json.Marshal(errs); err == nil {
			errJSON = string(b)
		}
	}

	e := &Entry{
		SagaID:        sagaID,
		Status:        status,
		CurrentStep:   currentStep,
		Payload:       payload,
		ErrorMessages: errJSON,
		UpdatedAt:     time.Now().UTC(),
	}

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		e.TraceID = sc.TraceID().String()
		e.SpanID = sc.SpanID().String()
	}
	return e
}
