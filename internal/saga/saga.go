// Package saga implements the orchestration pattern used for multi-service
// workflows: steps run sequentially, each with a compensating action, and a
// failure rolls back every previously successful step in LIFO order.
package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/edulearn/order-service/internal/domain"
	"github.com/edulearn/order-service/internal/telemetry"
)

// Context is the shared state a saga execution threads through its steps.
// Earlier steps fill it in, later steps read it.
type Context struct {
	OrderID        string    `json:"order_id"`
	BookingID      string    `json:"booking_id,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	AvailableSlots int       `json:"available_slots,omitempty"`
	MaxSlots       int       `json:"max_slots,omitempty"`
}

// Step represents a single unit of work in the saga.
// Each step must have a compensating action to undo its effects.
type Step interface {
	Name() string
	Execute(ctx context.Context, sc *Context) error
	Compensate(ctx context.Context, sc *Context) error
}

const maxStepAttempts = 3

// Orchestrator manages the execution of a collection of Steps, persisting
// each transition to the saga log when a repository is configured.
type Orchestrator struct {
	sagaID  string
	steps   []Step
	logs    LogRepository
	logger  *slog.Logger
	metrics *telemetry.Metrics

	// backoffBase is the first retry interval; tests shrink it.
	backoffBase time.Duration
}

// NewOrchestrator builds an orchestrator for one saga execution. logs may be
// nil when no durable audit trail is needed (tests).
func NewOrchestrator(sagaID string, steps []Step, logs LogRepository, logger *slog.Logger, metrics *telemetry.Metrics) *Orchestrator {
	return &Orchestrator{
		sagaID:      sagaID,
		steps:       steps,
		logs:        logs,
		logger:      logger,
		metrics:     metrics,
		backoffBase: time.Second,
	}
}

// Start runs the saga steps sequentially. Each step gets up to three attempts
// with exponential backoff; domain errors are treated as business outcomes
// and fail immediately. If a step ultimately fails, every previously
// successful step is compensated in reverse order, best effort.
func (o *Orchestrator) Start(ctx context.Context, sc *Context) error {
	o.record(ctx, StatusStarted, "", sc, nil)

	var done []Step
	for _, step := range o.steps {
		o.logger.InfoContext(ctx, "executing saga step", "saga_id", o.sagaID, "step", step.Name())

		if err := o.runStep(ctx, step, sc); err != nil {
			o.logger.ErrorContext(ctx, "saga step failed, starting rollback",
				"saga_id", o.sagaID, "step", step.Name(), "error", err)
			o.metrics.SagaFailures.WithLabelValues(step.Name()).Inc()

			errs := []string{fmt.Sprintf("step %s failed: %v", step.Name(), err)}
			o.record(ctx, StatusCompensating, step.Name(), nil, errs)
			errs = append(errs, o.rollback(ctx, done, sc)...)
			o.record(ctx, StatusFailed, step.Name(), nil, errs)

			return fmt.Errorf("saga %s: step %s: %w: %w", o.sagaID, step.Name(), domain.ErrSagaExecution, err)
		}

		done = append(done, step)
		o.record(ctx, StatusStepDone, step.Name(), nil, nil)
	}

	o.record(ctx, StatusCompleted, "", nil, nil)
	o.logger.InfoContext(ctx, "saga completed", "saga_id", o.sagaID)
	return nil
}

func (o *Orchestrator) runStep(ctx context.Context, step Step, sc *Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = o.backoffBase
	policy.MaxInterval = 10 * time.Second

	attempts := 0
	op := func() error {
		attempts++
		err := step.Execute(ctx, sc)
		if err == nil {
			return nil
		}
		if domain.IsDomainError(err) || errors.Is(err, context.Canceled) {
			return backoff.Permanent(err)
		}
		o.logger.WarnContext(ctx, "saga step attempt failed",
			"saga_id", o.sagaID, "step", step.Name(), "attempt", attempts, "error", err)
		return err
	}
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, maxStepAttempts-1), ctx))
}

// rollback compensates steps in LIFO order. Compensation failures are logged
// and collected, never fatal: the saga is already failing.
func (o *Orchestrator) rollback(ctx context.Context, steps []Step, sc *Context) []string {
	var errs []string
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		o.logger.InfoContext(ctx, "compensating saga step", "saga_id", o.sagaID, "step", step.Name())
		if err := step.Compensate(ctx, sc); err != nil {
			o.logger.ErrorContext(ctx, "failed to compensate saga step",
				"saga_id", o.sagaID, "step", step.Name(), "error", err)
			errs = append(errs, fmt.Sprintf("compensation of %s failed: %v", step.Name(), err))
		}
	}
	return errs
}

// record appends a saga log row. sc is marshalled as the payload only on the
// first (STARTED) entry; later rows carry no payload.
func (o *Orchestrator) record(ctx context.Context, status Status, step string, sc *Context, errs []string) {
	if o.logs == nil {
		return
	}
	payload := ""
	if sc != nil {
		if b, err := json.Marshal(sc); err == nil {
			payload = string(b)
		}
	}
	if err := o.logs.Save(ctx, NewEntry(ctx, o.sagaID, status, step, payload, errs)); err != nil {
		o.logger.ErrorContext(ctx, "failed to write saga log",
			"saga_id", o.sagaID, "status", string(status), "error", err)
	}
}
