package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edulearn/order-service/internal/domain"
)

// PostgresLogRepository stores saga log entries in the saga_logs table.
type PostgresLogRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresLogRepository(pool *pgxpool.Pool) *PostgresLogRepository {
	return &PostgresLogRepository{pool: pool}
}

// Save inserts a new saga log row. Safe to call concurrently.
func (r *PostgresLogRepository) Save(ctx context.Context, entry *Entry) error {
	const q = `
		INSERT INTO saga_logs
			(saga_id, status, current_step, payload, error_messages, trace_id, span_id, updated_at)
		VALUES
			($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, q,
		entry.SagaID,
		string(entry.Status),
		entry.CurrentStep,
		entry.Payload,
		entry.ErrorMessages,
		entry.TraceID,
		entry.SpanID,
		entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save saga log for %q: %w", entry.SagaID, err)
	}
	return nil
}

// GetLatest returns the most recent log entry for a saga, for status
// endpoints and crash recovery.
func (r *PostgresLogRepository) GetLatest(ctx context.Context, sagaID string) (*Entry, error) {
	const q = `
		SELECT saga_id, status, current_step, COALESCE(payload, ''), error_messages,
		       trace_id, span_id, updated_at
		FROM   saga_logs
		WHERE  saga_id = $1
		ORDER  BY updated_at DESC, id DESC
		LIMIT  1`

	var e Entry
	err := r.pool.QueryRow(ctx, q, sagaID).Scan(
		&e.SagaID,
		&e.Status,
		&e.CurrentStep,
		&e.Payload,
		&e.ErrorMessages,
		&e.TraceID,
		&e.SpanID,
		&e.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.Error{Code: domain.ENOTFOUND, Message: fmt.Sprintf("saga %q not found", sagaID)}
	}
	if err != nil {
		return nil, fmt.Errorf("get latest saga log for %q: %w", sagaID, err)
	}
	return &e, nil
}
