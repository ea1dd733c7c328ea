package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/edulearn/order-service/internal/domain"
)

const pgUniqueViolation = "23505"

// PostgresOrderRepository stores the order aggregate across the orders,
// order_items and payment_details tables.
type PostgresOrderRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresOrderRepository(pool *pgxpool.Pool) *PostgresOrderRepository {
	return &PostgresOrderRepository{pool: pool}
}

// Save writes the aggregate in one transaction. Items are replaced wholesale:
// the aggregate owns them and the set is small. A duplicate idempotency key
// maps to domain.ErrConcurrency so the caller can re-read the winner.
func (r *PostgresOrderRepository) Save(ctx context.Context, o *domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save order: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsertOrder = `
		INSERT INTO orders
			(id, user_id, idempotency_key, amount, currency, sub_total, sales_tax, discount, status, created_at, updated_at)
		VALUES
			($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			sub_total = EXCLUDED.sub_total,
			sales_tax = EXCLUDED.sales_tax,
			discount = EXCLUDED.discount,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`

	_, err = tx.Exec(ctx, upsertOrder,
		o.ID, o.UserID, o.IdempotencyKey,
		o.Amount.Amount, o.Amount.Currency,
		o.SubTotal, o.SalesTax, o.Discount,
		string(o.Status), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrConcurrency
		}
		return fmt.Errorf("upsert order %s: %w", o.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE order_id = $1`, o.ID); err != nil {
		return fmt.Errorf("clear order items %s: %w", o.ID, err)
	}
	for _, it := range o.Items {
		_, err := tx.Exec(ctx,
			`INSERT INTO order_items (id, order_id, course_id, price) VALUES ($1, $2, $3, $4)`,
			it.ID, o.ID, it.CourseID, it.Price,
		)
		if err != nil {
			return fmt.Errorf("insert order item %s: %w", it.ID, err)
		}
	}

	if o.PaymentDetails == nil {
		if _, err := tx.Exec(ctx, `DELETE FROM payment_details WHERE order_id = $1`, o.ID); err != nil {
			return fmt.Errorf("clear payment details %s: %w", o.ID, err)
		}
	} else {
		pd := o.PaymentDetails
		const upsertPayment = `
			INSERT INTO payment_details
				(id, order_id, payment_id, provider, provider_order_id, status, updated_at)
			VALUES
				($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (order_id) DO UPDATE SET
				payment_id = EXCLUDED.payment_id,
				provider = EXCLUDED.provider,
				provider_order_id = EXCLUDED.provider_order_id,
				status = EXCLUDED.status,
				updated_at = EXCLUDED.updated_at`
		_, err := tx.Exec(ctx, upsertPayment,
			pd.ID, o.ID, pd.PaymentID, pd.Provider, pd.ProviderOrderID, string(pd.Status), pd.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert payment details %s: %w", o.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save order %s: %w", o.ID, err)
	}
	return nil
}

func (r *PostgresOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, `id = $1`, id)
}

func (r *PostgresOrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	return r.findOne(ctx, `idempotency_key = $1`, key)
}

func (r *PostgresOrderRepository) findOne(ctx context.Context, where string, arg any) (*domain.Order, error) {
	q := `
		SELECT id, user_id, COALESCE(idempotency_key, ''), amount, currency,
		       sub_total, sales_tax, discount, status, created_at, updated_at
		FROM   orders
		WHERE  ` + where

	var o domain.Order
	err := r.pool.QueryRow(ctx, q, arg).Scan(
		&o.ID, &o.UserID, &o.IdempotencyKey,
		&o.Amount.Amount, &o.Amount.Currency,
		&o.SubTotal, &o.SalesTax, &o.Discount,
		&o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	if err := r.attachChildren(ctx, []*domain.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PostgresOrderRepository) FindByUserID(ctx context.Context, userID string, q ListQuery) ([]*domain.Order, int64, error) {
	q = q.Normalize()
	states, err := ExpandStatusFilter(q.Status)
	if err != nil {
		return nil, 0, err
	}

	where := `user_id = $1`
	args := []any{userID}
	if len(states) > 0 {
		strs := make([]string, len(states))
		for i, s := range states {
			strs[i] = string(s)
		}
		where += ` AND status = ANY($2)`
		args = append(args, strs)
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders for user %s: %w", userID, err)
	}

	// SortBy and SortOrder are whitelisted by Normalize, safe to interpolate.
	sel := fmt.Sprintf(`
		SELECT id, user_id, COALESCE(idempotency_key, ''), amount, currency,
		       sub_total, sales_tax, discount, status, created_at, updated_at
		FROM   orders
		WHERE  %s
		ORDER  BY %s %s, id
		LIMIT  %d OFFSET %d`,
		where, q.SortBy, q.SortOrder, q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := r.pool.Query(ctx, sel, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders for user %s: %w", userID, err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		var o domain.Order
		err := rows.Scan(
			&o.ID, &o.UserID, &o.IdempotencyKey,
			&o.Amount.Amount, &o.Amount.Currency,
			&o.SubTotal, &o.SalesTax, &o.Discount,
			&o.Status, &o.CreatedAt, &o.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list orders for user %s: %w", userID, err)
	}

	if err := r.attachChildren(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// attachChildren batch-loads items and payment details for a page of orders.
func (r *PostgresOrderRepository) attachChildren(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, len(orders))
	for i, o := range orders {
		byID[o.ID] = o
		ids[i] = o.ID
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, course_id, price FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		var orderID string
		if err := rows.Scan(&it.ID, &orderID, &it.CourseID, &it.Price); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load order items: %w", err)
	}

	pdRows, err := r.pool.Query(ctx, `
		SELECT id, order_id, payment_id, provider, provider_order_id, status, updated_at
		FROM   payment_details
		WHERE  order_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("load payment details: %w", err)
	}
	defer pdRows.Close()
	for pdRows.Next() {
		var pd domain.PaymentDetails
		var orderID string
		if err := pdRows.Scan(&pd.ID, &orderID, &pd.PaymentID, &pd.Provider, &pd.ProviderOrderID, &pd.Status, &pd.UpdatedAt); err != nil {
			return fmt.Errorf("scan payment details: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.PaymentDetails = &pd
		}
	}
	if err := pdRows.Err(); err != nil {
		return fmt.Errorf("load payment details: %w", err)
	}
	return nil
}

func (r *PostgresOrderRepository) RevenueStats(ctx context.Context) (*RevenueStats, error) {
	const q = `
		SELECT COALESCE(SUM(amount) FILTER (WHERE created_at >= date_trunc('month', now())), 0),
		       COALESCE(SUM(amount) FILTER (WHERE created_at >= date_trunc('month', now()) - interval '1 month'
		                                      AND created_at <  date_trunc('month', now())), 0),
		       COALESCE(MAX(currency), 'USD')
		FROM   orders
		WHERE  status = 'succeeded'`

	var s RevenueStats
	err := r.pool.QueryRow(ctx, q).Scan(&s.RevenueThisMonth, &s.RevenueLastMonth, &s.Currency)
	if err != nil {
		return nil, fmt.Errorf("revenue stats: %w", err)
	}
	return &s, nil
}

// PostgresBookingRepository stores live-session seat reservations.
type PostgresBookingRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresBookingRepository(pool *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{pool: pool}
}

func (r *PostgresBookingRepository) Save(ctx context.Context, b *domain.SessionBooking) error {
	const q = `
		INSERT INTO session_bookings
			(id, session_id, user_id, order_id, status, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, q,
		b.ID, b.SessionID, b.UserID, b.OrderID, string(b.Status), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save booking %s: %w", b.ID, err)
	}
	return nil
}

func (r *PostgresBookingRepository) FindByID(ctx context.Context, id string) (*domain.SessionBooking, error) {
	const q = `
		SELECT id, session_id, user_id, order_id, status, created_at, updated_at
		FROM   session_bookings
		WHERE  id = $1`

	var b domain.SessionBooking
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&b.ID, &b.SessionID, &b.UserID, &b.OrderID, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find booking %s: %w", id, err)
	}
	return &b, nil
}

func (r *PostgresBookingRepository) CountConfirmedForSession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM session_bookings WHERE session_id = $1 AND status = 'CONFIRMED'`,
		sessionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count bookings for session %s: %w", sessionID, err)
	}
	return n, nil
}
