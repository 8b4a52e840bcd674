package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

const orderColumns = `
id::text, user_id::text, subtotal_paise, discount_paise, total_paise,
coupon_id::text, payment_method, payment_status, order_status,
gateway_order_id, full_name, phone, address, city, state, pincode, created_at`

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Create(ctx context.Context, in CreateInput, inTx func(ctx context.Context, tx pgx.Tx) error) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if inTx != nil {
		if err := inTx(ctx, tx); err != nil {
			return nil, err
		}
	}

	const insertOrder = `
INSERT INTO orders (user_id, subtotal_paise, discount_paise, total_paise, coupon_id,
                    payment_method, payment_status, order_status,
                    full_name, phone, address, city, state, pincode)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id::text, created_at
`
	o := domain.Order{
		UserID:        in.UserID,
		SubtotalPaise: in.SubtotalPaise,
		DiscountPaise: in.DiscountPaise,
		TotalPaise:    in.TotalPaise,
		CouponID:      in.CouponID,
		PaymentMethod: in.PaymentMethod,
		PaymentStatus: in.PaymentStatus,
		OrderStatus:   domain.OrderPlaced,
		Shipping:      in.Shipping,
	}
	err = tx.QueryRow(ctx, insertOrder,
		in.UserID,
		in.SubtotalPaise,
		in.DiscountPaise,
		in.TotalPaise,
		in.CouponID,
		in.PaymentMethod,
		in.PaymentStatus,
		domain.OrderPlaced,
		in.Shipping.FullName,
		in.Shipping.Phone,
		in.Shipping.Address,
		in.Shipping.City,
		in.Shipping.State,
		in.Shipping.Pincode,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	const insertLine = `
INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price_paise)
VALUES ($1, $2, $3, $4, $5)
RETURNING id::text
`
	for _, line := range in.Lines {
		l := line
		l.OrderID = o.ID
		if err := tx.QueryRow(ctx, insertLine, o.ID, line.ProductID, line.ProductName, line.Quantity, line.UnitPricePaise).Scan(&l.ID); err != nil {
			return nil, fmt.Errorf("insert order line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}

	if err := appendHistory(ctx, tx, o.ID, domain.OrderPlaced, "Order placed"); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &o, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}
	if o.Lines, err = r.fetchLines(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, q, userID)
}

func (r *postgresRepo) ListAll(ctx context.Context) ([]domain.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	return r.list(ctx, q)
}

func (r *postgresRepo) list(ctx context.Context, q string, args ...interface{}) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *postgresRepo) History(ctx context.Context, orderID string) ([]domain.OrderStatusEvent, error) {
	const q = `
SELECT id::text, order_id::text, status, message, created_at
FROM order_status_history
WHERE order_id = $1
ORDER BY created_at ASC
`
	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.OrderStatusEvent
	for rows.Next() {
		var e domain.OrderStatusEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *postgresRepo) SetGatewayRef(ctx context.Context, orderID, ref string) error {
	ct, err := r.pool.Exec(ctx, `UPDATE orders SET gateway_order_id = $2 WHERE id = $1`, orderID, ref)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) Update(ctx context.Context, ref Ref, decide DecideFunc, inTx TxFunc) (*domain.Order, *Change, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	o, err := lockOrder(ctx, tx, ref)
	if err != nil {
		return nil, nil, err
	}
	if o.Lines, err = fetchLinesTx(ctx, tx, o.ID); err != nil {
		return nil, nil, err
	}

	change, err := decide(o)
	if err != nil {
		return o, nil, err
	}
	if change == nil {
		// Idempotent replay: nothing to write, release the lock.
		if err := tx.Commit(ctx); err != nil {
			return nil, nil, fmt.Errorf("commit tx: %w", err)
		}
		return o, nil, nil
	}

	if change.OrderStatus != nil {
		o.OrderStatus = *change.OrderStatus
	}
	if change.PaymentStatus != nil {
		o.PaymentStatus = *change.PaymentStatus
	}
	ct, err := tx.Exec(ctx,
		`UPDATE orders SET order_status = $2, payment_status = $3 WHERE id = $1`,
		o.ID, o.OrderStatus, o.PaymentStatus,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("update order: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return nil, nil, domain.ErrNotFound
	}

	if err := appendHistory(ctx, tx, o.ID, o.OrderStatus, change.Message); err != nil {
		return nil, nil, err
	}

	if inTx != nil {
		if err := inTx(ctx, tx, o); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}
	return o, change, nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, ref Ref) (*domain.Order, error) {
	var (
		q   string
		arg string
	)
	switch {
	case ref.ID != "":
		q = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
		arg = ref.ID
	case ref.GatewayRef != "":
		q = `SELECT ` + orderColumns + ` FROM orders WHERE gateway_order_id = $1 FOR UPDATE`
		arg = ref.GatewayRef
	default:
		return nil, domain.ErrNotFound
	}
	return scanOrder(tx.QueryRow(ctx, q, arg))
}

func appendHistory(ctx context.Context, tx pgx.Tx, orderID string, status domain.OrderStatus, message string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO order_status_history (order_id, status, message) VALUES ($1, $2, $3)`,
		orderID, status, message,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (r *postgresRepo) fetchLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	const q = `
SELECT id::text, order_id::text, product_id::text, product_name, quantity, unit_price_paise
FROM order_items
WHERE order_id = $1
`
	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLines(rows)
}

func fetchLinesTx(ctx context.Context, tx pgx.Tx, orderID string) ([]domain.OrderLine, error) {
	const q = `
SELECT id::text, order_id::text, product_id::text, product_name, quantity, unit_price_paise
FROM order_items
WHERE order_id = $1
`
	rows, err := tx.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLines(rows)
}

func scanLines(rows pgx.Rows) ([]domain.OrderLine, error) {
	var lines []domain.OrderLine
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.Quantity, &l.UnitPricePaise); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.SubtotalPaise,
		&o.DiscountPaise,
		&o.TotalPaise,
		&o.CouponID,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&o.OrderStatus,
		&o.GatewayOrderID,
		&o.Shipping.FullName,
		&o.Shipping.Phone,
		&o.Shipping.Address,
		&o.Shipping.City,
		&o.Shipping.State,
		&o.Shipping.Pincode,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}
