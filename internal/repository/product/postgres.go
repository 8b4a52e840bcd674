package product

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.SugaredLogger
}

func NewPostgres(pool *pgxpool.Pool, logger *zap.SugaredLogger) Repository {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &postgresRepo{pool: pool, logger: logger}
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Product, error) {
	const q = `
SELECT id::text, name, price_paise, stock, created_at
FROM products
ORDER BY created_at DESC
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PricePaise, &p.Stock, &p.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	const q = `
SELECT id::text, name, price_paise, stock, created_at
FROM products
WHERE id = $1
`
	var p domain.Product
	err := r.pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.Name, &p.PricePaise, &p.Stock, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	const q = `
INSERT INTO products (id, name, price_paise, stock)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET
    name = EXCLUDED.name,
    price_paise = EXCLUDED.price_paise,
    stock = EXCLUDED.stock
RETURNING id::text, created_at
`
	res := p
	err := r.pool.QueryRow(ctx, q, p.ID, p.Name, p.PricePaise, p.Stock).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		r.logger.Errorw("product upsert failed", "name", p.Name, "error", err)
		return nil, err
	}
	return &res, nil
}

// ReserveTx is the single conditional decrement that makes concurrent
// checkouts safe: two reservations competing for the last unit cannot
// both match stock >= qty.
func (r *postgresRepo) ReserveTx(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	const q = `
UPDATE products
SET stock = stock - $2
WHERE id = $1 AND stock >= $2
`
	ct, err := tx.Exec(ctx, q, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return &domain.InsufficientStockError{ProductID: productID, Requested: qty}
	}
	return nil
}

func (r *postgresRepo) ReleaseTx(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	ct, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2 WHERE id = $1`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		// The product row may have been deleted after the order was
		// placed; the release is then moot but the cancellation stands.
		r.logger.Warnw("stock release matched no product", "product_id", productID, "qty", qty)
	}
	return nil
}
