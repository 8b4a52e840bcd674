package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/domain"
)

// ErrCodeExists is returned when creating a coupon with a code already in use.
var ErrCodeExists = errors.New("coupon code already exists")

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	const q = `
SELECT id::text, code, discount_type, discount_value, min_order_paise,
       usage_limit, used_count, expiry_date, is_active, created_at
FROM coupons
WHERE code = $1
`
	var c domain.Coupon
	err := r.pool.QueryRow(ctx, q, normalize(code)).Scan(
		&c.ID,
		&c.Code,
		&c.DiscountType,
		&c.DiscountValue,
		&c.MinOrderPaise,
		&c.UsageLimit,
		&c.UsedCount,
		&c.ExpiryDate,
		&c.IsActive,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *postgresRepo) Create(ctx context.Context, c domain.Coupon) (*domain.Coupon, error) {
	const q = `
INSERT INTO coupons (code, discount_type, discount_value, min_order_paise, usage_limit, expiry_date, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id::text, used_count, created_at
`
	res := c
	res.Code = normalize(c.Code)
	err := r.pool.QueryRow(ctx, q,
		res.Code,
		c.DiscountType,
		c.DiscountValue,
		c.MinOrderPaise,
		c.UsageLimit,
		c.ExpiryDate,
		c.IsActive,
	).Scan(&res.ID, &res.UsedCount, &res.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrCodeExists, res.Code)
		}
		return nil, err
	}
	return &res, nil
}

func (r *postgresRepo) ConsumeTx(ctx context.Context, tx pgx.Tx, couponID string) (bool, error) {
	const q = `
UPDATE coupons
SET used_count = used_count + 1
WHERE id = $1 AND is_active AND (usage_limit = 0 OR used_count < usage_limit)
`
	ct, err := tx.Exec(ctx, q, couponID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
