// Package seed inserts demo data for manual testing.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type productSeed struct {
	Name       string
	PricePaise int64
	Stock      int
}

type couponSeed struct {
	Code          string
	DiscountType  string
	DiscountValue int64
	MinOrderPaise int64
	UsageLimit    int
	ExpiresIn     time.Duration
}

// Apply inserts demo data for manual testing. It is idempotent: rerunning
// never duplicates rows or resets live stock and usage counters.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	if err := ensureUser(ctx, pool, "Asha Rao", "asha@example.com"); err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}

	products := []productSeed{
		{Name: "Ceramic Mug", PricePaise: 50_00, Stock: 40},
		{Name: "Jute Tote Bag", PricePaise: 100_00, Stock: 25},
		{Name: "Walnut Desk Organizer", PricePaise: 1250_00, Stock: 10},
		{Name: "Brass Table Lamp", PricePaise: 2399_00, Stock: 5},
	}
	for _, p := range products {
		if err := ensureProduct(ctx, pool, p); err != nil {
			return fmt.Errorf("ensure product %s: %w", p.Name, err)
		}
	}

	coupons := []couponSeed{
		{Code: "SAVE10", DiscountType: "PERCENT", DiscountValue: 10, MinOrderPaise: 500_00, UsageLimit: 100, ExpiresIn: 90 * 24 * time.Hour},
		{Code: "FLAT50", DiscountType: "FLAT", DiscountValue: 50_00, MinOrderPaise: 0, UsageLimit: 0, ExpiresIn: 30 * 24 * time.Hour},
	}
	for _, c := range coupons {
		if err := ensureCoupon(ctx, pool, c); err != nil {
			return fmt.Errorf("ensure coupon %s: %w", c.Code, err)
		}
	}

	return nil
}

func ensureUser(ctx context.Context, pool *pgxpool.Pool, name, email string) error {
	const q = `
INSERT INTO users (name, email)
VALUES ($1, $2)
ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name
`
	_, err := pool.Exec(ctx, q, name, email)
	return err
}

// ensureProduct inserts only when the name is unknown; stock on existing
// rows belongs to the inventory ledger and must not be reset by a rerun.
func ensureProduct(ctx context.Context, pool *pgxpool.Pool, p productSeed) error {
	const q = `
INSERT INTO products (name, price_paise, stock)
SELECT $1, $2, $3
WHERE NOT EXISTS (SELECT 1 FROM products WHERE name = $1)
`
	_, err := pool.Exec(ctx, q, p.Name, p.PricePaise, p.Stock)
	return err
}

func ensureCoupon(ctx context.Context, pool *pgxpool.Pool, c couponSeed) error {
	const q = `
INSERT INTO coupons (code, discount_type, discount_value, min_order_paise, usage_limit, expiry_date, is_active)
VALUES ($1, $2, $3, $4, $5, $6, TRUE)
ON CONFLICT (code) DO NOTHING
`
	expiry := time.Now().Add(c.ExpiresIn)
	_, err := pool.Exec(ctx, q, c.Code, c.DiscountType, c.DiscountValue, c.MinOrderPaise, c.UsageLimit, expiry)
	return err
}
