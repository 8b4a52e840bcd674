package coupon

import (
	"context"

	"github.com/jackc/pgx/v5"

	"storefront/internal/domain"
)

type Repository interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	Create(ctx context.Context, c domain.Coupon) (*domain.Coupon, error)

	// ConsumeTx increments used_count inside the caller's transaction,
	// guarded by the usage limit. Returns false when the limit was hit
	// between validation and commit.
	ConsumeTx(ctx context.Context, tx pgx.Tx, couponID string) (bool, error)
}
