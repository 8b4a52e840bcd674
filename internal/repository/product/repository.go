package product

import (
	"context"

	"github.com/jackc/pgx/v5"

	"storefront/internal/domain"
)

// Repository is the catalog read side plus the inventory ledger. Stock is
// mutated only through ReserveTx/ReleaseTx so every movement is tied to a
// surrounding order transaction.
type Repository interface {
	List(ctx context.Context) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)

	// ReserveTx conditionally decrements stock inside the caller's
	// transaction and returns *domain.InsufficientStockError when the
	// product does not have qty units left.
	ReserveTx(ctx context.Context, tx pgx.Tx, productID string, qty int) error
	// ReleaseTx returns qty units to stock inside the caller's transaction.
	ReleaseTx(ctx context.Context, tx pgx.Tx, productID string, qty int) error
}
