package order

import (
	"context"

	"github.com/jackc/pgx/v5"

	"storefront/internal/domain"
)

// CreateInput carries everything persisted at checkout time. Amounts and
// line snapshots are already frozen by the orchestrator.
type CreateInput struct {
	UserID        string
	Lines         []domain.OrderLine
	Shipping      domain.ShippingAddress
	PaymentMethod domain.PaymentMethod
	PaymentStatus domain.PaymentStatus
	SubtotalPaise int64
	DiscountPaise int64
	TotalPaise    int64
	CouponID      *string
}

// Ref selects an order either by id or by the gateway's order reference.
type Ref struct {
	ID         string
	GatewayRef string
}

// Change describes the writes an accepted transition performs. A nil
// Change from a DecideFunc means no-op success (idempotent replay).
type Change struct {
	OrderStatus   *domain.OrderStatus
	PaymentStatus *domain.PaymentStatus
	Message       string
}

// DecideFunc inspects the locked order and decides the transition.
// It runs inside the transaction, after the row lock is taken, so the
// decision cannot race with a concurrent webhook or admin action.
type DecideFunc func(o *domain.Order) (*Change, error)

// TxFunc runs additional statements inside an order transaction,
// for example stock reservation or release.
type TxFunc func(ctx context.Context, tx pgx.Tx, o *domain.Order) error

type Repository interface {
	// Create persists the order, its line snapshots and the initial
	// PLACED history row in one transaction. inTx runs first inside the
	// same transaction; the orchestrator uses it for stock reservation
	// and coupon consumption, so any failure rolls back everything.
	Create(ctx context.Context, in CreateInput, inTx func(ctx context.Context, tx pgx.Tx) error) (*domain.Order, error)

	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	History(ctx context.Context, orderID string) ([]domain.OrderStatusEvent, error)
	SetGatewayRef(ctx context.Context, orderID, ref string) error

	// Update locks the order selected by ref, lets decide choose the
	// transition, applies it together with exactly one history row, runs
	// inTx (may be nil) under the same transaction and commits. The
	// returned Change is nil when decide chose a no-op.
	Update(ctx context.Context, ref Ref, decide DecideFunc, inTx TxFunc) (*domain.Order, *Change, error)
}
