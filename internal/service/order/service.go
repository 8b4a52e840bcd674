// Package order drives order status transitions: admin progression,
// customer cancellation and the manual paid override. Every transition
// is decided under the order's row lock and recorded as one history row.
package order

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/invoice"
	"storefront/internal/notify"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	userrepo "storefront/internal/repository/user"
)

type Service struct {
	orders   orderrepo.Repository
	products productrepo.Repository
	users    userrepo.Repository
	invoices *invoice.Writer
	notifier *notify.Dispatcher
	log      *zap.SugaredLogger
}

func NewService(
	orders orderrepo.Repository,
	products productrepo.Repository,
	users userrepo.Repository,
	invoices *invoice.Writer,
	notifier *notify.Dispatcher,
	log *zap.SugaredLogger,
) *Service {
	return &Service{
		orders:   orders,
		products: products,
		users:    users,
		invoices: invoices,
		notifier: notifier,
		log:      log,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// GetForUser returns the order only when it belongs to userID; a foreign
// order is indistinguishable from a missing one.
func (s *Service) GetForUser(ctx context.Context, userID, id string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *Service) ListAll(ctx context.Context) ([]domain.Order, error) {
	return s.orders.ListAll(ctx)
}

func (s *Service) History(ctx context.Context, orderID string) ([]domain.OrderStatusEvent, error) {
	return s.orders.History(ctx, orderID)
}

// UpdateStatus moves an order along the status chain on behalf of an
// admin. Skipping ahead, moving backwards and leaving a terminal status
// are all rejected with *domain.InvalidTransitionError.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, target domain.OrderStatus) (*domain.Order, error) {
	if !domain.ValidOrderStatus(target) {
		return nil, &domain.InvalidTransitionError{To: target}
	}

	decide := func(o *domain.Order) (*orderrepo.Change, error) {
		if !domain.CanTransition(o.OrderStatus, target) {
			return nil, &domain.InvalidTransitionError{From: o.OrderStatus, To: target}
		}
		return &orderrepo.Change{
			OrderStatus: &target,
			Message:     transitionMessage(target),
		}, nil
	}

	var inTx orderrepo.TxFunc
	if target == domain.OrderCancelled {
		inTx = s.restoreStock
	}

	o, change, err := s.orders.Update(ctx, orderrepo.Ref{ID: orderID}, decide, inTx)
	if err != nil {
		return nil, err
	}
	if change != nil {
		s.notifyStatus(ctx, o)
	}
	return o, nil
}

// Cancel is the customer-facing cancellation: allowed only for the
// order's owner and only before shipping. Reserved stock goes back in
// the same transaction.
func (s *Service) Cancel(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	decide := func(o *domain.Order) (*orderrepo.Change, error) {
		if o.UserID != userID {
			return nil, domain.ErrNotFound
		}
		if !o.OrderStatus.Cancellable() {
			return nil, &domain.InvalidTransitionError{From: o.OrderStatus, To: domain.OrderCancelled}
		}
		cancelled := domain.OrderCancelled
		return &orderrepo.Change{
			OrderStatus: &cancelled,
			Message:     "Cancelled by customer",
		}, nil
	}
	o, _, err := s.orders.Update(ctx, orderrepo.Ref{ID: orderID}, decide, s.restoreStock)
	return o, err
}

// MarkPaid is the admin override for out-of-band payments (e.g. a COD
// order settled by bank transfer). Marking an already-paid order again
// succeeds without writing anything.
func (s *Service) MarkPaid(ctx context.Context, orderID string) (*domain.Order, error) {
	decide := func(o *domain.Order) (*orderrepo.Change, error) {
		if o.PaymentStatus == domain.PaymentPaid {
			return nil, nil
		}
		paid := domain.PaymentPaid
		return &orderrepo.Change{
			PaymentStatus: &paid,
			Message:       "Payment recorded by admin",
		}, nil
	}
	o, change, err := s.orders.Update(ctx, orderrepo.Ref{ID: orderID}, decide, nil)
	if err != nil {
		return nil, err
	}
	if change != nil {
		s.notifyPayment(ctx, o)
	}
	return o, nil
}

func (s *Service) restoreStock(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	for _, l := range o.Lines {
		if err := s.products.ReleaseTx(ctx, tx, l.ProductID, l.Quantity); err != nil {
			return fmt.Errorf("release stock for %s: %w", l.ProductID, err)
		}
	}
	return nil
}

func transitionMessage(to domain.OrderStatus) string {
	switch to {
	case domain.OrderConfirmed:
		return "Order confirmed"
	case domain.OrderShipped:
		return "Order shipped"
	case domain.OrderDelivered:
		return "Order delivered"
	case domain.OrderCancelled:
		return "Cancelled by admin"
	}
	return "Status updated"
}

// notifyStatus dispatches the post-commit notification for a status
// change. Failures are logged and swallowed; the transition stands.
func (s *Service) notifyStatus(ctx context.Context, o *domain.Order) {
	u, err := s.users.GetByID(ctx, o.UserID)
	if err != nil {
		s.log.Warnw("skip notification, user lookup failed", "order_id", o.ID, "error", err)
		return
	}
	params := map[string]string{"order_id": o.ID, "name": u.Name}

	switch o.OrderStatus {
	case domain.OrderConfirmed:
		s.notifier.Dispatch(notify.Request{Recipient: u.Email, Kind: notify.KindOrderConfirmed, Params: params})
	case domain.OrderShipped:
		s.notifier.Dispatch(notify.Request{Recipient: u.Email, Kind: notify.KindOrderShipped, Params: params})
	case domain.OrderDelivered:
		req := notify.Request{Recipient: u.Email, Kind: notify.KindOrderDelivered, Params: params}
		// The invoice rides along only once the order is actually paid;
		// an unpaid COD delivery gets the plain notification.
		if o.PaymentStatus == domain.PaymentPaid {
			path, err := s.invoices.Generate(o, u.Name)
			if err != nil {
				s.log.Errorw("invoice generation failed", "order_id", o.ID, "error", err)
			} else {
				req.Attachment = path
			}
		}
		s.notifier.Dispatch(req)
		s.notifier.Dispatch(notify.Request{Recipient: u.Email, Kind: notify.KindReviewReminder, Params: params})
	}
}

func (s *Service) notifyPayment(ctx context.Context, o *domain.Order) {
	u, err := s.users.GetByID(ctx, o.UserID)
	if err != nil {
		s.log.Warnw("skip notification, user lookup failed", "order_id", o.ID, "error", err)
		return
	}
	s.notifier.Dispatch(notify.Request{
		Recipient: u.Email,
		Kind:      notify.KindPaymentConfirmed,
		Params:    map[string]string{"order_id": o.ID, "name": u.Name},
	})
}
