// Package checkout turns a session cart into a persisted order. Stock
// reservation, coupon consumption and order insertion commit or roll
// back as one transaction.
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/notify"
	couponrepo "storefront/internal/repository/coupon"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	userrepo "storefront/internal/repository/user"
	couponsvc "storefront/internal/service/coupon"
)

// SessionStore is the slice of the session layer checkout needs.
type SessionStore interface {
	Cart(ctx context.Context, userID string) (domain.Cart, error)
	AppliedCoupon(ctx context.Context, userID string) (string, error)
	MintCheckoutToken(ctx context.Context, userID string) (string, error)
	ConsumeCheckoutToken(ctx context.Context, userID, token string) (bool, error)
	ClearCart(ctx context.Context, userID string) error
}

type Service struct {
	orders   orderrepo.Repository
	products productrepo.Repository
	coupons  couponrepo.Repository
	users    userrepo.Repository
	sessions SessionStore
	notifier *notify.Dispatcher
	log      *zap.SugaredLogger
}

func NewService(
	orders orderrepo.Repository,
	products productrepo.Repository,
	coupons couponrepo.Repository,
	users userrepo.Repository,
	sessions SessionStore,
	notifier *notify.Dispatcher,
	log *zap.SugaredLogger,
) *Service {
	return &Service{
		orders:   orders,
		products: products,
		coupons:  coupons,
		users:    users,
		sessions: sessions,
		notifier: notifier,
		log:      log,
	}
}

// Summary is the checkout review page: frozen amounts plus the token the
// client must return on submit.
type Summary struct {
	Cart          domain.Cart `json:"cart"`
	CouponCode    string      `json:"couponCode,omitempty"`
	CouponReject  string      `json:"couponReject,omitempty"`
	SubtotalPaise int64       `json:"subtotalPaise"`
	DiscountPaise int64       `json:"discountPaise"`
	TotalPaise    int64       `json:"totalPaise"`
	CheckoutToken string      `json:"checkoutToken"`
}

// Summarize prices the current cart and mints a fresh checkout token.
// Re-requesting the summary invalidates any earlier token.
func (s *Service) Summarize(ctx context.Context, userID string) (*Summary, error) {
	cart, err := s.sessions.Cart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.Empty() {
		return nil, domain.ErrEmptyCart
	}

	sum := &Summary{
		Cart:          cart,
		SubtotalPaise: cart.Subtotal(),
	}
	sum.TotalPaise = sum.SubtotalPaise

	if c, reject := s.appliedCoupon(ctx, userID, sum.SubtotalPaise); c != nil {
		sum.CouponCode = c.Code
		sum.DiscountPaise = couponsvc.Discount(c, sum.SubtotalPaise)
		sum.TotalPaise = sum.SubtotalPaise - sum.DiscountPaise
	} else if reject != "" {
		sum.CouponReject = reject
	}

	if sum.CheckoutToken, err = s.sessions.MintCheckoutToken(ctx, userID); err != nil {
		return nil, err
	}
	return sum, nil
}

// PlaceInput is one checkout submission.
type PlaceInput struct {
	UserID        string
	CheckoutToken string
	PaymentMethod domain.PaymentMethod
	Shipping      domain.ShippingAddress
}

// NextAction tells the client what happens after placement.
type NextAction struct {
	// Kind is "payment" when the client must complete gateway payment,
	// "done" when nothing further is needed (COD).
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
}

type PlaceResult struct {
	Order *domain.Order `json:"order"`
	Next  NextAction    `json:"next"`
}

// Place creates the order. The checkout token is consumed first, so a
// double submit fails before touching stock; the transaction reserves
// every line and consumes the coupon, so a failure on any line leaves
// no partial movement behind.
func (s *Service) Place(ctx context.Context, in PlaceInput) (*PlaceResult, error) {
	ok, err := s.sessions.ConsumeCheckoutToken(ctx, in.UserID, in.CheckoutToken)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrDuplicateSubmission
	}

	if in.PaymentMethod != domain.PaymentMethodCOD && in.PaymentMethod != domain.PaymentMethodGateway {
		return nil, domain.ErrInvalidPaymentMethod
	}

	cart, err := s.sessions.Cart(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if cart.Empty() {
		return nil, domain.ErrEmptyCart
	}

	subtotal := cart.Subtotal()
	var (
		discount int64
		couponID *string
	)
	c, _ := s.appliedCoupon(ctx, in.UserID, subtotal)
	if c != nil {
		discount = couponsvc.Discount(c, subtotal)
		couponID = &c.ID
	}

	lines := make([]domain.OrderLine, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		lines = append(lines, domain.OrderLine{
			ProductID:      l.ProductID,
			ProductName:    l.Name,
			Quantity:       l.Quantity,
			UnitPricePaise: l.PricePaise,
		})
	}

	paymentStatus := domain.PaymentPending
	if in.PaymentMethod == domain.PaymentMethodCOD {
		// Cash on delivery settles out of band; the order core records it
		// as payable-on-receipt and never waits on a webhook.
		paymentStatus = domain.PaymentPaid
	}

	create := orderrepo.CreateInput{
		UserID:        in.UserID,
		Lines:         lines,
		Shipping:      in.Shipping,
		PaymentMethod: in.PaymentMethod,
		PaymentStatus: paymentStatus,
		SubtotalPaise: subtotal,
		DiscountPaise: discount,
		TotalPaise:    subtotal - discount,
		CouponID:      couponID,
	}

	o, err := s.orders.Create(ctx, create, func(ctx context.Context, tx pgx.Tx) error {
		for _, l := range lines {
			if err := s.products.ReserveTx(ctx, tx, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		if c != nil {
			consumed, err := s.coupons.ConsumeTx(ctx, tx, c.ID)
			if err != nil {
				return err
			}
			if !consumed {
				return &domain.CouponInvalidError{Code: c.Code, Reason: domain.CouponLimitReached}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.sessions.ClearCart(ctx, in.UserID); err != nil {
		s.log.Warnw("clear cart after checkout failed", "user_id", in.UserID, "error", err)
	}

	// Every placement gets a confirmation request, whatever the method;
	// the payment-confirmed notification for gateway orders comes later.
	s.sendConfirmation(ctx, o)

	result := &PlaceResult{Order: o}
	switch in.PaymentMethod {
	case domain.PaymentMethodCOD:
		result.Next = NextAction{Kind: "done", Message: "Order placed, pay on delivery"}
	case domain.PaymentMethodGateway:
		result.Next = NextAction{Kind: "payment", Message: "Complete payment to confirm the order"}
	}
	return result, nil
}

// appliedCoupon resolves the session's coupon code against the current
// subtotal. An invalid coupon is dropped, never a checkout failure; the
// reject reason is returned for the summary page.
func (s *Service) appliedCoupon(ctx context.Context, userID string, subtotalPaise int64) (*domain.Coupon, string) {
	code, err := s.sessions.AppliedCoupon(ctx, userID)
	if err != nil || code == "" {
		return nil, ""
	}
	c, err := s.coupons.GetByCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, string(domain.CouponNotFound)
	}
	if err != nil {
		s.log.Warnw("coupon lookup failed, dropping coupon", "code", code, "error", err)
		return nil, ""
	}
	if err := couponsvc.Validate(c, subtotalPaise, time.Now()); err != nil {
		var ce *domain.CouponInvalidError
		if errors.As(err, &ce) {
			s.log.Infow("dropping invalid coupon", "code", code, "reason", ce.Reason)
			return nil, string(ce.Reason)
		}
		return nil, ""
	}
	return c, ""
}

func (s *Service) sendConfirmation(ctx context.Context, o *domain.Order) {
	u, err := s.users.GetByID(ctx, o.UserID)
	if err != nil {
		s.log.Warnw("skip confirmation, user lookup failed", "order_id", o.ID, "error", err)
		return
	}
	s.notifier.Dispatch(notify.Request{
		Recipient: u.Email,
		Kind:      notify.KindOrderConfirmed,
		Params:    map[string]string{"order_id": o.ID, "name": u.Name},
	})
}
