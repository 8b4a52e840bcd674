// Package payment reconciles gateway payments with orders. The webhook
// path is the only place a gateway order becomes PAID, and it flips
// payment and order status in one transaction.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/gateway"
	"storefront/internal/notify"
	orderrepo "storefront/internal/repository/order"
	userrepo "storefront/internal/repository/user"
)

// eventPaymentCaptured is the only webhook event acted on; everything
// else is acknowledged and ignored.
const eventPaymentCaptured = "payment.captured"

// Gateway is the provider client surface the reconciler needs.
type Gateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, receipt string, amountPaise int64, currency string) (*gateway.Order, error)
	VerifySignature(rawBody []byte, signature string) bool
}

type Service struct {
	orders   orderrepo.Repository
	users    userrepo.Repository
	gateway  Gateway
	notifier *notify.Dispatcher
	currency string
	log      *zap.SugaredLogger
}

func NewService(
	orders orderrepo.Repository,
	users userrepo.Repository,
	gw Gateway,
	notifier *notify.Dispatcher,
	currency string,
	log *zap.SugaredLogger,
) *Service {
	return &Service{
		orders:   orders,
		users:    users,
		gateway:  gw,
		notifier: notifier,
		currency: currency,
		log:      log,
	}
}

// CheckoutSession is what the client needs to open the payment widget.
type CheckoutSession struct {
	GatewayOrderID string `json:"gatewayOrderId"`
	KeyID          string `json:"keyId"`
	AmountPaise    int64  `json:"amountPaise"`
	Currency       string `json:"currency"`
}

// CreateGatewayOrder registers the order with the provider and stores
// the returned reference. Calling it for an already-paid order returns
// ErrAlreadyPaid so the client cannot collect twice.
func (s *Service) CreateGatewayOrder(ctx context.Context, userID, orderID string) (*CheckoutSession, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if o.PaymentMethod != domain.PaymentMethodGateway {
		return nil, domain.ErrInvalidPaymentMethod
	}
	if o.PaymentStatus == domain.PaymentPaid {
		return nil, domain.ErrAlreadyPaid
	}

	// Re-entering payment reuses the stored reference instead of opening
	// a second order at the provider.
	if o.GatewayOrderID != nil && *o.GatewayOrderID != "" {
		return &CheckoutSession{
			GatewayOrderID: *o.GatewayOrderID,
			KeyID:          s.gateway.KeyID(),
			AmountPaise:    o.TotalPaise,
			Currency:       s.currency,
		}, nil
	}

	gw, err := s.gateway.CreateOrder(ctx, "order_"+o.ID, o.TotalPaise, s.currency)
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}
	if err := s.orders.SetGatewayRef(ctx, o.ID, gw.ID); err != nil {
		return nil, err
	}
	return &CheckoutSession{
		GatewayOrderID: gw.ID,
		KeyID:          s.gateway.KeyID(),
		AmountPaise:    o.TotalPaise,
		Currency:       s.currency,
	}, nil
}

// Outcome tells the webhook handler how the event was settled. All
// outcomes map to 2xx responses; only errors make the provider retry.
type Outcome string

const (
	OutcomeAccepted         Outcome = "accepted"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeIgnored          Outcome = "ignored"
)

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				OrderID  string `json:"order_id"`
				Amount   int64  `json:"amount"`
				Currency string `json:"currency"`
				Status   string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleWebhook verifies and applies one gateway event. The signature
// is checked over the raw body before any parsing; redelivery of an
// already-applied event is a clean no-op.
func (s *Service) HandleWebhook(ctx context.Context, rawBody []byte, signature string) (Outcome, error) {
	if !s.gateway.VerifySignature(rawBody, signature) {
		return "", domain.ErrBadSignature
	}

	var ev webhookEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return "", domain.ErrMalformedEvent
	}
	if ev.Event != eventPaymentCaptured {
		s.log.Debugw("ignoring webhook event", "event", ev.Event)
		return OutcomeIgnored, nil
	}

	entity := ev.Payload.Payment.Entity
	if entity.Status != "" && entity.Status != "captured" {
		s.log.Debugw("ignoring non-captured payment", "status", entity.Status)
		return OutcomeIgnored, nil
	}
	if entity.OrderID == "" || entity.Amount <= 0 || entity.Currency == "" {
		return "", domain.ErrMalformedEvent
	}
	if entity.Currency != s.currency {
		return "", fmt.Errorf("currency %s: %w", entity.Currency, domain.ErrAmountMismatch)
	}

	decide := func(o *domain.Order) (*orderrepo.Change, error) {
		if o.PaymentStatus == domain.PaymentPaid {
			// Redelivered event, already applied.
			return nil, nil
		}
		if o.OrderStatus == domain.OrderCancelled {
			return nil, &domain.InvalidTransitionError{From: o.OrderStatus, To: domain.OrderConfirmed}
		}
		if entity.Amount != o.TotalPaise {
			return nil, fmt.Errorf("captured %d, order total %d: %w", entity.Amount, o.TotalPaise, domain.ErrAmountMismatch)
		}
		paid := domain.PaymentPaid
		change := &orderrepo.Change{
			PaymentStatus: &paid,
			Message:       "Payment captured",
		}
		if o.OrderStatus == domain.OrderPlaced {
			confirmed := domain.OrderConfirmed
			change.OrderStatus = &confirmed
		}
		return change, nil
	}

	o, change, err := s.orders.Update(ctx, orderrepo.Ref{GatewayRef: entity.OrderID}, decide, nil)
	if err != nil {
		var te *domain.InvalidTransitionError
		if errors.As(err, &te) {
			s.log.Warnw("payment captured for a cancelled order", "gateway_order_id", entity.OrderID)
		}
		return "", err
	}
	if change == nil {
		return OutcomeAlreadyProcessed, nil
	}

	s.log.Infow("payment reconciled", "order_id", o.ID, "gateway_order_id", entity.OrderID)
	s.notifyPaid(ctx, o)
	return OutcomeAccepted, nil
}

func (s *Service) notifyPaid(ctx context.Context, o *domain.Order) {
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
