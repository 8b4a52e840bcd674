package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/notify"
	orderrepo "storefront/internal/repository/order"
)

type stubSessions struct {
	cart       domain.Cart
	coupon     string
	token      string
	cleared    bool
	mintCalled int
}

func (s *stubSessions) Cart(ctx context.Context, userID string) (domain.Cart, error) {
	return s.cart, nil
}

func (s *stubSessions) AppliedCoupon(ctx context.Context, userID string) (string, error) {
	return s.coupon, nil
}

func (s *stubSessions) MintCheckoutToken(ctx context.Context, userID string) (string, error) {
	s.mintCalled++
	s.token = "tok-1"
	return s.token, nil
}

func (s *stubSessions) ConsumeCheckoutToken(ctx context.Context, userID, token string) (bool, error) {
	if s.token == "" || token != s.token {
		return false, nil
	}
	s.token = ""
	return true, nil
}

func (s *stubSessions) ClearCart(ctx context.Context, userID string) error {
	s.cleared = true
	s.cart = domain.Cart{}
	return nil
}

type stubOrders struct {
	created *domain.Order
}

func (r *stubOrders) Create(ctx context.Context, in orderrepo.CreateInput, inTx func(ctx context.Context, tx pgx.Tx) error) (*domain.Order, error) {
	if inTx != nil {
		if err := inTx(ctx, nil); err != nil {
			return nil, err
		}
	}
	o := &domain.Order{
		ID:            "ord-1",
		UserID:        in.UserID,
		SubtotalPaise: in.SubtotalPaise,
		DiscountPaise: in.DiscountPaise,
		TotalPaise:    in.TotalPaise,
		CouponID:      in.CouponID,
		PaymentMethod: in.PaymentMethod,
		PaymentStatus: in.PaymentStatus,
		OrderStatus:   domain.OrderPlaced,
		Shipping:      in.Shipping,
		Lines:         in.Lines,
	}
	r.created = o
	return o, nil
}

func (r *stubOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return nil, domain.ErrNotFound
}

func (r *stubOrders) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return nil, nil
}

func (r *stubOrders) ListAll(ctx context.Context) ([]domain.Order, error) { return nil, nil }

func (r *stubOrders) History(ctx context.Context, orderID string) ([]domain.OrderStatusEvent, error) {
	return nil, nil
}

func (r *stubOrders) SetGatewayRef(ctx context.Context, orderID, ref string) error { return nil }

func (r *stubOrders) Update(ctx context.Context, ref orderrepo.Ref, decide orderrepo.DecideFunc, inTx orderrepo.TxFunc) (*domain.Order, *orderrepo.Change, error) {
	return nil, nil, errors.New("not implemented")
}

type stubProducts struct {
	reserved map[string]int
	failFor  string
}

func (r *stubProducts) List(ctx context.Context) ([]domain.Product, error) { return nil, nil }

func (r *stubProducts) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return nil, domain.ErrNotFound
}

func (r *stubProducts) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	return nil, errors.New("not implemented")
}

func (r *stubProducts) ReserveTx(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	if productID == r.failFor {
		return &domain.InsufficientStockError{ProductID: productID, Requested: qty}
	}
	if r.reserved == nil {
		r.reserved = map[string]int{}
	}
	r.reserved[productID] += qty
	return nil
}

func (r *stubProducts) ReleaseTx(ctx context.Context, tx pgx.Tx, productID string, qty int) error {
	return errors.New("not implemented")
}

type stubCoupons struct {
	coupon    *domain.Coupon
	consumed  int
	consumeOK bool
}

func (r *stubCoupons) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	if r.coupon == nil || r.coupon.Code != code {
		return nil, domain.ErrNotFound
	}
	c := *r.coupon
	return &c, nil
}

func (r *stubCoupons) Create(ctx context.Context, c domain.Coupon) (*domain.Coupon, error) {
	return nil, errors.New("not implemented")
}

func (r *stubCoupons) ConsumeTx(ctx context.Context, tx pgx.Tx, couponID string) (bool, error) {
	r.consumed++
	return r.consumeOK, nil
}

type stubUsers struct{}

func (r *stubUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return &domain.User{ID: id, Name: "Asha Rao", Email: "asha@example.com"}, nil
}

func (r *stubUsers) Create(ctx context.Context, name, email string) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []notify.Request
}

func (m *recordingMailer) Send(_ context.Context, req notify.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, req)
	return nil
}

func (m *recordingMailer) kinds() []notify.Kind {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kinds []notify.Kind
	for _, r := range m.sent {
		kinds = append(kinds, r.Kind)
	}
	return kinds
}

type fixture struct {
	svc        *Service
	sessions   *stubSessions
	orders     *stubOrders
	products   *stubProducts
	coupons    *stubCoupons
	mailer     *recordingMailer
	dispatcher *notify.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sessions := &stubSessions{
		cart: domain.Cart{Lines: []domain.CartLine{
			{ProductID: "p1", Name: "Ceramic Mug", PricePaise: 50_00, Quantity: 2},
			{ProductID: "p2", Name: "Jute Tote", PricePaise: 100_00, Quantity: 1},
		}},
		token: "tok-1",
	}
	orders := &stubOrders{}
	products := &stubProducts{}
	coupons := &stubCoupons{consumeOK: true}
	mailer := &recordingMailer{}
	dispatcher := notify.NewDispatcher(mailer, zap.NewNop().Sugar(), 8)
	t.Cleanup(dispatcher.Close)

	svc := NewService(orders, products, coupons, &stubUsers{}, sessions, dispatcher, zap.NewNop().Sugar())
	return &fixture{
		svc:        svc,
		sessions:   sessions,
		orders:     orders,
		products:   products,
		coupons:    coupons,
		mailer:     mailer,
		dispatcher: dispatcher,
	}
}

// confirmations drains the dispatcher and counts order-confirmed sends.
func (f *fixture) confirmations() int {
	f.dispatcher.Close()
	n := 0
	for _, k := range f.mailer.kinds() {
		if k == notify.KindOrderConfirmed {
			n++
		}
	}
	return n
}

func place(f *fixture, method domain.PaymentMethod) (*PlaceResult, error) {
	return f.svc.Place(context.Background(), PlaceInput{
		UserID:        "user-1",
		CheckoutToken: "tok-1",
		PaymentMethod: method,
		Shipping:      domain.ShippingAddress{FullName: "Asha Rao", Phone: "9999999999", Address: "1 MG Road", City: "Pune", State: "MH", Pincode: "411001"},
	})
}

func TestPlaceCOD(t *testing.T) {
	f := newFixture(t)

	res, err := place(f, domain.PaymentMethodCOD)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o := res.Order
	if o.SubtotalPaise != 200_00 || o.TotalPaise != 200_00 {
		t.Fatalf("unexpected amounts: subtotal %d total %d", o.SubtotalPaise, o.TotalPaise)
	}
	if o.PaymentStatus != domain.PaymentPaid {
		t.Fatalf("COD order must be recorded as paid, got %s", o.PaymentStatus)
	}
	if res.Next.Kind != "done" {
		t.Fatalf("unexpected next action: %+v", res.Next)
	}
	if f.products.reserved["p1"] != 2 || f.products.reserved["p2"] != 1 {
		t.Fatalf("stock not reserved: %v", f.products.reserved)
	}
	if !f.sessions.cleared {
		t.Fatalf("cart not cleared after checkout")
	}
	if got := f.confirmations(); got != 1 {
		t.Fatalf("expected one order confirmation request, got %d", got)
	}
}

func TestPlaceGatewayPendsPayment(t *testing.T) {
	f := newFixture(t)

	res, err := place(f, domain.PaymentMethodGateway)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Order.PaymentStatus != domain.PaymentPending {
		t.Fatalf("gateway order must pend, got %s", res.Order.PaymentStatus)
	}
	if res.Order.OrderStatus != domain.OrderPlaced {
		t.Fatalf("gateway order must stay placed, got %s", res.Order.OrderStatus)
	}
	if res.Next.Kind != "payment" {
		t.Fatalf("unexpected next action: %+v", res.Next)
	}
	// Placement confirms regardless of method; the gateway order's
	// payment-confirmed notice comes later from the webhook path.
	if got := f.confirmations(); got != 1 {
		t.Fatalf("expected one order confirmation request, got %d", got)
	}
}

func TestPlaceDoubleSubmit(t *testing.T) {
	f := newFixture(t)

	if _, err := place(f, domain.PaymentMethodCOD); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if _, err := place(f, domain.PaymentMethodCOD); !errors.Is(err, domain.ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
	if f.orders.created == nil {
		t.Fatalf("first order should exist")
	}
}

func TestPlaceEmptyCart(t *testing.T) {
	f := newFixture(t)
	f.sessions.cart = domain.Cart{}

	if _, err := place(f, domain.PaymentMethodCOD); !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestPlaceInvalidMethod(t *testing.T) {
	f := newFixture(t)

	if _, err := place(f, "WALLET"); !errors.Is(err, domain.ErrInvalidPaymentMethod) {
		t.Fatalf("expected ErrInvalidPaymentMethod, got %v", err)
	}
}

func TestPlaceInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	f.products.failFor = "p2"

	_, err := place(f, domain.PaymentMethodCOD)
	var se *domain.InsufficientStockError
	if !errors.As(err, &se) || se.ProductID != "p2" {
		t.Fatalf("expected InsufficientStockError for p2, got %v", err)
	}
	if f.orders.created != nil {
		t.Fatalf("order must not be created when a line cannot be reserved")
	}
}

func TestPlaceWithCoupon(t *testing.T) {
	f := newFixture(t)
	f.sessions.coupon = "SAVE10"
	f.coupons.coupon = &domain.Coupon{ID: "c1", Code: "SAVE10", DiscountType: domain.DiscountPercent, DiscountValue: 10, IsActive: true}

	res, err := place(f, domain.PaymentMethodCOD)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Order.DiscountPaise != 20_00 || res.Order.TotalPaise != 180_00 {
		t.Fatalf("unexpected discount math: %+v", res.Order)
	}
	if res.Order.CouponID == nil || *res.Order.CouponID != "c1" {
		t.Fatalf("coupon id not recorded")
	}
	if f.coupons.consumed != 1 {
		t.Fatalf("coupon must be consumed exactly once, got %d", f.coupons.consumed)
	}
}

func TestPlaceDropsInvalidCoupon(t *testing.T) {
	f := newFixture(t)
	f.sessions.coupon = "SAVE10"
	f.coupons.coupon = &domain.Coupon{ID: "c1", Code: "SAVE10", DiscountType: domain.DiscountPercent, DiscountValue: 10, IsActive: false}

	res, err := place(f, domain.PaymentMethodCOD)
	if err != nil {
		t.Fatalf("invalid coupon must not fail checkout: %v", err)
	}
	if res.Order.DiscountPaise != 0 || res.Order.CouponID != nil {
		t.Fatalf("invalid coupon must be dropped: %+v", res.Order)
	}
	if f.coupons.consumed != 0 {
		t.Fatalf("dropped coupon must not be consumed")
	}
}

func TestPlaceCouponLimitRace(t *testing.T) {
	f := newFixture(t)
	f.sessions.coupon = "SAVE10"
	f.coupons.coupon = &domain.Coupon{ID: "c1", Code: "SAVE10", DiscountType: domain.DiscountPercent, DiscountValue: 10, IsActive: true}
	f.coupons.consumeOK = false

	_, err := place(f, domain.PaymentMethodCOD)
	var ce *domain.CouponInvalidError
	if !errors.As(err, &ce) || ce.Reason != domain.CouponLimitReached {
		t.Fatalf("expected usage limit error, got %v", err)
	}
	if f.orders.created != nil {
		t.Fatalf("order must roll back when the coupon limit is hit at commit")
	}
}

func TestSummarize(t *testing.T) {
	f := newFixture(t)
	f.sessions.coupon = "SAVE10"
	f.coupons.coupon = &domain.Coupon{ID: "c1", Code: "SAVE10", DiscountType: domain.DiscountFlat, DiscountValue: 300_00, IsActive: true}

	sum, err := f.svc.Summarize(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Flat discount larger than the subtotal clamps the total to zero.
	if sum.SubtotalPaise != 200_00 || sum.DiscountPaise != 200_00 || sum.TotalPaise != 0 {
		t.Fatalf("unexpected summary amounts: %+v", sum)
	}
	if sum.CheckoutToken == "" || f.sessions.mintCalled != 1 {
		t.Fatalf("summary must mint a checkout token")
	}
}

func TestSummarizeCouponReject(t *testing.T) {
	f := newFixture(t)
	f.sessions.coupon = "SAVE10"
	f.coupons.coupon = &domain.Coupon{ID: "c1", Code: "SAVE10", DiscountType: domain.DiscountPercent, DiscountValue: 10, MinOrderPaise: 500_00, IsActive: true}

	sum, err := f.svc.Summarize(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.CouponReject != string(domain.CouponBelowMinimum) {
		t.Fatalf("unexpected reject reason: %q", sum.CouponReject)
	}
	if sum.DiscountPaise != 0 || sum.TotalPaise != 200_00 {
		t.Fatalf("rejected coupon must not discount: %+v", sum)
	}
}
