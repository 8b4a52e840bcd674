package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/domain"
)

func testRedis(ctx context.Context, t *testing.T) *redis.Client {
	t.Helper()
	candidates := []string{
		os.Getenv("TEST_REDIS_ADDR"),
		"redis-test:6379",
		"localhost:6379",
	}
	var lastErr error
	for _, addr := range candidates {
		if addr == "" {
			continue
		}
		rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
		if err := rdb.Ping(ctx).Err(); err != nil {
			lastErr = err
			rdb.Close()
			continue
		}
		return rdb
	}
	t.Skipf("no test redis reachable: %v", lastErr)
	return nil
}

func TestCartRoundTrip_Integration(t *testing.T) {
	ctx := context.Background()
	rdb := testRedis(ctx, t)
	defer rdb.Close()
	defer rdb.FlushDB(ctx)

	store := NewStore(rdb, time.Minute)
	mug := domain.Product{ID: "p1", Name: "Ceramic Mug", PricePaise: 50_00, Stock: 5}

	cart, err := store.AddItem(ctx, "u1", mug, 2)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(cart.Lines) != 1 || cart.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected cart: %+v", cart)
	}

	// Adding past stock is rejected without changing the stored cart.
	if _, err := store.AddItem(ctx, "u1", mug, 4); err == nil {
		t.Fatalf("expected stock error")
	} else {
		var se *domain.InsufficientStockError
		if !errors.As(err, &se) {
			t.Fatalf("expected InsufficientStockError, got %v", err)
		}
	}
	cart, _ = store.Cart(ctx, "u1")
	if cart.Lines[0].Quantity != 2 {
		t.Fatalf("rejected add must not change quantity, got %d", cart.Lines[0].Quantity)
	}

	// Decreasing to zero drops the line.
	cart, err = store.AddItem(ctx, "u1", mug, -2)
	if err != nil {
		t.Fatalf("decrease: %v", err)
	}
	if !cart.Empty() {
		t.Fatalf("expected empty cart, got %+v", cart)
	}
}

func TestCheckoutTokenOneShot_Integration(t *testing.T) {
	ctx := context.Background()
	rdb := testRedis(ctx, t)
	defer rdb.Close()
	defer rdb.FlushDB(ctx)

	store := NewStore(rdb, time.Minute)

	token, err := store.MintCheckoutToken(ctx, "u1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	ok, err := store.ConsumeCheckoutToken(ctx, "u1", token)
	if err != nil || !ok {
		t.Fatalf("first consume must succeed: ok=%v err=%v", ok, err)
	}
	ok, err = store.ConsumeCheckoutToken(ctx, "u1", token)
	if err != nil || ok {
		t.Fatalf("second consume must fail: ok=%v err=%v", ok, err)
	}
}

func TestCheckoutTokenSurvivesMismatch_Integration(t *testing.T) {
	ctx := context.Background()
	rdb := testRedis(ctx, t)
	defer rdb.Close()
	defer rdb.FlushDB(ctx)

	store := NewStore(rdb, time.Minute)

	token, err := store.MintCheckoutToken(ctx, "u1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	// A wrong or empty submit must not burn the outstanding token.
	ok, err := store.ConsumeCheckoutToken(ctx, "u1", "not-the-token")
	if err != nil || ok {
		t.Fatalf("mismatched consume must fail: ok=%v err=%v", ok, err)
	}
	ok, err = store.ConsumeCheckoutToken(ctx, "u1", "")
	if err != nil || ok {
		t.Fatalf("empty consume must fail: ok=%v err=%v", ok, err)
	}

	ok, err = store.ConsumeCheckoutToken(ctx, "u1", token)
	if err != nil || !ok {
		t.Fatalf("matching consume must still succeed: ok=%v err=%v", ok, err)
	}
}

func TestClearCartDropsCoupon_Integration(t *testing.T) {
	ctx := context.Background()
	rdb := testRedis(ctx, t)
	defer rdb.Close()
	defer rdb.FlushDB(ctx)

	store := NewStore(rdb, time.Minute)
	if err := store.ApplyCoupon(ctx, "u1", "SAVE10"); err != nil {
		t.Fatalf("apply coupon: %v", err)
	}
	if err := store.ClearCart(ctx, "u1"); err != nil {
		t.Fatalf("clear cart: %v", err)
	}
	code, err := store.AppliedCoupon(ctx, "u1")
	if err != nil {
		t.Fatalf("get coupon: %v", err)
	}
	if code != "" {
		t.Fatalf("coupon must be dropped with the cart, got %q", code)
	}
}
