// Package session is the Redis-backed cart/session collaborator. The
// order core never persists any of this state; it reads the cart once at
// checkout and treats it as a value.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"storefront/internal/domain"
)

const (
	keyCart   = "session:cart:%s"
	keyToken  = "session:checkout_token:%s"
	keyCoupon = "session:coupon:%s"
)

// Store keeps per-user carts, applied coupon codes and one-shot checkout
// tokens in Redis.
type Store struct {
	rdb      *redis.Client
	cartTTL  time.Duration
	tokenTTL time.Duration
}

func NewStore(rdb *redis.Client, tokenTTL time.Duration) *Store {
	return &Store{
		rdb:      rdb,
		cartTTL:  24 * time.Hour,
		tokenTTL: tokenTTL,
	}
}

func (s *Store) Cart(ctx context.Context, userID string) (domain.Cart, error) {
	raw, err := s.rdb.Get(ctx, fmt.Sprintf(keyCart, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Cart{}, nil
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("get cart: %w", err)
	}
	var cart domain.Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return domain.Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	return cart, nil
}

// AddItem adds delta units of the product, snapshotting name and price on
// first add. The resulting quantity is clamped to [0, product.Stock]; a
// line that reaches zero is dropped.
func (s *Store) AddItem(ctx context.Context, userID string, p domain.Product, delta int) (domain.Cart, error) {
	cart, err := s.Cart(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}

	idx := -1
	for i, l := range cart.Lines {
		if l.ProductID == p.ID {
			idx = i
			break
		}
	}

	if idx == -1 {
		if delta <= 0 {
			return cart, nil
		}
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID:  p.ID,
			Name:       p.Name,
			PricePaise: p.PricePaise,
			Quantity:   0,
		})
		idx = len(cart.Lines) - 1
	}

	qty := cart.Lines[idx].Quantity + delta
	if qty > p.Stock {
		return cart, &domain.InsufficientStockError{ProductID: p.ID, Requested: qty}
	}
	if qty <= 0 {
		cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
	} else {
		cart.Lines[idx].Quantity = qty
	}

	if err := s.saveCart(ctx, userID, cart); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

func (s *Store) ClearCart(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, fmt.Sprintf(keyCart, userID), fmt.Sprintf(keyCoupon, userID)).Err(); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *Store) saveCart(ctx context.Context, userID string, cart domain.Cart) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.rdb.Set(ctx, fmt.Sprintf(keyCart, userID), raw, s.cartTTL).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// MintCheckoutToken issues the single-use anti-double-submit token.
// Re-rendering checkout overwrites the previous token, invalidating it.
func (s *Store) MintCheckoutToken(ctx context.Context, userID string) (string, error) {
	token := uuid.NewString()
	if err := s.rdb.Set(ctx, fmt.Sprintf(keyToken, userID), token, s.tokenTTL).Err(); err != nil {
		return "", fmt.Errorf("mint checkout token: %w", err)
	}
	return token, nil
}

// consumeTokenScript deletes the stored token only when it matches the
// submitted one, so a mismatched submit cannot burn the outstanding token.
var consumeTokenScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ConsumeCheckoutToken atomically removes the stored token when the
// submitted one matches. Two submits with the same token cannot both
// succeed: the compare-and-delete leaves nothing for the second.
func (s *Store) ConsumeCheckoutToken(ctx context.Context, userID, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	n, err := consumeTokenScript.Run(ctx, s.rdb, []string{fmt.Sprintf(keyToken, userID)}, token).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("consume checkout token: %w", err)
	}
	return n == 1, nil
}

func (s *Store) ApplyCoupon(ctx context.Context, userID, code string) error {
	if err := s.rdb.Set(ctx, fmt.Sprintf(keyCoupon, userID), code, s.cartTTL).Err(); err != nil {
		return fmt.Errorf("apply coupon: %w", err)
	}
	return nil
}

// AppliedCoupon returns the coupon code attached to the session, or ""
// when none is applied.
func (s *Store) AppliedCoupon(ctx context.Context, userID string) (string, error) {
	code, err := s.rdb.Get(ctx, fmt.Sprintf(keyCoupon, userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get applied coupon: %w", err)
	}
	return code, nil
}
