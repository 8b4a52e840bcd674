// Package coupon validates discount codes and computes discounts. It is
// purely advisory: actual used_count consumption happens inside the
// checkout transaction, not here.
package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/domain"
	couponrepo "storefront/internal/repository/coupon"
)

type Service struct {
	repo couponrepo.Repository
	log  *zap.SugaredLogger
}

func NewService(repo couponrepo.Repository, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, log: log}
}

// Lookup fetches a coupon by code and checks it against the subtotal.
// The returned error is *domain.CouponInvalidError for every rejection,
// including an unknown code.
func (s *Service) Lookup(ctx context.Context, code string, subtotalPaise int64, now time.Time) (*domain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	c, err := s.repo.GetByCode(ctx, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.CouponInvalidError{Code: code, Reason: domain.CouponNotFound}
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(c, subtotalPaise, now); err != nil {
		s.log.Debugw("coupon rejected", "code", code, "error", err)
		return nil, err
	}
	return c, nil
}

// Validate applies the rejection checks in a fixed order so callers see
// a stable reason when several apply at once.
func Validate(c *domain.Coupon, subtotalPaise int64, now time.Time) error {
	switch {
	case !c.IsActive:
		return &domain.CouponInvalidError{Code: c.Code, Reason: domain.CouponInactive}
	case c.ExpiryDate != nil && now.After(*c.ExpiryDate):
		return &domain.CouponInvalidError{Code: c.Code, Reason: domain.CouponExpired}
	case c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit:
		return &domain.CouponInvalidError{Code: c.Code, Reason: domain.CouponLimitReached}
	case subtotalPaise < c.MinOrderPaise:
		return &domain.CouponInvalidError{Code: c.Code, Reason: domain.CouponBelowMinimum}
	}
	return nil
}

// Discount computes the discount in paise for a valid coupon. A flat
// discount never exceeds the subtotal, so the payable total cannot go
// negative.
func Discount(c *domain.Coupon, subtotalPaise int64) int64 {
	switch c.DiscountType {
	case domain.DiscountPercent:
		return subtotalPaise * c.DiscountValue / 100
	case domain.DiscountFlat:
		if c.DiscountValue > subtotalPaise {
			return subtotalPaise
		}
		return c.DiscountValue
	}
	return 0
}
