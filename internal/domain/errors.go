package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrEmptyCart indicates checkout was attempted with no cart lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidPaymentMethod indicates an unsupported payment method.
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	// ErrDuplicateSubmission indicates a missing or already-consumed checkout token.
	ErrDuplicateSubmission = errors.New("duplicate or invalid checkout submission")
	// ErrAlreadyPaid indicates the order's payment status is already PAID.
	// Callers treat it as a no-op success, never a failure.
	ErrAlreadyPaid = errors.New("order already paid")
	// ErrAmountMismatch indicates a captured amount that does not equal the order total.
	ErrAmountMismatch = errors.New("captured amount does not match order total")
	// ErrBadSignature indicates a webhook body that failed HMAC verification.
	ErrBadSignature = errors.New("invalid webhook signature")
	// ErrMalformedEvent indicates a webhook payload missing required fields.
	ErrMalformedEvent = errors.New("malformed webhook event")
)

// InsufficientStockError reports which product could not be reserved.
type InsufficientStockError struct {
	ProductID string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested %d)", e.ProductID, e.Requested)
}

// InvalidTransitionError reports a rejected order status transition.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid order status transition %s -> %s", e.From, e.To)
}

// CouponRejectReason enumerates the coupon validation failures.
type CouponRejectReason string

const (
	CouponNotFound     CouponRejectReason = "not_found"
	CouponInactive     CouponRejectReason = "inactive"
	CouponExpired      CouponRejectReason = "expired"
	CouponLimitReached CouponRejectReason = "usage_limit_reached"
	CouponBelowMinimum CouponRejectReason = "subtotal_below_minimum"
)

// CouponInvalidError reports why a coupon cannot be applied.
type CouponInvalidError struct {
	Code   string
	Reason CouponRejectReason
}

func (e *CouponInvalidError) Error() string {
	return fmt.Sprintf("coupon %s rejected: %s", e.Code, e.Reason)
}
