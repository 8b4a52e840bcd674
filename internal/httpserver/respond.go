package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

// fail maps a service error onto a status code and JSON body. Unmapped
// errors become 500 without leaking internals.
func (h *handlers) fail(c *gin.Context, err error) {
	var (
		stockErr      *domain.InsufficientStockError
		transitionErr *domain.InvalidTransitionError
		couponErr     *domain.CouponInvalidError
	)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
	case errors.Is(err, domain.ErrInvalidPaymentMethod):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment method"})
	case errors.Is(err, domain.ErrDuplicateSubmission):
		c.JSON(http.StatusConflict, gin.H{"error": "order was already submitted"})
	case errors.Is(err, domain.ErrAlreadyPaid):
		c.JSON(http.StatusConflict, gin.H{"error": "order is already paid"})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient stock", "productId": stockErr.ProductID})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{
			"error": "invalid status transition",
			"from":  transitionErr.From,
			"to":    transitionErr.To,
		})
	case errors.As(err, &couponErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "coupon rejected", "reason": couponErr.Reason})
	default:
		h.log.Errorw("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
