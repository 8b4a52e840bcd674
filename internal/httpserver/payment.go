package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

// gatewaySignatureHeader carries the provider's HMAC over the raw body.
const gatewaySignatureHeader = "X-Gateway-Signature"

func (h *handlers) createGatewayOrder(c *gin.Context) {
	sess, err := h.deps.Payments.CreateGatewayOrder(c.Request.Context(), currentUser(c), c.Param("orderID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *handlers) paymentWebhook(c *gin.Context) {
	// The body must reach the verifier byte for byte; no binding here.
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	signature := c.GetHeader(gatewaySignatureHeader)
	if signature == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing signature header"})
		return
	}

	outcome, err := h.deps.Payments.HandleWebhook(c.Request.Context(), rawBody, signature)
	var transitionErr *domain.InvalidTransitionError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": string(outcome)})
	case errors.Is(err, domain.ErrBadSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
	case errors.Is(err, domain.ErrMalformedEvent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
	case errors.Is(err, domain.ErrAmountMismatch):
		// Permanent disagreement; retrying the same event cannot fix it.
		h.log.Errorw("webhook amount mismatch", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount mismatch"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown order reference"})
	case errors.As(err, &transitionErr):
		// Payment captured for an order the state machine will not move;
		// retrying the delivery cannot change the outcome.
		c.JSON(http.StatusConflict, gin.H{"error": "order cannot accept payment"})
	default:
		// Transient failure: a 5xx makes the provider redeliver.
		h.log.Errorw("webhook processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
