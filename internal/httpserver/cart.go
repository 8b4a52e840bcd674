package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

func (h *handlers) listProducts(c *gin.Context) {
	products, err := h.deps.Products.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *handlers) viewCart(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUser(c)

	cart, err := h.deps.Sessions.Cart(ctx, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	code, err := h.deps.Sessions.AppliedCoupon(ctx, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cart":          cart,
		"couponCode":    code,
		"subtotalPaise": cart.Subtotal(),
	})
}

type cartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *handlers) addCartItem(c *gin.Context) {
	h.changeCartItem(c, 1)
}

func (h *handlers) decreaseCartItem(c *gin.Context) {
	h.changeCartItem(c, -1)
}

func (h *handlers) changeCartItem(c *gin.Context, direction int) {
	// Body is optional; a missing quantity means one unit.
	req := cartQuantityRequest{Quantity: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil || req.Quantity <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	ctx := c.Request.Context()
	p, err := h.deps.Products.GetByID(ctx, c.Param("productID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	cart, err := h.deps.Sessions.AddItem(ctx, currentUser(c), *p, direction*req.Quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": cart, "subtotalPaise": cart.Subtotal()})
}

type applyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// applyCoupon preview-validates the code against the current subtotal
// and attaches it to the session. Consumption happens only at checkout.
func (h *handlers) applyCoupon(c *gin.Context) {
	var req applyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	userID := currentUser(c)

	cart, err := h.deps.Sessions.Cart(ctx, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if cart.Empty() {
		h.fail(c, domain.ErrEmptyCart)
		return
	}

	coupon, err := h.deps.CouponSvc.Lookup(ctx, req.Code, cart.Subtotal(), time.Now())
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.deps.Sessions.ApplyCoupon(ctx, userID, coupon.Code); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"couponCode": coupon.Code})
}

func (h *handlers) clearCart(c *gin.Context) {
	if err := h.deps.Sessions.ClearCart(c.Request.Context(), currentUser(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
