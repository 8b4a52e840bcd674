package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/service/checkout"
)

func (h *handlers) checkoutSummary(c *gin.Context) {
	sum, err := h.deps.Checkout.Summarize(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

type placeOrderRequest struct {
	CheckoutToken string `json:"checkoutToken" binding:"required"`
	PaymentMethod string `json:"paymentMethod" binding:"required"`
	Shipping      struct {
		FullName string `json:"fullName" binding:"required"`
		Phone    string `json:"phone" binding:"required"`
		Address  string `json:"address" binding:"required"`
		City     string `json:"city" binding:"required"`
		State    string `json:"state" binding:"required"`
		Pincode  string `json:"pincode" binding:"required"`
	} `json:"shipping" binding:"required"`
}

func (h *handlers) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := h.deps.Checkout.Place(c.Request.Context(), checkout.PlaceInput{
		UserID:        currentUser(c),
		CheckoutToken: req.CheckoutToken,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Shipping: domain.ShippingAddress{
			FullName: req.Shipping.FullName,
			Phone:    req.Shipping.Phone,
			Address:  req.Shipping.Address,
			City:     req.Shipping.City,
			State:    req.Shipping.State,
			Pincode:  req.Shipping.Pincode,
		},
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
