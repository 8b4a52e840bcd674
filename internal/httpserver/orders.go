package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

func (h *handlers) listOrders(c *gin.Context) {
	orders, err := h.deps.Orders.ListForUser(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *handlers) getOrder(c *gin.Context) {
	ctx := c.Request.Context()
	o, err := h.deps.Orders.GetForUser(ctx, currentUser(c), c.Param("orderID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	history, err := h.deps.Orders.History(ctx, o.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o, "history": history})
}

func (h *handlers) cancelOrder(c *gin.Context) {
	o, err := h.deps.Orders.Cancel(c.Request.Context(), currentUser(c), c.Param("orderID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func (h *handlers) adminListOrders(c *gin.Context) {
	orders, err := h.deps.Orders.ListAll(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *handlers) adminUpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	o, err := h.deps.Orders.UpdateStatus(c.Request.Context(), c.Param("orderID"), domain.OrderStatus(req.Status))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func (h *handlers) adminMarkPaid(c *gin.Context) {
	o, err := h.deps.Orders.MarkPaid(c.Request.Context(), c.Param("orderID"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}
