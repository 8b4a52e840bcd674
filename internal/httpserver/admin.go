package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	couponrepo "storefront/internal/repository/coupon"
)

type registerRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	u, err := h.deps.Users.Create(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

type createCouponRequest struct {
	Code          string     `json:"code" binding:"required"`
	DiscountType  string     `json:"discountType" binding:"required,oneof=PERCENT FLAT"`
	DiscountValue int64      `json:"discountValue" binding:"required,gt=0"`
	MinOrderPaise int64      `json:"minOrderPaise"`
	UsageLimit    int        `json:"usageLimit"`
	ExpiryDate    *time.Time `json:"expiryDate"`
}

func (h *handlers) adminCreateCoupon(c *gin.Context) {
	var req createCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.DiscountType == string(domain.DiscountPercent) && req.DiscountValue > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "percent discount cannot exceed 100"})
		return
	}

	created, err := h.deps.Coupons.Create(c.Request.Context(), domain.Coupon{
		Code:          req.Code,
		DiscountType:  domain.DiscountType(req.DiscountType),
		DiscountValue: req.DiscountValue,
		MinOrderPaise: req.MinOrderPaise,
		UsageLimit:    req.UsageLimit,
		ExpiryDate:    req.ExpiryDate,
		IsActive:      true,
	})
	if err != nil {
		if errors.Is(err, couponrepo.ErrCodeExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "coupon code already exists"})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"coupon": created})
}

type upsertProductRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name" binding:"required"`
	PricePaise int64  `json:"pricePaise" binding:"required,gt=0"`
	Stock      int    `json:"stock" binding:"gte=0"`
}

func (h *handlers) adminUpsertProduct(c *gin.Context) {
	var req upsertProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	p, err := h.deps.Products.Upsert(c.Request.Context(), domain.Product{
		ID:         req.ID,
		Name:       req.Name,
		PricePaise: req.PricePaise,
		Stock:      req.Stock,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}
