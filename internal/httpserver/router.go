package httpserver

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/internal/repository/coupon"
	"storefront/internal/repository/product"
	"storefront/internal/repository/user"
	"storefront/internal/service/checkout"
	couponsvc "storefront/internal/service/coupon"
	"storefront/internal/service/order"
	"storefront/internal/service/payment"
	"storefront/internal/session"
)

// Deps carries everything the routes need.
type Deps struct {
	DB         *pgxpool.Pool
	Redis      *redis.Client
	Products   product.Repository
	Coupons    coupon.Repository
	Users      user.Repository
	Sessions   *session.Store
	CouponSvc  *couponsvc.Service
	Checkout   *checkout.Service
	Orders     *order.Service
	Payments   *payment.Service
	AdminToken string
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.SugaredLogger, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "X-User-ID", "X-Admin-Token")
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.DB, deps.Redis))

	h := &handlers{deps: deps, log: logger}

	router.GET("/products", h.listProducts)
	router.POST("/register", h.register)

	// Webhook is called by the payment provider, not a signed-in user.
	router.POST("/payment/webhook", h.paymentWebhook)

	authed := router.Group("/", userMiddleware())
	{
		authed.GET("/cart", h.viewCart)
		authed.POST("/cart/items/:productID", h.addCartItem)
		authed.POST("/cart/items/:productID/decrease", h.decreaseCartItem)
		authed.POST("/cart/coupon", h.applyCoupon)
		authed.DELETE("/cart", h.clearCart)

		authed.GET("/checkout", h.checkoutSummary)
		authed.POST("/checkout/place-order", h.placeOrder)

		authed.GET("/orders", h.listOrders)
		authed.GET("/orders/:orderID", h.getOrder)
		authed.POST("/orders/:orderID/cancel", h.cancelOrder)

		authed.POST("/payment/gateway/:orderID", h.createGatewayOrder)
	}

	admin := router.Group("/admin", adminMiddleware(deps.AdminToken))
	{
		admin.GET("/orders", h.adminListOrders)
		admin.POST("/orders/:orderID/status", h.adminUpdateStatus)
		admin.POST("/orders/:orderID/mark-paid", h.adminMarkPaid)
		admin.POST("/coupons", h.adminCreateCoupon)
		admin.POST("/products", h.adminUpsertProduct)
	}

	return router
}

type handlers struct {
	deps Deps
	log  *zap.SugaredLogger
}

func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Infow("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
}

// userMiddleware identifies the caller. Real authentication sits in
// front of this service; it forwards the verified user id in a header.
func userMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
			return
		}
		c.Set("userID", userID)
		c.Next()
	}
}

func adminMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || c.GetHeader("X-Admin-Token") != token {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString("userID")
}
