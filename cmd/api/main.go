package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/gateway"
	"storefront/internal/httpserver"
	"storefront/internal/invoice"
	"storefront/internal/notify"
	couponrepo "storefront/internal/repository/coupon"
	orderrepo "storefront/internal/repository/order"
	productrepo "storefront/internal/repository/product"
	userrepo "storefront/internal/repository/user"
	checkoutsvc "storefront/internal/service/checkout"
	couponsvc "storefront/internal/service/coupon"
	ordersvc "storefront/internal/service/order"
	paymentsvc "storefront/internal/service/payment"
	"storefront/internal/session"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zlog.Sync()
	logger := zlog.Sugar()

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalw("connect to db", "error", err)
	}
	defer dbpool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	productRepo := productrepo.NewPostgres(dbpool, logger)
	couponRepo := couponrepo.NewPostgres(dbpool)
	userRepo := userrepo.NewPostgres(dbpool)
	orderRepo := orderrepo.NewPostgres(dbpool)

	sessions := session.NewStore(rdb, cfg.CheckoutTokenTTL)
	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.WebhookSecret)
	invoices := invoice.NewWriter(cfg.InvoiceDir)
	dispatcher := notify.NewDispatcher(notify.NewLogMailer(logger), logger, cfg.NotifyQueueSize)

	couponService := couponsvc.NewService(couponRepo, logger)
	checkoutService := checkoutsvc.NewService(orderRepo, productRepo, couponRepo, userRepo, sessions, dispatcher, logger)
	orderService := ordersvc.NewService(orderRepo, productRepo, userRepo, invoices, dispatcher, logger)
	paymentService := paymentsvc.NewService(orderRepo, userRepo, gw, dispatcher, cfg.Currency, logger)

	srv := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		DB:         dbpool,
		Redis:      rdb,
		Products:   productRepo,
		Coupons:    couponRepo,
		Users:      userRepo,
		Sessions:   sessions,
		CouponSvc:  couponService,
		Checkout:   checkoutService,
		Orders:     orderService,
		Payments:   paymentService,
		AdminToken: cfg.AdminToken,
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Infow("starting http server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Infow("received signal, shutting down", "signal", sig.String())
	case err := <-serverErr:
		logger.Errorw("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("graceful shutdown failed", "error", err)
	} else {
		logger.Infow("server stopped")
	}

	// Drain queued notifications before the process exits.
	dispatcher.Close()
}
