package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/miravelle/modora-backend/api/routes"
	"github.com/miravelle/modora-backend/internal/cart"
	checkoutsvc "github.com/miravelle/modora-backend/internal/checkout"
	"github.com/miravelle/modora-backend/internal/cron"
	"github.com/miravelle/modora-backend/internal/inventory"
	"github.com/miravelle/modora-backend/internal/orders"
	"github.com/miravelle/modora-backend/internal/refunds"
	stripewebhook "github.com/miravelle/modora-backend/internal/webhooks/stripe"
	"github.com/miravelle/modora-backend/pkg/config"
	"github.com/miravelle/modora-backend/pkg/db"
	"github.com/miravelle/modora-backend/pkg/logger"
	"github.com/miravelle/modora-backend/pkg/migrate"
	"github.com/miravelle/modora-backend/pkg/redis"
	pkgstripe "github.com/miravelle/modora-backend/pkg/stripe"
)

const webhookIdempotencyTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	cartsRepo := cart.NewRepository(dbClient.DB())

	ledger, err := inventory.NewLedger(logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}

	refundsService, err := refunds.NewService(refunds.ServiceParams{
		OrderRepo:         ordersRepo,
		TransactionRunner: dbClient,
		Ledger:            ledger,
		StripeClient:      refunds.NewStripeClient(stripeClient),
		Logger:            logg,
		Returns:           cfg.Returns,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create refunds service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, cartsRepo, dbClient, ledger, refundsService, logg, cfg.Shipping)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(ordersRepo, checkoutsvc.NewStripeClient(stripeClient), logg, cfg.Stripe)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "stripe-event")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Orders:  ordersService,
		Refunds: refundsService,
		Guard:   webhookGuard,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	autoDeliveryJob, err := cron.NewAutoDeliveryJob(cron.AutoDeliveryJobParams{
		Logger:        logg,
		DB:            dbClient,
		ShippedReader: ordersRepo,
		AfterDays:     cfg.Returns.AutoDeliverAfterDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auto-delivery job", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			ordersService,
			refundsService,
			checkoutService,
			stripeClient,
			webhookService,
			autoDeliveryJob,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
