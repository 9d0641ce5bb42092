package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/miravelle/modora-backend/api/controllers"
	ordercontrollers "github.com/miravelle/modora-backend/api/controllers/orders"
	webhookcontrollers "github.com/miravelle/modora-backend/api/controllers/webhooks"
	"github.com/miravelle/modora-backend/api/middleware"
	"github.com/miravelle/modora-backend/internal/checkout"
	"github.com/miravelle/modora-backend/internal/cron"
	"github.com/miravelle/modora-backend/internal/orders"
	"github.com/miravelle/modora-backend/internal/refunds"
	stripewebhook "github.com/miravelle/modora-backend/internal/webhooks/stripe"
	"github.com/miravelle/modora-backend/pkg/config"
	"github.com/miravelle/modora-backend/pkg/db"
	"github.com/miravelle/modora-backend/pkg/logger"
	"github.com/miravelle/modora-backend/pkg/redis"
	"github.com/miravelle/modora-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ordersService orders.Service,
	refundsService refunds.Service,
	checkoutService checkout.Service,
	stripeClient *stripe.Client,
	webhookService *stripewebhook.Service,
	autoDeliveryJob *cron.AutoDeliveryJob,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(webhookService, stripeClient, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(ordersService, logg))
			r.Get("/", ordercontrollers.List(ordersService, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersService, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersService, logg))
			r.Post("/{orderId}/confirm-delivered", ordercontrollers.ConfirmDelivered(ordersService, logg))
			r.Post("/{orderId}/checkout-session", controllers.CheckoutCreateSession(checkoutService, logg))
			r.Get("/{orderId}/refund", ordercontrollers.RefundStatus(refundsService, logg))
			r.Post("/{orderId}/return", ordercontrollers.RequestReturn(refundsService, logg))
			r.Post("/{orderId}/return/confirm-shipped", ordercontrollers.ConfirmReturnShipped(refundsService, logg))
		})

		r.Route("/admin/v1/orders", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))

			r.Get("/", controllers.AdminOrdersList(ordersService, logg))
			r.Get("/pending-returns", controllers.AdminPendingReturns(ordersService, logg))
			r.Get("/{orderId}", controllers.AdminOrderDetail(ordersService, logg))
			r.Patch("/{orderId}/status", controllers.AdminOrderUpdateStatus(ordersService, logg))
			r.Post("/{orderId}/refund", controllers.AdminCreateRefund(refundsService, logg))
			r.Post("/{orderId}/return/approve", controllers.AdminApproveReturn(refundsService, logg))
			r.Post("/{orderId}/return/reject", controllers.AdminRejectReturn(refundsService, logg))
			r.Post("/{orderId}/return/confirm-received", controllers.AdminConfirmReceived(refundsService, logg))
			r.Post("/{orderId}/return/confirm-refund", controllers.AdminConfirmRefund(refundsService, logg))
			r.Post("/{orderId}/return/reject-qc", controllers.AdminRejectQC(refundsService, logg))

			r.Post("/auto-delivery/run", controllers.AdminTriggerAutoDelivery(autoDeliveryJob, logg))

			r.Post("/manual/confirm-payment", webhookcontrollers.ManualConfirmPayment(webhookService, logg))
			r.Post("/manual/refund-result", webhookcontrollers.ManualRefundResult(webhookService, logg))
		})
	})

	return r
}
