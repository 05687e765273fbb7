package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/wacart-backend/api/controllers"
	"github.com/angelmondragon/wacart-backend/api/middleware"
	"github.com/angelmondragon/wacart-backend/internal/broadcast"
	"github.com/angelmondragon/wacart-backend/internal/notifications"
	"github.com/angelmondragon/wacart-backend/internal/orders"
	whatsappwebhook "github.com/angelmondragon/wacart-backend/internal/webhooks/whatsapp"
	"github.com/angelmondragon/wacart-backend/pkg/config"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

// Deps carries everything the HTTP surface needs. Redis and Idempotency are
// nil when Redis is not configured.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            pinger
	Redis         pinger
	Idempotency   middleware.ResponseStore
	Gatherer      prometheus.Gatherer
	Webhooks      *whatsappwebhook.Service
	Broadcasts    *broadcast.Service
	Orders        orders.Service
	Notifications notifications.Service
}

func NewRouter(d Deps) http.Handler {
	logg := d.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(d.Config))
		r.Get("/ready", controllers.HealthReady(d.Config, logg, d.DB, d.Redis))
	})

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.With(middleware.WebhookToken(d.Config.WhatsApp.WebhookToken, logg)).
			Post("/whatsapp", controllers.WhatsAppWebhook(d.Webhooks, logg))
	})

	r.Route("/api/v1/tenants/{tenantId}", func(r chi.Router) {
		r.Use(
			middleware.CORS(d.Config.CORS.AllowedOrigins),
			middleware.TenantContext(logg),
		)

		r.Route("/broadcasts", func(r chi.Router) {
			r.With(middleware.Idempotency(d.Idempotency, middleware.DefaultIdempotencyTTL, logg)).
				Post("/", controllers.CreateBroadcast(d.Broadcasts, logg))
			r.Get("/{jobId}", controllers.GetBroadcast(d.Broadcasts, logg))
			r.Post("/{jobId}/pause", controllers.PauseBroadcast(d.Broadcasts, logg))
			r.Post("/{jobId}/resume", controllers.ResumeBroadcast(d.Broadcasts, logg))
			r.Post("/{jobId}/cancel", controllers.CancelBroadcast(d.Broadcasts, logg))
		})

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Use(middleware.Idempotency(d.Idempotency, middleware.CriticalIdempotencyTTL, logg))
			r.Post("/paid", controllers.MarkOrderPaid(d.Orders, logg))
			r.Post("/cancel", controllers.CancelOrder(d.Orders, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(d.Notifications, logg))
			r.Post("/read", controllers.MarkAllNotificationsRead(d.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(d.Notifications, logg))
		})
	})

	return r
}
