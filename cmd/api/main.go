package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelmondragon/wacart-backend/api/routes"
	"github.com/angelmondragon/wacart-backend/internal/bootstrap"
	"github.com/angelmondragon/wacart-backend/internal/broadcast"
	"github.com/angelmondragon/wacart-backend/internal/cart"
	"github.com/angelmondragon/wacart-backend/internal/confirmations"
	"github.com/angelmondragon/wacart-backend/internal/customers"
	"github.com/angelmondragon/wacart-backend/internal/ingest"
	"github.com/angelmondragon/wacart-backend/internal/intake"
	"github.com/angelmondragon/wacart-backend/internal/notifications"
	"github.com/angelmondragon/wacart-backend/internal/orders"
	"github.com/angelmondragon/wacart-backend/internal/outbound"
	"github.com/angelmondragon/wacart-backend/internal/products"
	"github.com/angelmondragon/wacart-backend/internal/reconciler"
	"github.com/angelmondragon/wacart-backend/internal/tenants"
	whatsappwebhook "github.com/angelmondragon/wacart-backend/internal/webhooks/whatsapp"
	"github.com/angelmondragon/wacart-backend/pkg/idempotency"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
	"github.com/angelmondragon/wacart-backend/pkg/metrics"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx := context.Background()
	infra, err := bootstrap.Load(ctx, "api")
	if err != nil {
		logger.New(logger.Options{ServiceName: "api"}).Error(ctx, "failed to bootstrap", err)
		os.Exit(1)
	}
	defer infra.Close(ctx)

	cfg, logg, conn := infra.Config, infra.Logger, infra.DB.DB()
	must := func(step string, err error) {
		if err != nil {
			logg.Error(logg.WithField(ctx, "step", step), "failed to wire api", err)
			os.Exit(1)
		}
	}

	// Sends outlive requests; dispatchCtx is cancelled only when draining
	// times out on shutdown.
	dispatchCtx, cancelDispatch := context.WithCancel(ctx)
	defer cancelDispatch()

	outboundMetrics := metrics.NewOutboundMetrics(infra.Registerer)
	sender, err := infra.NewSender(outboundMetrics)
	must("sender", err)
	dispatcher := outbound.NewDispatcher(dispatchCtx, sender, cfg.Dispatch.MaxInFlight, logg)
	notifier := outbound.NewNotifier(dispatcher, logg)

	cartRepo := cart.NewRepository(conn)
	itemRepo := cart.NewCartItemRepository(conn)
	orderRepo := orders.NewRepository(conn)
	customerRepo := customers.NewRepository(conn)
	productRepo := products.NewRepository(conn)

	ordersSvc, err := orders.NewService(orders.ServiceParams{
		Repo:     orderRepo,
		Carts:    cartRepo,
		Items:    itemRepo,
		Tx:       infra.DB,
		Notifier: notifier,
		Logger:   logg,
	})
	must("orders", err)

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(conn))
	must("notifications", err)

	catalog, err := products.NewCatalog(productRepo)
	must("catalog", err)
	inventory, err := products.NewInventoryGuard(productRepo, notificationsSvc, logg)
	must("inventory", err)

	cache, err := infra.IdempotencyCache()
	must("idempotency cache", err)
	productGuard, err := idempotency.NewGuard(cache, "product", cfg.Ingest.ProductDedupWindow)
	must("product guard", err)

	confirmationsSvc, err := confirmations.NewService(confirmations.ServiceParams{
		Repo:   confirmations.NewRepository(conn),
		Orders: orderRepo,
		Sender: sender,
		Config: confirmations.Config{
			SendDelay:   cfg.Confirmations.SendDelay,
			TTL:         cfg.Confirmations.TTL,
			BatchSize:   cfg.Confirmations.BatchSize,
			CheckoutURL: cfg.Confirmations.CheckoutURL,
		},
		Logger: logg,
	})
	must("confirmations", err)

	intakeSvc, err := intake.NewService(intake.ServiceParams{
		Customers:     customerRepo,
		Catalog:       catalog,
		ProductGuard:  productGuard,
		Inventory:     inventory,
		Carts:         cartRepo,
		Items:         itemRepo,
		Orders:        orderRepo,
		Totals:        ordersSvc,
		Notifier:      notifier,
		Confirmations: confirmationsSvc,
		Logger:        logg,
		ItemWindow:    cfg.Ingest.ItemDuplicateWindow,
	})
	must("intake", err)

	loc, err := cfg.Ingest.Location()
	must("timezone", err)
	resolver, err := tenants.NewResolver(tenants.NewRepository(conn), loc)
	must("tenant resolver", err)
	dedup, err := ingest.NewDeduplicator(cache, cfg.Ingest.EventDedupWindow, cfg.Ingest.ContentDedupWindow)
	must("deduplicator", err)
	pipeline, err := ingest.NewPipeline(ingest.PipelineParams{
		Dedup:    dedup,
		Resolver: resolver,
		Intake:   intakeSvc,
		Metrics:  metrics.NewIngestMetrics(infra.Registerer),
		Logger:   logg,
	})
	must("pipeline", err)

	statusReconciler, err := reconciler.NewService(outbound.NewRepository(conn), orderRepo, outboundMetrics, logg)
	must("reconciler", err)
	webhooks, err := whatsappwebhook.NewService(whatsappwebhook.ServiceParams{
		Pipeline:   pipeline,
		Reconciler: statusReconciler,
		Logger:     logg,
	})
	must("webhooks", err)

	broadcasts, err := broadcast.NewService(broadcast.NewRepository(conn), customerRepo, logg)
	must("broadcasts", err)

	deps := routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            infra.DB,
		Webhooks:      webhooks,
		Broadcasts:    broadcasts,
		Orders:        ordersSvc,
		Notifications: notificationsSvc,
	}
	if infra.Redis != nil {
		deps.Redis = infra.Redis
		deps.Idempotency = infra.Redis
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(runCtx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(runCtx, "http shutdown incomplete", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logg.Warn(logg.WithField(runCtx, "pending", dispatcher.Pending()), "abandoning queued sends")
		cancelDispatch()
	}
	logg.Info(runCtx, "api server shut down gracefully")
}
