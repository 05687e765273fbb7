package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/angelmondragon/wacart-backend/internal/bootstrap"
	"github.com/angelmondragon/wacart-backend/internal/confirmations"
	"github.com/angelmondragon/wacart-backend/internal/cron"
	"github.com/angelmondragon/wacart-backend/internal/notifications"
	"github.com/angelmondragon/wacart-backend/internal/orders"
	"github.com/angelmondragon/wacart-backend/internal/outbound"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
	"github.com/angelmondragon/wacart-backend/pkg/metrics"
)

func main() {
	ctx := context.Background()
	infra, err := bootstrap.Load(ctx, "cron-worker")
	if err != nil {
		logger.New(logger.Options{ServiceName: "cron-worker"}).Error(ctx, "failed to bootstrap", err)
		os.Exit(1)
	}
	defer infra.Close(ctx)

	cfg, logg, conn := infra.Config, infra.Logger, infra.DB.DB()
	fail := func(msg string, err error) {
		logg.Error(ctx, msg, err)
		os.Exit(1)
	}

	var lock cron.Lock = &cron.LocalLock{}
	if infra.Redis != nil {
		redisLock, err := cron.NewRedisLock(infra.Redis, infra.Redis.LockKey(lockName(cfg.App.Env)), 0)
		if err != nil {
			fail("failed to create cron lock", err)
		}
		lock = redisLock
	}

	sender, err := infra.NewSender(metrics.NewOutboundMetrics(infra.Registerer))
	if err != nil {
		fail("failed to build sender", err)
	}
	confirmationsSvc, err := confirmations.NewService(confirmations.ServiceParams{
		Repo:   confirmations.NewRepository(conn),
		Orders: orders.NewRepository(conn),
		Sender: sender,
		Config: confirmations.Config{
			SendDelay:   cfg.Confirmations.SendDelay,
			TTL:         cfg.Confirmations.TTL,
			BatchSize:   cfg.Confirmations.BatchSize,
			CheckoutURL: cfg.Confirmations.CheckoutURL,
		},
		Logger: logg,
	})
	if err != nil {
		fail("failed to create confirmations service", err)
	}

	confirmationsJob, err := cron.NewConfirmationsJob(logg, confirmationsSvc)
	if err != nil {
		fail("failed to create confirmations job", err)
	}
	retentionJob, err := cron.NewOutboundRetentionJob(cron.OutboundRetentionJobParams{
		Logger:     logg,
		Repository: outbound.NewRepository(conn),
		Retention:  cfg.Cron.OutboundRetention,
	})
	if err != nil {
		fail("failed to create outbound retention job", err)
	}
	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifications.NewRepository(conn),
	})
	if err != nil {
		fail("failed to create notification cleanup job", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(confirmationsJob, retentionJob, cleanupJob),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(infra.Registerer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		fail("failed to create cron service", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "starting cron worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "cron worker shutting down gracefully")
}

// lockName is scoped per environment.
func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
