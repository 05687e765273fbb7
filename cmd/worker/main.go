package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/wacart-backend/internal/bootstrap"
	"github.com/angelmondragon/wacart-backend/internal/broadcast"
	"github.com/angelmondragon/wacart-backend/pkg/instance"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
	"github.com/angelmondragon/wacart-backend/pkg/metrics"
)

func main() {
	ctx := context.Background()
	infra, err := bootstrap.Load(ctx, "worker")
	if err != nil {
		logger.New(logger.Options{ServiceName: "worker"}).Error(ctx, "failed to bootstrap", err)
		os.Exit(1)
	}
	defer infra.Close(ctx)

	cfg, logg := infra.Config, infra.Logger

	sender, err := infra.NewSender(metrics.NewOutboundMetrics(infra.Registerer))
	if err != nil {
		logg.Error(ctx, "failed to build sender", err)
		os.Exit(1)
	}
	runner := broadcast.NewRunner(broadcast.NewRepository(infra.DB.DB()), sender, broadcast.RunnerConfig{
		PollInterval:        cfg.Broadcast.PollInterval,
		StatusCheckInterval: cfg.Broadcast.StatusCheckInterval,
	}, logg)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx := logg.WithFields(sigCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		logg.Info(gctx, "starting broadcast runner")
		return runner.Run(gctx)
	})
	g.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logg.Error(runCtx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "worker shutting down gracefully")
}
