// Package bootstrap loads configuration and opens the shared resources every
// binary needs, then assembles the outbound send path on top of them.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/wacart-backend/pkg/config"
	"github.com/angelmondragon/wacart-backend/pkg/db"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
	"github.com/angelmondragon/wacart-backend/pkg/migrate"
	"github.com/angelmondragon/wacart-backend/pkg/redis"
)

// Infra holds process-wide resources. Redis is nil when not configured.
type Infra struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Registerer prometheus.Registerer
}

// Load reads .env and the environment, then connects to the database (running
// dev migrations when enabled) and, if configured, to Redis.
func Load(ctx context.Context, service string) (*Infra, error) {
	logg := logger.New(logger.Options{ServiceName: service})
	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = service

	logg = logger.New(logger.Options{
		ServiceName: service,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	infra := &Infra{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Registerer: prometheus.DefaultRegisterer,
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		infra.Close(ctx)
		return nil, fmt.Errorf("dev migrations: %w", err)
	}

	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			infra.Close(ctx)
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		infra.Redis = redisClient
	} else {
		logg.Warn(ctx, "redis not configured, using in-memory dedup and rate limits")
	}
	return infra, nil
}

// Close releases the connections opened by Load.
func (i *Infra) Close(ctx context.Context) {
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			i.Logger.Error(ctx, "error closing redis", err)
		}
	}
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			i.Logger.Error(ctx, "error closing database", err)
		}
	}
}
