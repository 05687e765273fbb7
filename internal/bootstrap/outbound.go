package bootstrap

import (
	"github.com/angelmondragon/wacart-backend/internal/outbound"
	"github.com/angelmondragon/wacart-backend/pkg/config"
	"github.com/angelmondragon/wacart-backend/pkg/idempotency"
	"github.com/angelmondragon/wacart-backend/pkg/metrics"
	"github.com/angelmondragon/wacart-backend/pkg/whatsapp"
)

// IdempotencyCache shares dedup keys across replicas through Redis when it
// is available.
func (i *Infra) IdempotencyCache() (idempotency.Cache, error) {
	if i.Redis == nil {
		return idempotency.NewMemoryCache(), nil
	}
	return idempotency.NewRedisCache(i.Redis)
}

func (i *Infra) RateLimiter() (outbound.RateLimiter, error) {
	cfg := i.Config.Pacer
	if i.Redis == nil {
		return outbound.NewMemoryRateLimiter(cfg.TenantRateLimit, cfg.TenantRateWindow)
	}
	return outbound.NewRedisRateLimiter(i.Redis, cfg.TenantRateLimit, cfg.TenantRateWindow)
}

// PacerConfig maps the flat env settings onto the pacer's delay tiers.
func PacerConfig(cfg config.PacerConfig) outbound.PacerConfig {
	return outbound.PacerConfig{
		BatchCooldown: cfg.BatchCooldown,
		PhoneThrottle: outbound.DelayRange{Min: cfg.PhoneThrottleMin, Max: cfg.PhoneThrottleMax},
		BatchDelay:    outbound.DelayRange{Min: cfg.BatchDelayMin, Max: cfg.BatchDelayMax},
		LiveDelay:     outbound.DelayRange{Min: cfg.LiveDelayMin, Max: cfg.LiveDelayMax},
	}
}

func VariationConfig(cfg config.PacerConfig) outbound.VariationConfig {
	return outbound.VariationConfig{
		GreetingProbability:  cfg.GreetingProbability,
		EmojiSwapProbability: cfg.EmojiSwapProbability,
		ZeroWidthProbability: cfg.ZeroWidthProbability,
	}
}

// NewSender assembles pacer, variator, provider client and message log.
// Each process paces independently; the tenant ceiling is shared only when
// the limiter is Redis-backed.
func (i *Infra) NewSender(m *metrics.OutboundMetrics) (*outbound.Sender, error) {
	cfg := i.Config

	client, err := whatsapp.NewClient(cfg.WhatsApp.InstanceID, cfg.WhatsApp.Token,
		whatsapp.WithBaseURL(cfg.WhatsApp.BaseURL),
		whatsapp.WithClientToken(cfg.WhatsApp.ClientToken),
		whatsapp.WithTimeout(cfg.WhatsApp.Timeout),
	)
	if err != nil {
		return nil, err
	}

	limiter, err := i.RateLimiter()
	if err != nil {
		return nil, err
	}
	rnd := outbound.NewRandom(cfg.Pacer.Seed)
	pacer, err := outbound.NewPacer(outbound.PacerParams{
		Config:   PacerConfig(cfg.Pacer),
		Limiter:  limiter,
		Throttle: outbound.NewPhoneThrottle(cfg.Pacer.PhoneThrottleWindow),
		Random:   rnd,
		Metrics:  m,
		Logger:   i.Logger,
	})
	if err != nil {
		return nil, err
	}

	return outbound.NewSender(outbound.SenderParams{
		Pacer:    pacer,
		Variator: outbound.NewVariator(VariationConfig(cfg.Pacer), rnd),
		Client:   client,
		Log:      outbound.NewRepository(i.DB.DB()),
		Metrics:  m,
		Logger:   i.Logger,
	})
}
