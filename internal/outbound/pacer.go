package outbound

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/wacart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
	"github.com/angelmondragon/wacart-backend/pkg/metrics"
)

// DelayRange is an inclusive [Min, Max] window for a random wait.
type DelayRange struct {
	Min time.Duration
	Max time.Duration
}

type PacerConfig struct {
	BatchCooldown time.Duration
	PhoneThrottle DelayRange
	BatchDelay    DelayRange
	LiveDelay     DelayRange
}

// Plan records every wait applied before a send.
type Plan struct {
	RateLimitWait time.Duration
	ThrottleDelay time.Duration
	BaseDelay     time.Duration
	Throttled     bool
}

func (p Plan) Total() time.Duration {
	return p.RateLimitWait + p.ThrottleDelay + p.BaseDelay
}

type PacerParams struct {
	Config   PacerConfig
	Limiter  RateLimiter
	Throttle *PhoneThrottle
	Random   Random
	Sleeper  Sleeper
	Metrics  *metrics.OutboundMetrics
	Logger   *logger.Logger
}

// Pacer spaces automated sends so they look like a person typing. Every wait
// blocks only the calling goroutine.
type Pacer struct {
	cfg      PacerConfig
	limiter  RateLimiter
	throttle *PhoneThrottle
	rnd      Random
	sleeper  Sleeper
	metrics  *metrics.OutboundMetrics
	logg     *logger.Logger
}

func NewPacer(params PacerParams) (*Pacer, error) {
	if params.Limiter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rate limiter required")
	}
	if params.Throttle == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone throttle required")
	}
	if params.Random == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "random source required")
	}
	if params.Sleeper == nil {
		params.Sleeper = NewSleeper()
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	return &Pacer{
		cfg:      params.Config,
		limiter:  params.Limiter,
		throttle: params.Throttle,
		rnd:      params.Random,
		sleeper:  params.Sleeper,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// Wait blocks until a send to phone may go out. Live sends that hit the
// tenant ceiling fail with CodeRateLimit; batch sends wait it out.
func (p *Pacer) Wait(ctx context.Context, tenantID uuid.UUID, phone string, channel enums.Channel) (Plan, error) {
	var plan Plan
	for {
		allowed, retryAfter, err := p.limiter.Allow(ctx, tenantID.String())
		if err != nil {
			p.logg.Error(ctx, "outbound.rate_limiter_unavailable", err)
			break
		}
		if allowed {
			break
		}
		p.metrics.IncRateLimited(channel.String())
		if channel == enums.ChannelLive {
			return plan, pkgerrors.New(pkgerrors.CodeRateLimit, "tenant send rate exceeded").
				WithDetails(map[string]any{"retry_after_seconds": int(retryAfter.Round(time.Second).Seconds())})
		}
		wait := retryAfter
		if wait <= 0 {
			wait = p.cfg.BatchCooldown
		}
		if err := p.sleeper.Sleep(ctx, wait); err != nil {
			return plan, err
		}
		plan.RateLimitWait += wait
	}

	if p.throttle.Touch(phone) {
		plan.Throttled = true
		plan.ThrottleDelay = uniform(p.rnd, p.cfg.PhoneThrottle.Min, p.cfg.PhoneThrottle.Max)
	}

	tier := p.cfg.BatchDelay
	if channel == enums.ChannelLive {
		tier = p.cfg.LiveDelay
	}
	plan.BaseDelay = uniform(p.rnd, tier.Min, tier.Max)

	delay := plan.ThrottleDelay + plan.BaseDelay
	p.metrics.ObserveDelay(channel.String(), plan.Total())
	if err := p.sleeper.Sleep(ctx, delay); err != nil {
		return plan, err
	}
	return plan, nil
}
