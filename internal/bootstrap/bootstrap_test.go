package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wacart-backend/internal/outbound"
	"github.com/angelmondragon/wacart-backend/pkg/config"
	"github.com/angelmondragon/wacart-backend/pkg/db"
	"github.com/angelmondragon/wacart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/wacart-backend/pkg/idempotency"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

func testPacerSettings() config.PacerConfig {
	return config.PacerConfig{
		TenantRateLimit:      15,
		TenantRateWindow:     time.Minute,
		BatchCooldown:        10 * time.Second,
		PhoneThrottleWindow:  2 * time.Minute,
		PhoneThrottleMin:     15 * time.Second,
		PhoneThrottleMax:     45 * time.Second,
		BatchDelayMin:        3 * time.Second,
		BatchDelayMax:        8 * time.Second,
		LiveDelayMin:         8 * time.Second,
		LiveDelayMax:         20 * time.Second,
		GreetingProbability:  0.5,
		EmojiSwapProbability: 0.3,
		ZeroWidthProbability: 0.5,
		Seed:                 7,
	}
}

func TestPacerConfigMapsTiers(t *testing.T) {
	got := PacerConfig(testPacerSettings())
	assert.Equal(t, outbound.DelayRange{Min: 3 * time.Second, Max: 8 * time.Second}, got.BatchDelay)
	assert.Equal(t, outbound.DelayRange{Min: 8 * time.Second, Max: 20 * time.Second}, got.LiveDelay)
	assert.Equal(t, outbound.DelayRange{Min: 15 * time.Second, Max: 45 * time.Second}, got.PhoneThrottle)
	assert.Equal(t, 10*time.Second, got.BatchCooldown)

	v := VariationConfig(testPacerSettings())
	assert.Equal(t, 0.3, v.EmojiSwapProbability)
}

func TestMemoryFallbacksWithoutRedis(t *testing.T) {
	infra := &Infra{
		Config: &config.Config{Pacer: testPacerSettings()},
		Logger: logger.Nop(),
	}

	cache, err := infra.IdempotencyCache()
	require.NoError(t, err)
	assert.IsType(t, &idempotency.MemoryCache{}, cache)

	limiter, err := infra.RateLimiter()
	require.NoError(t, err)
	assert.IsType(t, &outbound.MemoryRateLimiter{}, limiter)
}

func TestNewSenderRequiresProviderCredentials(t *testing.T) {
	infra := &Infra{
		Config: &config.Config{Pacer: testPacerSettings()},
		Logger: logger.Nop(),
		DB:     db.Wrap(dbtest.Open(t)),
	}
	_, err := infra.NewSender(nil)
	require.Error(t, err)

	infra.Config.WhatsApp = config.WhatsAppConfig{InstanceID: "inst", Token: "tok", Timeout: time.Second}
	sender, err := infra.NewSender(nil)
	require.NoError(t, err)
	assert.NotNil(t, sender)
}
