package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	FeatureFlags  FeatureFlagsConfig
	WhatsApp      WhatsAppConfig
	Ingest        IngestConfig
	Pacer         PacerConfig
	Confirmations ConfirmationsConfig
	Broadcast     BroadcastConfig
	Cron          CronConfig
	Dispatch      DispatchConfig
	CORS          CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if _, err := cfg.Ingest.Location(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvIngestTimezone, err)
	}
	if cfg.Pacer.TenantRateLimit <= 0 {
		return nil, fmt.Errorf("%s must be positive", EnvPacerTenantRateLimit)
	}
	if cfg.Pacer.TenantRateWindow <= 0 {
		return nil, fmt.Errorf("%s must be positive", EnvPacerTenantRateWindow)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"WACART_APP_ENV" required:"true"`
	Port         string `envconfig:"WACART_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"WACART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WACART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"WACART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"WACART_DB_DSN"`
	Driver string `envconfig:"WACART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WACART_DB_HOST"`
	LegacyPort     int    `envconfig:"WACART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WACART_DB_USER"`
	LegacyPassword string `envconfig:"WACART_DB_PASSWORD"`
	LegacyName     string `envconfig:"WACART_DB_NAME"`
	LegacySSLMode  string `envconfig:"WACART_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"WACART_SQLITE_PATH" default:"wacart.db"`

	MaxOpenConns    int           `envconfig:"WACART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WACART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WACART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WACART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional: with no URL or address the process falls back to
// in-memory caches and rate counters.
type RedisConfig struct {
	URL          string        `envconfig:"WACART_REDIS_URL"`
	Address      string        `envconfig:"WACART_REDIS_ADDR"`
	Password     string        `envconfig:"WACART_REDIS_PASSWORD"`
	DB           int           `envconfig:"WACART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WACART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WACART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WACART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WACART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WACART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"WACART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"WACART_AUTO_MIGRATE" default:"false"`
}

type WhatsAppConfig struct {
	BaseURL      string        `envconfig:"WACART_WHATSAPP_BASE_URL" default:"https://api.z-api.io"`
	InstanceID   string        `envconfig:"WACART_WHATSAPP_INSTANCE_ID"`
	Token        string        `envconfig:"WACART_WHATSAPP_TOKEN"`
	ClientToken  string        `envconfig:"WACART_WHATSAPP_CLIENT_TOKEN"`
	WebhookToken string        `envconfig:"WACART_WHATSAPP_WEBHOOK_TOKEN"`
	Timeout      time.Duration `envconfig:"WACART_WHATSAPP_TIMEOUT" default:"15s"`
}

type IngestConfig struct {
	EventDedupWindow    time.Duration `envconfig:"WACART_INGEST_EVENT_DEDUP_WINDOW" default:"60s"`
	ContentDedupWindow  time.Duration `envconfig:"WACART_INGEST_CONTENT_DEDUP_WINDOW" default:"10s"`
	ProductDedupWindow  time.Duration `envconfig:"WACART_INGEST_PRODUCT_DEDUP_WINDOW" default:"60s"`
	ItemDuplicateWindow time.Duration `envconfig:"WACART_INGEST_ITEM_DUPLICATE_WINDOW" default:"30s"`
	Timezone            string        `envconfig:"WACART_INGEST_TIMEZONE" default:"America/Sao_Paulo"`
}

// Location resolves the default timezone used to compute event dates.
func (i IngestConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(i.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

type PacerConfig struct {
	TenantRateLimit      int           `envconfig:"WACART_PACER_TENANT_RATE_LIMIT" default:"15"`
	TenantRateWindow     time.Duration `envconfig:"WACART_PACER_TENANT_RATE_WINDOW" default:"1m"`
	BatchCooldown        time.Duration `envconfig:"WACART_PACER_BATCH_COOLDOWN" default:"10s"`
	PhoneThrottleWindow  time.Duration `envconfig:"WACART_PACER_PHONE_THROTTLE_WINDOW" default:"2m"`
	PhoneThrottleMin     time.Duration `envconfig:"WACART_PACER_PHONE_THROTTLE_MIN" default:"15s"`
	PhoneThrottleMax     time.Duration `envconfig:"WACART_PACER_PHONE_THROTTLE_MAX" default:"45s"`
	BatchDelayMin        time.Duration `envconfig:"WACART_PACER_BATCH_DELAY_MIN" default:"3s"`
	BatchDelayMax        time.Duration `envconfig:"WACART_PACER_BATCH_DELAY_MAX" default:"8s"`
	LiveDelayMin         time.Duration `envconfig:"WACART_PACER_LIVE_DELAY_MIN" default:"8s"`
	LiveDelayMax         time.Duration `envconfig:"WACART_PACER_LIVE_DELAY_MAX" default:"20s"`
	GreetingProbability  float64       `envconfig:"WACART_PACER_GREETING_PROBABILITY" default:"0.5"`
	EmojiSwapProbability float64       `envconfig:"WACART_PACER_EMOJI_SWAP_PROBABILITY" default:"0.3"`
	ZeroWidthProbability float64       `envconfig:"WACART_PACER_ZERO_WIDTH_PROBABILITY" default:"0.5"`
	Seed                 int64         `envconfig:"WACART_PACER_SEED" default:"0"`
}

type ConfirmationsConfig struct {
	SendDelay   time.Duration `envconfig:"WACART_CONFIRMATIONS_SEND_DELAY" default:"2m"`
	TTL         time.Duration `envconfig:"WACART_CONFIRMATIONS_TTL" default:"30m"`
	BatchSize   int           `envconfig:"WACART_CONFIRMATIONS_BATCH_SIZE" default:"50"`
	CheckoutURL string        `envconfig:"WACART_CONFIRMATIONS_CHECKOUT_URL" default:"https://loja.example.com/checkout"`
}

type BroadcastConfig struct {
	PollInterval        time.Duration `envconfig:"WACART_BROADCAST_POLL_INTERVAL" default:"5s"`
	StatusCheckInterval time.Duration `envconfig:"WACART_BROADCAST_STATUS_CHECK_INTERVAL" default:"3s"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"WACART_CRON_INTERVAL" default:"1m"`
	OutboundRetention time.Duration `envconfig:"WACART_CRON_OUTBOUND_RETENTION" default:"720h"`
}

// CORSConfig lists the dashboard origins allowed on tenant routes
// (comma separated).
type CORSConfig struct {
	AllowedOrigins []string `envconfig:"WACART_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type DispatchConfig struct {
	MaxInFlight int `envconfig:"WACART_DISPATCH_MAX_IN_FLIGHT" default:"32"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite || db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
