package config

const EnvPrefix = "WACART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "WACART_APP_ENV"
	EnvPort     = "WACART_APP_PORT"
	EnvLogLevel = "WACART_LOG_LEVEL"

	EnvDBDSN  = "WACART_DB_DSN"
	EnvDBHost = "WACART_DB_HOST"
	EnvDBUser = "WACART_DB_USER"
	EnvDBName = "WACART_DB_NAME"

	EnvUseSQLite = "WACART_USE_SQLITE"
	EnvRedisURL  = "WACART_REDIS_URL"

	EnvWhatsAppInstanceID = "WACART_WHATSAPP_INSTANCE_ID"
	EnvWhatsAppToken      = "WACART_WHATSAPP_TOKEN"

	EnvIngestTimezone            = "WACART_INGEST_TIMEZONE"
	EnvIngestItemDuplicateWindow = "WACART_INGEST_ITEM_DUPLICATE_WINDOW"
	EnvPacerPhoneThrottleWindow  = "WACART_PACER_PHONE_THROTTLE_WINDOW"
	EnvPacerTenantRateLimit      = "WACART_PACER_TENANT_RATE_LIMIT"
	EnvPacerTenantRateWindow     = "WACART_PACER_TENANT_RATE_WINDOW"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
