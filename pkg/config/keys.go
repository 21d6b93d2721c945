package config

// EnvPrefix is passed to envconfig; every field carries an explicit key so it is informational.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DedupBackendMemory = "memory"
	DedupBackendRedis  = "redis"
)

const (
	EnvAppEnv            = "STOREFRONT_APP_ENV"
	EnvPort              = "STOREFRONT_APP_PORT"
	EnvDBDSN             = "STOREFRONT_DB_DSN"
	EnvDBHost            = "STOREFRONT_DB_HOST"
	EnvDBUser            = "STOREFRONT_DB_USER"
	EnvDBName            = "STOREFRONT_DB_NAME"
	EnvUseSQLite         = "STOREFRONT_USE_SQLITE"
	EnvRedisURL          = "STOREFRONT_REDIS_URL"
	EnvRedisAddr         = "STOREFRONT_REDIS_ADDR"
	EnvStripeAPIKey      = "STOREFRONT_STRIPE_API_KEY"
	EnvStripeSecret      = "STOREFRONT_STRIPE_WEBHOOK_SECRET"
	EnvDedupBackend      = "STOREFRONT_DEDUP_BACKEND"
	EnvDedupCapacity     = "STOREFRONT_DEDUP_CAPACITY"
	EnvPickupTimezone    = "STOREFRONT_PICKUP_TIMEZONE"
	EnvReservationURL    = "STOREFRONT_RESERVATION_RELEASE_URL"
	EnvInventoryAttempts = "STOREFRONT_PIPELINE_INVENTORY_MAX_ATTEMPTS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
