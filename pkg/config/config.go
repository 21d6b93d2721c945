package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Stripe       StripeConfig
	Dedup        DedupConfig
	Pipeline     PipelineConfig
	Reservations ReservationsConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.App.IsProd() && cfg.FeatureFlags.UseSQLite {
		return nil, fmt.Errorf("%s is not allowed when %s=%s", EnvUseSQLite, EnvAppEnv, AppEnvProd)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Dedup.validate(cfg.Redis); err != nil {
		return nil, err
	}
	if _, err := cfg.Pipeline.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN        string `envconfig:"STOREFRONT_DB_DSN"`
	SQLitePath string `envconfig:"STOREFRONT_SQLITE_PATH" default:"storefront.db"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether enough settings exist to dial Redis.
func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type StripeConfig struct {
	APIKey string `envconfig:"STOREFRONT_STRIPE_API_KEY" required:"true"`
	Secret string `envconfig:"STOREFRONT_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env    string `envconfig:"STOREFRONT_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type DedupConfig struct {
	Backend  string        `envconfig:"STOREFRONT_DEDUP_BACKEND" default:"memory"`
	Capacity int           `envconfig:"STOREFRONT_DEDUP_CAPACITY" default:"1000"`
	TTL      time.Duration `envconfig:"STOREFRONT_DEDUP_TTL" default:"72h"`
	Scope    string        `envconfig:"STOREFRONT_DEDUP_SCOPE" default:"stripe-webhook"`
}

// UsesRedis reports whether the shared Redis deduplicator is selected.
func (d DedupConfig) UsesRedis() bool {
	return strings.EqualFold(strings.TrimSpace(d.Backend), DedupBackendRedis)
}

func (d DedupConfig) validate(redisCfg RedisConfig) error {
	switch strings.ToLower(strings.TrimSpace(d.Backend)) {
	case DedupBackendMemory:
		if d.Capacity <= 0 {
			return fmt.Errorf("%s must be positive", EnvDedupCapacity)
		}
		return nil
	case DedupBackendRedis:
		if !redisCfg.Configured() {
			return fmt.Errorf("%s=redis requires %s or %s", EnvDedupBackend, EnvRedisURL, EnvRedisAddr)
		}
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvDedupBackend, DedupBackendMemory, DedupBackendRedis)
	}
}

type PipelineConfig struct {
	ProviderTimeout     time.Duration `envconfig:"STOREFRONT_PIPELINE_PROVIDER_TIMEOUT" default:"10s"`
	StoreTimeout        time.Duration `envconfig:"STOREFRONT_PIPELINE_STORE_TIMEOUT" default:"5s"`
	InventoryMaxAttempt int           `envconfig:"STOREFRONT_PIPELINE_INVENTORY_MAX_ATTEMPTS" default:"3"`
	PickupTimezone      string        `envconfig:"STOREFRONT_PICKUP_TIMEZONE" default:"Local"`
}

// Location resolves the pickup timezone used for cutoff evaluation.
func (p PipelineConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(p.PickupTimezone)
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", EnvPickupTimezone, err)
	}
	return loc, nil
}

type ReservationsConfig struct {
	ReleaseURL string        `envconfig:"STOREFRONT_RESERVATION_RELEASE_URL"`
	Timeout    time.Duration `envconfig:"STOREFRONT_RESERVATION_RELEASE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
