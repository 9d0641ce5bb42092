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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	Shipping     ShippingConfig
	Returns      ReturnsConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MODORA_APP_ENV" required:"true"`
	Port         string `envconfig:"MODORA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MODORA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MODORA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MODORA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MODORA_DB_DSN"`
	Driver string `envconfig:"MODORA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MODORA_DB_HOST"`
	LegacyPort     int    `envconfig:"MODORA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MODORA_DB_USER"`
	LegacyPassword string `envconfig:"MODORA_DB_PASSWORD"`
	LegacyName     string `envconfig:"MODORA_DB_NAME"`
	LegacySSLMode  string `envconfig:"MODORA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MODORA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MODORA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MODORA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MODORA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MODORA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MODORA_REDIS_ADDR"`
	Password     string        `envconfig:"MODORA_REDIS_PASSWORD"`
	DB           int           `envconfig:"MODORA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MODORA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MODORA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MODORA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MODORA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MODORA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MODORA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MODORA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MODORA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey     string `envconfig:"MODORA_STRIPE_API_KEY"`
	Secret     string `envconfig:"MODORA_STRIPE_SECRET"`
	Env        string `envconfig:"MODORA_STRIPE_ENV" default:"test"`
	SuccessURL string `envconfig:"MODORA_STRIPE_SUCCESS_URL"`
	CancelURL  string `envconfig:"MODORA_STRIPE_CANCEL_URL"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type ShippingConfig struct {
	FeeCents           int `envconfig:"MODORA_SHIPPING_FEE_CENTS" default:"1000"`
	FreeThresholdCents int `envconfig:"MODORA_SHIPPING_FREE_THRESHOLD_CENTS" default:"10000"`
}

type ReturnsConfig struct {
	WindowDays           int `envconfig:"MODORA_RETURN_WINDOW_DAYS" default:"7"`
	AutoDeliverAfterDays int `envconfig:"MODORA_AUTO_DELIVER_AFTER_DAYS" default:"14"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MODORA_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
