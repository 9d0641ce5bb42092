package config

// EnvPrefix is passed to envconfig; individual keys carry the full name so
// the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv     = "MODORA_APP_ENV"
	EnvPort       = "MODORA_APP_PORT"
	EnvDBDSN      = "MODORA_DB_DSN"
	EnvDBHost     = "MODORA_DB_HOST"
	EnvDBUser     = "MODORA_DB_USER"
	EnvDBName     = "MODORA_DB_NAME"
	EnvRedisURL   = "MODORA_REDIS_URL"
	EnvJWTSecret  = "MODORA_JWT_SECRET"
	EnvJWTIssuer  = "MODORA_JWT_ISSUER"
	EnvJWTExpMins = "MODORA_JWT_EXPIRATION_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
