package app

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/clearmind-health/identity/pkg/jwtx"
	"github.com/joho/godotenv"
)

type Config struct {
	Issuer string // Required: issuer claim for locally-signed access tokens
	Secret string // Required: HS256 signing secret

	AccessTokenTTL  time.Duration // Access token lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Refresh token lifetime (default: 12h)
	RememberMeTTL   time.Duration // Refresh lifetime with rememberMe (default: 30 days)

	PrimaryProvider string // "userpool" or "local" (default: local)

	// Hosted user-pool provider. Leaving PoolEndpoint empty disables it and
	// the service runs on the local provider alone.
	PoolEndpoint string
	PoolID       string
	PoolClientID string

	PasswordMinLength int // Minimum password length (default: 8)

	DatabaseFile string // Path to SQLite database file (default: ./identity.db)
	PepperFile   string // Path to password pepper file (default: ./pepper)

	CORSOrigins []string // Allowed CORS origins (default: *)

	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)
	Port      int    // HTTP server port (default: 8080)

	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	AuditRetention       time.Duration // Audit-trail retention (default: 6 years, HIPAA floor)
}

func LoadConfig() Config {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	cfg := Config{
		Issuer: getEnvOrDefault("IDENTITY_ISSUER", "clearmind-identity"),
		Secret: os.Getenv("IDENTITY_SECRET"),

		AccessTokenTTL:  getEnvDurationOrDefault("ACCESS_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTokenTTL: getEnvDurationOrDefault("REFRESH_TOKEN_TTL", jwtx.DefaultRefreshTokenTTL),
		RememberMeTTL:   getEnvDurationOrDefault("REMEMBER_ME_TTL", 30*24*time.Hour),

		PrimaryProvider: getEnvOrDefault("PRIMARY_PROVIDER", "local"),
		PoolEndpoint:    os.Getenv("USERPOOL_ENDPOINT"),
		PoolID:          os.Getenv("USERPOOL_ID"),
		PoolClientID:    os.Getenv("USERPOOL_CLIENT_ID"),

		PasswordMinLength: getEnvIntOrDefault("PASSWORD_MIN_LENGTH", 8),

		DatabaseFile: getEnvOrDefault("IDENTITY_DATABASE_FILE", "identity.db"),
		PepperFile:   getEnvOrDefault("IDENTITY_PEPPER_FILE", "pepper"),

		Env:       getEnvOrDefault("ENV", "dev"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		Port:      getEnvIntOrDefault("PORT", 8080),

		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		AuditRetention:       getEnvDurationOrDefault("AUDIT_RETENTION", 6*365*24*time.Hour),
	}

	// Empty means any origin, the development default.
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
