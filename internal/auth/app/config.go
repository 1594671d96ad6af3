package app

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// ErrBadSecrets reports missing or shared signing secrets. The access
// and refresh token families must be signed with different keys.
var ErrBadSecrets = errors.New("AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET must both be set and must differ")

type Config struct {
	Issuer        string // Optional: issuer claim for tokens (default: opsdesk-auth)
	AccessSecret  string // Required: HS256 key for access tokens
	RefreshSecret string // Required: HS256 key for refresh tokens, distinct from AccessSecret

	AccessTTL  time.Duration // Optional: access token lifetime (default: 1h)
	RefreshTTL time.Duration // Optional: refresh token lifetime (default: 168h)

	DatabaseFile         string        // Optional: path to SQLite database file (default: ./auth.db)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired session sweep interval (default: 1h)
	AuditQueueSize       int           // Bounded audit queue capacity (default: 256)
}

// SecureCookies reports whether credential cookies carry the Secure
// flag. Only dev runs over plain http.
func (c Config) SecureCookies() bool {
	return c.Env != "dev"
}

func LoadConfig() Config {
	return Config{
		Issuer:               getEnvOrDefault("AUTH_ISSUER", "opsdesk-auth"),
		AccessSecret:         os.Getenv("AUTH_ACCESS_SECRET"),
		RefreshSecret:        os.Getenv("AUTH_REFRESH_SECRET"),
		AccessTTL:            getEnvDurationOrDefault("AUTH_ACCESS_TTL", 1*time.Hour),
		RefreshTTL:           getEnvDurationOrDefault("AUTH_REFRESH_TTL", 7*24*time.Hour),
		DatabaseFile:         getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		AuditQueueSize:       getEnvIntOrDefault("AUDIT_QUEUE_SIZE", 256),
	}
}

// Validate rejects configurations that cannot produce a working service.
func (c Config) Validate() error {
	if c.AccessSecret == "" || c.RefreshSecret == "" || c.AccessSecret == c.RefreshSecret {
		return ErrBadSecrets
	}
	return nil
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

	// Duration form first ("1h", "30m", "90s").
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are treated as minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
