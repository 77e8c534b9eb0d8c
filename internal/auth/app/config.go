package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	JWTSecret string   // Required: HS256 signing secret (min 32 bytes)
	Issuer    string   // Issuer claim for session tokens
	Audience  []string // Audience claim for session tokens

	TwoFactorRequired bool          // Require the emailed code after every exchange (default: true)
	SessionTokenTTL   time.Duration // Bearer token lifetime, capped by session expiry (default: 168h)

	IdentityBaseURL string // Required: identity provider base URL
	IdentityAPIKey  string // Required: identity provider API key

	SMTPHost  string // SMTP relay host
	SMTPPort  int    // SMTP relay port (default: 587)
	SMTPUser  string // SMTP username
	SMTPPass  string // SMTP password
	FromEmail string // From address for auth emails

	DatabaseFile         string        // Path to SQLite database file (default: ./auth.db)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
	AuditBufferSize      int           // Async audit queue size (default: 256)
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables win over it.
func LoadConfig() Config {
	_ = godotenv.Load()

	return Config{
		JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		Issuer:    getEnvOrDefault("AUTH_ISSUER", "loandocs-auth"),
		Audience:  []string{getEnvOrDefault("AUTH_AUDIENCE", "loandocs-portal")},

		TwoFactorRequired: getEnvBoolOrDefault("AUTH_TWO_FACTOR_REQUIRED", true),
		SessionTokenTTL:   getEnvDurationOrDefault("AUTH_SESSION_TOKEN_TTL", 7*24*time.Hour),

		IdentityBaseURL: os.Getenv("IDENTITY_BASE_URL"),
		IdentityAPIKey:  os.Getenv("IDENTITY_API_KEY"),

		SMTPHost:  os.Getenv("SMTP_HOST"),
		SMTPPort:  getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUser:  os.Getenv("SMTP_USER"),
		SMTPPass:  os.Getenv("SMTP_PASS"),
		FromEmail: os.Getenv("SMTP_FROM"),

		DatabaseFile:         getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		AuditBufferSize:      getEnvIntOrDefault("AUDIT_BUFFER_SIZE", 256),
	}
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

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if boolValue, err := strconv.ParseBool(value); err == nil {
		return boolValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
