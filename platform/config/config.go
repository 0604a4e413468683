// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq task queue.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// TelephonyConfig provides settings for the external call-status provider.
type TelephonyConfig interface {
	GetTelephonyBaseURL() string
	GetTelephonyAPIKey() string
	GetTelephonyTimeout() time.Duration
	IsTelephonyEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env              string
	HTTPAddr         string
	DatabaseURL      string
	JWTAccessSecret  string
	CORSAllowAll     bool
	CORSOrigins      []string
	CORSAllowCreds   bool
	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	TelephonyBaseURL string
	TelephonyAPIKey  string
	TelephonyTimeout time.Duration
	PhoneRegion      string
}

// Load reads configuration from the environment, optionally seeded
// from a local .env file in development.
func Load() (*Config, error) {
	// Missing .env is fine; real env vars win either way.
	_ = godotenv.Load()

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTAccessSecret:  os.Getenv("JWT_ACCESS_SECRET"),
		CORSAllowAll:     getEnvBool("CORS_ALLOW_ALL", false),
		CORSOrigins:      splitCSV(os.Getenv("CORS_ORIGINS")),
		CORSAllowCreds:   getEnvBool("CORS_ALLOW_CREDENTIALS", true),
		RedisURL:         os.Getenv("REDIS_URL"),
		RedisTLSInsecure: getEnvBool("REDIS_TLS_INSECURE", false),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: getEnvInt("ASYNQ_CONCURRENCY", 10),
		TelephonyBaseURL: os.Getenv("TELEPHONY_BASE_URL"),
		TelephonyAPIKey:  os.Getenv("TELEPHONY_API_KEY"),
		TelephonyTimeout: getEnvDuration("TELEPHONY_TIMEOUT", 3*time.Second),
		PhoneRegion:      getEnv("PHONE_REGION", "NL"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}

	return cfg, nil
}

// =============================================================================
// Interface Implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string { return c.HTTPAddr }

func (c *Config) GetCORSAllowAll() bool { return c.CORSAllowAll }

func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }

func (c *Config) GetCORSAllowCreds() bool { return c.CORSAllowCreds }

func (c *Config) GetRedisURL() string { return c.RedisURL }

func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }

func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }

func (c *Config) GetAsynqConcurrency() int { return c.AsynqConcurrency }

func (c *Config) GetTelephonyBaseURL() string { return c.TelephonyBaseURL }

func (c *Config) GetTelephonyAPIKey() string { return c.TelephonyAPIKey }

func (c *Config) GetTelephonyTimeout() time.Duration { return c.TelephonyTimeout }

func (c *Config) IsTelephonyEnabled() bool { return c.TelephonyBaseURL != "" }

// =============================================================================
// Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
