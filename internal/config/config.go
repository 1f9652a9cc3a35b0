package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port       string
	AppEnv     string
	AuthHeader string

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	DataBackend  string
	SQLiteDBPath string

	// Exchange rates
	RateAPIURL   string
	RateAPIKey   string
	RateTimeout  time.Duration
	RateCacheTTL time.Duration

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	ReconcileInterval time.Duration

	// Rate limiting
	RateLimitRPS   float64
	RateLimitBurst int

	// Statistics cache
	StatsCacheSize int
	StatsCacheTTL  time.Duration
}

func Load() *Config {
	return &Config{
		Port:       getEnv("PORT", "8080"),
		AppEnv:     getEnv("APP_ENV", "production"),
		AuthHeader: getEnv("AUTH_HEADER", "X-User-ID"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),

		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),

		RateAPIURL:   getEnv("RATE_API_URL", "https://open.er-api.com/v6"),
		RateAPIKey:   getEnv("RATE_API_KEY", ""),
		RateTimeout:  getEnvDuration("RATE_TIMEOUT", 5*time.Second),
		RateCacheTTL: getEnvDuration("RATE_CACHE_TTL", 5*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE_NAME", "fintrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE_NAME", "ledger_events"),

		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 10*time.Minute),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 20),

		StatsCacheSize: getEnvInt("STATS_CACHE_SIZE", 256),
		StatsCacheTTL:  getEnvDuration("STATS_CACHE_TTL", 5*time.Minute),
	}
}

// IsDevelopment reports whether error details may be shown to clients.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AuthHeader == "" {
		errors = append(errors, "auth header cannot be empty")
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "json", "text":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be json or text", c.LogFormat))
	}

	if parsedURL, err := url.Parse(c.RateAPIURL); err != nil || c.RateAPIURL == "" {
		errors = append(errors, fmt.Sprintf("invalid rate API URL '%s'", c.RateAPIURL))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid rate API URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}
	if c.RateTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid rate timeout %v: must be positive", c.RateTimeout))
	}
	if c.RateCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate cache TTL %v: must not be negative", c.RateCacheTTL))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ReconcileInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must be at least 1 second", c.ReconcileInterval))
	} else if c.ReconcileInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must be at most 24 hours", c.ReconcileInterval))
	}

	if c.RateLimitRPS < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %v: must not be negative", c.RateLimitRPS))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit burst %d: must be at least 1", c.RateLimitBurst))
	}

	if c.StatsCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid stats cache size %d: must not be negative", c.StatsCacheSize))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
