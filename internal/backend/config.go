package backend

import (
	"fmt"

	"fintrack/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,

		RateAPIURL:   appConfig.RateAPIURL,
		RateAPIKey:   appConfig.RateAPIKey,
		RateTimeout:  appConfig.RateTimeout,
		RateCacheTTL: appConfig.RateCacheTTL,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		StatsCacheSize: appConfig.StatsCacheSize,
		StatsCacheTTL:  appConfig.StatsCacheTTL,

		ReconcileInterval: appConfig.ReconcileInterval,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}
	if c.RateProvider == nil && c.RateAPIURL == "" {
		return fmt.Errorf("rate API URL is required when no rate provider is injected")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{SQLiteBackend, MemoryBackend}
}
