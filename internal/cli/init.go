// Package cli provides the start-up steps shared by cmd/fintrack,
// cmd/fintrack-worker and cmd/fintrackctl.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	applog "fintrack/internal/log"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the application logger from LOG_LEVEL and LOG_FORMAT
// and installs it as the slog default. Without LOG_FORMAT, a terminal on
// stdout gets text and anything else gets JSON.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	format := cfg.LogFormat
	if format == "" {
		format = logFormatFor(os.Stdout.Fd())
	}
	lc := applog.ConfigFor(cfg.LogLevel, format, cfg.IsDevelopment())
	lc.Component = component
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

func logFormatFor(fd uintptr) string {
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return "text"
	}
	return "json"
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		// the logger depends on cfg, so report with a bootstrap one
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend assembles store and services or exits the process on failure.
func InitBackend(ctx context.Context, logger *applog.Logger, cfg *config.Config) *backend.BackendResult {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bc)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "type", cfg.DataBackend)
		os.Exit(1)
	}
	return result
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
