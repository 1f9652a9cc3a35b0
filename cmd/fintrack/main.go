package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp)

	result := cli.InitBackend(context.Background(), logger, cfg)

	srv := apphttp.NewServer(result.Backend, apphttp.Options{
		Addr:        ":" + cfg.Port,
		AuthHeader:  cfg.AuthHeader,
		Development: cfg.IsDevelopment(),
		Logger:      logger,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"env", cfg.AppEnv)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		_ = result.Cleanup()
		return
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
