package main

import (
	"context"
	"os"
	"time"

	"fintrack/internal/cli"
	applog "fintrack/internal/log"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)

	logger.Info("Starting fintrack-worker", "reconcile_interval", cfg.ReconcileInterval)

	result := cli.InitBackend(context.Background(), logger, cfg)
	b := result.Backend

	var events worker.EventSource
	if b.Events != nil {
		events = b.Events
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	err := worker.NewLedgerWorker(b.Reconciler, events).Run(ctx)
	if err != nil {
		logger.Error("Worker failed", "error", err)
	} else {
		cli.WaitForShutdown(ctx, done)
	}

	if cerr := result.Cleanup(); cerr != nil {
		logger.Error("Backend cleanup error", "error", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
