// The worker runs the outreach pipeline on a fixed cycle: qualify new leads,
// draft for qualified ones, poll for replies, triage them, draft due
// follow-ups, then dispatch whatever a human has approved. Each stage is
// independent; one failing stage never stops the others.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/ignite/outreach/internal/app"
	"github.com/ignite/outreach/internal/config"
	"github.com/ignite/outreach/internal/dispatch"
	"github.com/ignite/outreach/internal/pkg/logger"
)

const batchLimit = 50

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	interval := 10 * time.Minute
	if v := os.Getenv("WORKER_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			interval = time.Duration(n) * time.Minute
		}
	}
	logger.Info("worker started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runCycle(ctx, a)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopped")
			return
		case <-ticker.C:
			runCycle(ctx, a)
		}
	}
}

func runCycle(ctx context.Context, a *app.App) {
	start := time.Now()

	if _, err := a.Qualifier.Run(ctx, batchLimit); err != nil {
		logger.Error("qualifier pass failed", "error", err)
	}
	if _, err := a.Composer.Run(ctx, batchLimit); err != nil {
		logger.Error("composer pass failed", "error", err)
	}

	if a.Monitor != nil {
		if _, err := a.Monitor.Check(ctx, batchLimit); err != nil {
			logger.Error("reply check failed", "error", err)
		}
	}
	if a.Triage != nil {
		if _, err := a.Triage.Run(ctx, batchLimit); err != nil {
			logger.Error("triage pass failed", "error", err)
		}
	}
	if _, err := a.Planner.Run(ctx, batchLimit); err != nil {
		logger.Error("planner pass failed", "error", err)
	}

	_, err := a.Dispatcher.Run(ctx)
	switch {
	case errors.Is(err, dispatch.ErrAlreadyRunning):
		logger.Info("dispatch skipped, another run holds the lock")
	case err != nil:
		logger.Error("dispatch pass failed", "error", err)
	}

	logger.Info("worker cycle complete", "elapsed", time.Since(start).String())
}
