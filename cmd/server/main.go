package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/ignite/outreach/internal/api"
	"github.com/ignite/outreach/internal/app"
	"github.com/ignite/outreach/internal/config"
	"github.com/ignite/outreach/internal/pkg/logger"
)

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

	// Typed nils must not leak into the handler interfaces; a wrapped nil
	// pointer would dodge the handlers' own nil checks.
	var monitor api.ReplyChecker
	var triage api.ReplyTriager
	if a.Monitor != nil {
		monitor = a.Monitor
	}
	if a.Triage != nil {
		triage = a.Triage
	}

	handlers := api.NewHandlers(
		a.Leads, a.Messages, a.Replies,
		a.Qualifier, a.Composer, a.Discovery,
		a.Dispatcher, monitor, triage,
		api.NewHealthChecker(a.DB, a.Redis),
	)
	server := api.NewServer(handlers, cfg.Dispatch.Secret)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", addr)
		errCh <- server.ListenAndServe(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}
	logger.Info("server stopped")
}
