package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/odyssey-erp/odyssey-console/internal/app"
	"github.com/odyssey-erp/odyssey-console/internal/observability"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, os.Stdout)
	metrics := observability.NewMetrics()

	services, err := app.Wire(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Error("wire services", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := services.Close(); err != nil {
			logger.Warn("close services", slog.Any("error", err))
		}
	}()

	consoleHandler, err := services.NewConsole()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	// Restore a persisted session in the background; guarded pages show the
	// loading page until it settles.
	go func() {
		status, err := services.Bootstrap.Wait(ctx)
		if err != nil {
			return
		}
		logger.Info("session bootstrap finished", slog.String("status", status.String()))
		if err := services.Resolver.Mount(ctx); err != nil {
			logger.Warn("mount permissions", slog.Any("error", err))
		}
	}()
	services.Bootstrap.Start(ctx)
	go services.RunCachePruner(ctx)

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		CSRF:    services.CSRF,
		Console: consoleHandler,
		Metrics: metrics,
	})

	server := &http.Server{
		Addr:         cfg.ConsoleAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting console", slog.String("addr", cfg.ConsoleAddr), slog.String("api", cfg.APIBaseURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
