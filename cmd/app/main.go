package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hoangteo0103/ticket-reservations/pkg/app"
	"github.com/hoangteo0103/ticket-reservations/pkg/config"
	"github.com/hoangteo0103/ticket-reservations/pkg/scheduler"
	"github.com/hoangteo0103/ticket-reservations/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		logger.Error("Failed to setup OpenTelemetry tracing", "error", err)
	}

	infra, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		log.Fatalf("failed to assemble engine: %v", err)
	}

	// The sweep releases holds whose timers died with a previous process.
	sweeper := scheduler.NewSweeper(infra.Manager.SweepExpired, cfg.SweepInterval, logger)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(ctx)
	}()

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           infra.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down server", "error", err)
	}
	<-sweepDone
	if err := infra.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down engine", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Failed to flush traces", "error", err)
	}
}
