package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/campaign-orchestrator/internal/telemetry"
	"github.com/tjfontaine/campaign-orchestrator/pkg/orchestrator"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	configPath := os.Getenv("ORCH_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Level follows log.level and its hot reloads
	levels := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levels,
	}))
	slog.SetDefault(logger)

	orch, err := orchestrator.New(
		orchestrator.WithFileConfig(configPath),
		orchestrator.WithLogger(logger),
		orchestrator.WithLevelVar(levels),
	)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize orchestrator: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer(ctx, orch.Config().Telemetry, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	if err := orch.Start(ctx); err != nil {
		log.Fatalf("Failed to start orchestrator: %v", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, stopping orchestrator...")

	// open streams get the full request timeout window to finish
	grace := orch.Config().Server.RequestTimeout
	if grace <= 0 {
		grace = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), grace)
	defer shutdownCancel()

	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
