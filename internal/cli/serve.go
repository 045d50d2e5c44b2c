package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rent-reconciliation-backend/internal/api"
	"rent-reconciliation-backend/internal/application/service"
	"rent-reconciliation-backend/internal/domain/recon"
	"rent-reconciliation-backend/internal/export"
	"rent-reconciliation-backend/internal/infrastructure/config"
	"rent-reconciliation-backend/internal/infrastructure/logging"
	"rent-reconciliation-backend/internal/infrastructure/storage"
	"rent-reconciliation-backend/internal/summary"
)

// RunServe runs the API server until SIGINT or SIGTERM.
func RunServe(cfg *config.Config, flags *ServeFlags, version string) error {
	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithScope(loggingCfg, "api")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}
	engine, err := recon.New(engineCfg)
	if err != nil {
		return err
	}

	generator, err := summary.NewGenerator(context.Background(), cfg.Gemini, logger)
	if err != nil {
		return err
	}
	notifier := export.NewNotifier(cfg.Slack.WebhookURL, logger)
	reconSvc := service.NewReconciliationService(engine, store, generator, notifier, logger)

	apiCfg := api.DefaultConfig()
	if flags.Port != 0 {
		apiCfg.Port = flags.Port
	} else if cfg.Server.Port != 0 {
		apiCfg.Port = cfg.Server.Port
	}

	server := api.NewServer(apiCfg, store, reconSvc, version, logger)

	// Handle graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
