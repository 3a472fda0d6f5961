// Package cli provides common CLI initialization utilities shared by
// cmd/fintrack and cmd/fintrack-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/backup"
	"fintrack/internal/backup/google"
	"fintrack/internal/backup/memory"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

// SetupLogger initializes structured logging with default settings.
// Returns the configured logger and sets it as the default logger.
func SetupLogger() *applog.Logger {
	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// InitBackupTarget builds the configured backup target.
// Returns the target or exits the process on failure.
func InitBackupTarget(logger *applog.Logger, cfg *config.Config) backup.Target {
	switch cfg.BackupTarget {
	case config.BackupTargetSheets:
		target, err := google.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets backup target", "error", err)
			os.Exit(1)
		}
		return target
	default:
		logger.Warn("Using in-memory backup target; mirrored rows do not survive restarts")
		return memory.New()
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// On SIGINT/SIGTERM the cleanup callback runs with a timeout-bound
// context, then the returned context is cancelled and the done channel
// closed. Cleanup is where the caller shuts its server down.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		cancel()
		logger.Info("Shutdown complete")
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup
// has finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
