// Package cli holds the start-up steps shared by cmd/ccdash and
// cmd/ccdash-events.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ccdash/internal/backend"
	"ccdash/internal/config"
	"ccdash/internal/core"
	"ccdash/internal/dataset"
	"ccdash/internal/log"
	"ccdash/internal/storage"
)

// SetupLogger builds the process logger from config and installs it as
// the slog default. A nil config gives text output at info level.
func SetupLogger(cfg *config.Config) *log.Logger {
	lc := log.DefaultConfig()
	if cfg != nil {
		lc.Level = cfg.SlogLevel()
		lc.JSON = cfg.LogFormat == "json"
	}
	logger := log.New(lc)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and exits on validation
// failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// LoadDataset opens the configured source and parses it. The source is
// released before returning.
func LoadDataset(ctx context.Context, logger *log.Logger, cfg *config.Config) (*core.Dataset, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Logger).Open(ctx, bc)
	if err != nil {
		return nil, err
	}
	if res.Cleanup != nil {
		defer res.Cleanup()
	}

	start := time.Now()
	ds, report, err := dataset.Load(ctx, res.Source)
	if err != nil {
		return nil, fmt.Errorf("load dataset from %s: %w", res.Source.Describe(), err)
	}

	l := logger.WithComponent(log.ComponentDataset)
	l.Info("Dataset loaded",
		log.FieldSource, res.Source.Describe(),
		log.FieldRows, report.Rows,
		"timestamp_column", report.TimestampColumn,
		log.FieldDuration, time.Since(start).Milliseconds())
	if report.InvalidTimestamps > 0 || report.InvalidNumbers > 0 || report.NegativeValues > 0 {
		l.Warn("Dataset contains values that were coerced to missing",
			"invalid_timestamps", report.InvalidTimestamps,
			"invalid_numbers", report.InvalidNumbers,
			"negative_values", report.NegativeValues)
	}
	return ds, nil
}

// InitSQLite opens the SQLite repository, or returns nil when path is
// empty.
func InitSQLite(logger *log.Logger, path string) (*storage.SQLiteRepository, error) {
	if path == "" {
		return nil, nil
	}
	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository at %s: %w", path, err)
	}
	logger.WithComponent(log.ComponentStorage).Info("SQLite repository ready", "path", path)
	return repo, nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM.
// cleanup runs after the signal with a context bounded by timeout; the
// returned channel closes once it has finished.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		defer close(done)
		<-ctx.Done()
		stop()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
			return
		}
		logger.Info("Shutdown complete")
	}()

	return ctx, done
}

// Fatal logs err and exits.
func Fatal(logger *log.Logger, msg string, err error) {
	logger.Log(context.Background(), slog.LevelError, msg, log.FieldError, err)
	os.Exit(1)
}
