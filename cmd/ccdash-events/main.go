package main

import (
	"context"
	"errors"
	"time"

	"ccdash/internal/amqp"
	"ccdash/internal/cli"
	"ccdash/internal/log"
	"ccdash/internal/services"
	"ccdash/internal/worker"
)

const (
	reportInterval = 15 * time.Minute
	reportTopN     = 5
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(nil))
	logger := cli.SetupLogger(cfg)
	logger.Info("Starting ccdash-events", log.FieldOperation, log.OpStartup)

	if cfg.SQLiteDBPath == "" {
		cli.Fatal(logger, "SQLite is required to record events", errors.New("SQLITE_DB_PATH is not set"))
	}
	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "AMQP is required to consume events", errors.New("AMQP_URL is not set"))
	}

	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize SQLite", err)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		_ = repo.Close()
		cli.Fatal(logger, "Failed to connect to AMQP", err)
	}

	recorder := services.NewEventRecorder(repo, logger)
	events := worker.NewEventsWorker(recorder.Handle, repo, logger, reportTopN)

	consumed := make(chan struct{})
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		select {
		case <-consumed:
		case <-ctx.Done():
		}
		if err := events.Report(ctx); err != nil {
			logger.Warn("Final report failed", log.FieldError, err)
		}
		if err := client.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
		if err := repo.Close(); err != nil {
			logger.Warn("SQLite close error", log.FieldError, err)
		}
	})

	go events.RunReports(ctx, reportInterval)

	go func() {
		defer close(consumed)
		logger.Info("Consuming snapshot events", log.FieldOperation, log.OpConsume, "queue", cfg.AMQPQueue)
		if err := client.ConsumeSnapshots(ctx, events.HandleSnapshot); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Consumer stopped", log.FieldError, err)
		}
	}()

	select {
	case <-done:
	case <-consumed:
		if ctx.Err() == nil {
			_ = client.Close()
			_ = repo.Close()
			cli.Fatal(logger, "Event consumption ended unexpectedly", errors.New("consumer stopped"))
		}
		<-done
	}
	processed, failed := events.Counts()
	logger.Info("Events worker stopped", "processed", processed, "failed", failed)
}
