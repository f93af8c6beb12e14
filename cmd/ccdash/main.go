package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ccdash/internal/amqp"
	"ccdash/internal/boundaries"
	"ccdash/internal/cache"
	"ccdash/internal/cli"
	apphttp "ccdash/internal/http"
	"ccdash/internal/log"
	"ccdash/internal/metrics"
	"ccdash/internal/services"
)

const cacheSweepInterval = 5 * time.Minute

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(nil))
	logger := cli.SetupLogger(cfg)
	logger.Info("Starting ccdash", log.FieldOperation, log.OpStartup, "port", cfg.Port, "source", cfg.DataBackend)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 2*time.Minute)
	ds, err := cli.LoadDataset(startCtx, logger, cfg)
	cancelStart()
	if err != nil {
		cli.Fatal(logger, "Failed to load dataset", err)
	}

	repo, err := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize SQLite", err)
	}

	collector := metrics.NewCollector()

	fetcherOpts := []boundaries.Option{
		boundaries.WithMetrics(collector),
		boundaries.WithHTTPClient(boundaries.NewHTTPClient()),
		boundaries.WithLogger(logger),
	}
	if repo != nil {
		fetcherOpts = append(fetcherOpts, boundaries.WithStore(repo))
	}
	fetcher := boundaries.New(cfg.BoundariesURL, cfg.BoundaryFetchTimeout, fetcherOpts...)

	svcOpts := []services.Option{services.WithMetrics(collector), services.WithLogger(logger)}
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WithComponent(log.ComponentAMQP).Warn("AMQP unavailable, snapshot events disabled", log.FieldError, err)
		} else {
			svcOpts = append(svcOpts, services.WithPublisher(events))
			logger.WithComponent(log.ComponentAMQP).Info("Publishing snapshot events", "exchange", cfg.AMQPExchange)
		}
	}

	dashboard := services.NewDashboardService(ds, fetcher,
		services.DashboardConfig{CacheSize: cfg.CacheSize, CacheTTL: cfg.CacheTTL},
		svcOpts...)

	caches := cache.NewManager(logger.With(log.FieldComponent, log.ComponentCache).Logger)
	dashboard.RegisterCaches(caches)
	caches.StartCleanup(cacheSweepInterval)

	srv := apphttp.NewServer(":"+cfg.Port, dashboard,
		apphttp.WithMetrics(collector),
		apphttp.WithLogger(logger),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute))

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	_, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if events != nil {
			if err := events.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		if repo != nil {
			if err := repo.Close(); err != nil {
				logger.Warn("SQLite close error", log.FieldError, err)
			}
		}
	})

	logger.Info("Listening", "addr", srv.Addr, log.FieldRows, ds.Len())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cli.Fatal(logger, "Server error", err)
	}

	<-done
	logger.Info("Server stopped gracefully")
}
