// Package main is the entry point for the predictive maintenance API.
//
// It loads configuration, connects the Postgres pool, wires the prediction
// client, alert pipeline, and batch scheduler, and serves the HTTP API with
// graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/maxdesanta/ac02-be-cron-job/internal/alerting"
	"github.com/maxdesanta/ac02-be-cron-job/internal/api/handlers"
	"github.com/maxdesanta/ac02-be-cron-job/internal/condition"
	"github.com/maxdesanta/ac02-be-cron-job/internal/config"
	"github.com/maxdesanta/ac02-be-cron-job/internal/core"
	"github.com/maxdesanta/ac02-be-cron-job/internal/db"
	"github.com/maxdesanta/ac02-be-cron-job/internal/external"
	"github.com/maxdesanta/ac02-be-cron-job/internal/metrics"
	"github.com/maxdesanta/ac02-be-cron-job/internal/queue"
	"github.com/maxdesanta/ac02-be-cron-job/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("machine predictor starting",
		"environment", cfg.Environment,
		"service", cfg.Service,
		"port", cfg.Server.Port,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Database pool.
	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting database: %w", err)
	}
	defer pool.Close()

	// Repositories.
	alertRepo := db.NewAlertRepository(pool)
	machineRepo := db.NewMachineRepository(pool)
	predictionRepo := db.NewPredictionRepository(pool)

	// Optional AWS integrations. An empty queue URL or namespace leaves the
	// corresponding integration off.
	publisher, pipelineMetrics, err := newAWSIntegrations(ctx, cfg.AWS, logger)
	if err != nil {
		return fmt.Errorf("configuring AWS integrations: %w", err)
	}

	// ML prediction client.
	mlClient := external.NewMLClient(&http.Client{}, external.MLClientConfig{
		BaseURL: cfg.ML.BaseURL,
		Timeout: cfg.ML.Timeout,
		Logger:  logger,
	})

	// Alert pipeline.
	guard := alerting.NewGuard(alerting.GuardConfig{
		TTL:    cfg.Alerting.GuardTTL,
		Logger: logger,
	})
	guard.Start()
	defer guard.Stop()

	window := alerting.NewWindow(alertRepo, nil, logger)

	genCfg := alerting.GeneratorConfig{
		Guard:      guard,
		Window:     window,
		Store:      alertRepo,
		WindowSize: cfg.Alerting.DuplicateWindow,
		Logger:     logger,
	}
	if publisher != nil {
		genCfg.Publisher = publisher
	}
	if pipelineMetrics != nil {
		genCfg.Metrics = pipelineMetrics
	}
	generator := alerting.NewGenerator(genCfg)
	defer generator.Flush()

	// Batch scheduler.
	batchCfg := scheduler.BatchConfig{
		Machines:    machineRepo,
		Predictor:   mlClient,
		Store:       predictionRepo,
		Generator:   generator,
		Interval:    cfg.Scheduler.Interval,
		Concurrency: cfg.ML.MaxConcurrency,
		Logger:      logger,
	}
	if pipelineMetrics != nil {
		batchCfg.Metrics = pipelineMetrics
	}
	batch := scheduler.NewBatch(batchCfg)
	if cfg.Scheduler.Enabled {
		batch.Start(ctx)
		defer batch.Stop()
	}

	// On-demand condition service.
	conditions := condition.NewService(condition.ServiceConfig{
		Machines:    machineRepo,
		Predictor:   mlClient,
		Alerts:      generator,
		Concurrency: cfg.ML.MaxConcurrency,
		Logger:      logger,
	})

	// HTTP server.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.HealthProbes = []core.HealthProbe{core.DatabaseProbe{DB: pool}}

	machinesHandler := handlers.NewMachinesHandler(conditions, logger)
	alertsHandler := handlers.NewAlertsHandler(alertRepo, logger)
	cronHandler := handlers.NewCronHandler(batch, cfg.Cron.Secret, logger)
	srv.V1Routes = append(srv.V1Routes,
		func(r chi.Router) { machinesHandler.RegisterRoutes(r) },
		func(r chi.Router) { alertsHandler.RegisterRoutes(r) },
		func(r chi.Router) { cronHandler.RegisterRoutes(r) },
	)
	srv.MountRoutes()

	return serveHTTP(ctx, cfg, srv, logger)
}

// newPool builds the pgx pool from the database config and verifies
// connectivity before startup proceeds.
func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// newAWSIntegrations builds the SQS alert publisher and CloudWatch pipeline
// metrics when configured. Both return nil when their resource identifier is
// empty.
func newAWSIntegrations(ctx context.Context, cfg config.AWSConfig, logger *slog.Logger) (*queue.AlertPublisher, *metrics.CloudWatchPipelineMetrics, error) {
	if cfg.AlertQueueURL == "" && cfg.MetricsNamespace == "" {
		return nil, nil, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, nil, err
	}

	endpointOpt := func(endpoint string) func(o *sqs.Options) {
		return func(o *sqs.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}
	}

	var publisher *queue.AlertPublisher
	if cfg.AlertQueueURL != "" {
		sqsClient := sqs.NewFromConfig(awsCfg, endpointOpt(cfg.EndpointURL))
		publisher = queue.NewAlertPublisher(sqsClient, cfg.AlertQueueURL, logger)
	}

	var pipelineMetrics *metrics.CloudWatchPipelineMetrics
	if cfg.MetricsNamespace != "" {
		cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}
		})
		pipelineMetrics = metrics.NewCloudWatchPipelineMetrics(cwClient, cfg.MetricsNamespace, logger)
	}

	return publisher, pipelineMetrics, nil
}

// serveHTTP runs the HTTP server until the signal context fires, then
// shuts down gracefully within the configured deadline.
func serveHTTP(ctx context.Context, cfg *config.Config, srv *core.Server, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates the JSON structured logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
