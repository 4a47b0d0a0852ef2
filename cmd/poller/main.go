// Package main is the entrypoint for the Poller Lambda function.
//
// The Poller runs on an EventBridge schedule. Each invocation executes one
// evaluation cycle: it fetches current space weather and sky conditions for
// every configured location, scores aurora visibility, reduces the 3-day kp
// forecast, applies per-recipient cooldown gates and enqueues one SQS
// notification message per eligible recipient. Actual email delivery happens
// in the email worker.
//
// This file handles dependency wiring (cold start) and delegates all
// business logic to internal/scheduler (CycleRunner.RunCycle).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"aurorawatch/internal/config"
	"aurorawatch/internal/db"
	"aurorawatch/internal/directory"
	"aurorawatch/internal/eval"
	"aurorawatch/internal/external"
	"aurorawatch/internal/queue"
	"aurorawatch/internal/scheduler"
	"aurorawatch/internal/types"
	"aurorawatch/internal/upstream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("poller initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	locations, err := cfg.Alerting.Locations()
	if err != nil {
		logger.Error("failed to parse locations", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	// Recipient directory: Postgres in deployed environments, CSV locally
	// when a recipient file is configured.
	var recipientDir types.RecipientDirectory
	if cfg.Environment == "local" && cfg.Email.RecipientsCSV != "" {
		recipientDir, err = directory.NewCSVDirectory(cfg.Email.RecipientsCSV)
		if err != nil {
			logger.Error("failed to load recipient file", "error", err)
			os.Exit(1)
		}
	} else {
		if cfg.Database.URL.Unmask() == "" {
			logger.Error("DATABASE_URL is required outside local mode")
			os.Exit(1)
		}
		pool, err := pgxpool.New(ctx, cfg.Database.URL.Unmask())
		if err != nil {
			logger.Error("failed to create database pool", "error", err)
			os.Exit(1)
		}
		if err := pool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		recipientDir = db.NewRecipientRepository(pool)
	}

	if cfg.AWS.NotificationQueue == "" {
		logger.Error("SQS_NOTIFICATIONS is required for the poller")
		os.Exit(1)
	}
	trigger := queue.NewNotificationTrigger(sqs.NewFromConfig(awsCfg), cfg.AWS.NotificationQueue, logger)

	var metrics external.MetricPublisher = external.NopMetrics{}
	if cfg.Observability.EnableMetrics {
		metrics = external.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
	}

	runner := scheduler.NewCycleRunner(scheduler.CycleRunnerConfig{
		Source:     upstream.NewSource(upstream.SourceConfig{Logger: logger}),
		Evaluator:  eval.NewEvaluator(cfg.Alerting.CloudMax, logger),
		Directory:  recipientDir,
		Dispatcher: trigger,
		Metrics:    metrics,
		Locations:  locations,
		Logger:     logger,
	})

	logger.Info("poller initialized",
		"environment", cfg.Environment,
		"locations", len(locations),
		"notification_queue", cfg.AWS.NotificationQueue,
		"cloud_max", cfg.Alerting.CloudMax,
		"check_interval", cfg.Alerting.CheckInterval.String(),
	)

	handler := newHandler(runner, cfg.IsTestMode, logger)

	// Local mode: run one cycle directly instead of starting the Lambda
	// runtime.
	if cfg.Environment == "local" {
		result, err := handler(ctx, scheduler.CycleInput{TestMode: cfg.IsTestMode})
		if err != nil {
			logger.Error("cycle failed", "error", err)
			os.Exit(1)
		}
		logger.Info(result)
		return
	}

	lambda.Start(handler)
}

// newHandler wraps CycleRunner.RunCycle with input handling. The scheduled
// EventBridge rule invokes it with an empty input; operators can invoke the
// Lambda manually with dry_run/force_realtime/test_mode set.
func newHandler(runner *scheduler.CycleRunner, forceTestMode bool, logger *slog.Logger) func(ctx context.Context, input scheduler.CycleInput) (string, error) {
	return func(ctx context.Context, input scheduler.CycleInput) (string, error) {
		// A deployment-wide test mode flag can never be overridden off
		// per-invocation.
		if forceTestMode {
			input.TestMode = true
		}

		logger.InfoContext(ctx, "cycle handler invoked",
			"dry_run", input.DryRun,
			"force_realtime", input.ForceRealtime,
			"test_mode", input.TestMode,
		)

		report, err := runner.RunCycle(ctx, input)
		if err != nil {
			return "", fmt.Errorf("evaluation cycle failed: %w", err)
		}

		result := fmt.Sprintf("cycle complete: %d messages dispatched, %d locations failed",
			report.Dispatched, report.Failed)
		logger.InfoContext(ctx, result)
		return result, nil
	}
}
