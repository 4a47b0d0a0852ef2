// Package main is a local development tool that runs evaluation cycles
// end to end without AWS infrastructure. Instead of dispatching to SQS, it
// delivers each notification message directly through the email channel
// (stub provider by default) and persists cooldown markers in the CSV
// recipient directory, so the full poller-to-worker path can be exercised
// from one terminal.
//
// Usage:
//
//	go run ./cmd/tools/cycle-runner -recipients recipients.csv [-dry-run] [-force] [-loop]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"aurorawatch/internal/config"
	"aurorawatch/internal/directory"
	"aurorawatch/internal/eval"
	"aurorawatch/internal/external"
	"aurorawatch/internal/notifications/email"
	"aurorawatch/internal/scheduler"
	"aurorawatch/internal/types"
	"aurorawatch/internal/upstream"
)

// directDispatcher implements scheduler.Dispatcher by delivering in-process
// instead of enqueueing, mirroring what the email worker does with a queue
// message: deliver, then persist the cooldown marker.
type directDispatcher struct {
	channel   *email.Channel
	directory types.RecipientDirectory
	logger    *slog.Logger
}

func (d *directDispatcher) Dispatch(ctx context.Context, msg types.NotificationMessage) error {
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("local-%d", time.Now().UnixNano())
	}

	result, err := d.channel.Deliver(ctx, msg)
	if err != nil {
		return err
	}
	if result.Status != types.DeliveryStatusSent {
		d.logger.InfoContext(ctx, "delivery not sent, marker not persisted",
			"status", string(result.Status),
			"dest", email.RedactEmail(msg.Recipient.Email),
		)
		return nil
	}

	switch msg.Kind {
	case types.AlertRealtime:
		at, err := time.Parse(time.RFC3339, msg.MarkerValue)
		if err != nil {
			return err
		}
		return d.directory.MarkRealtimeNotified(ctx, msg.Recipient.RowHandle, at)
	case types.AlertForecast:
		return d.directory.MarkForecastNotified(ctx, msg.Recipient.RowHandle, msg.MarkerValue)
	}
	return nil
}

func main() {
	var (
		recipientsPath = flag.String("recipients", "recipients.csv", "path to the CSV recipient file")
		dryRun         = flag.Bool("dry-run", false, "evaluate and log without delivering")
		force          = flag.Bool("force", false, "dispatch realtime alerts regardless of conditions")
		testMode       = flag.Bool("test-mode", false, "suppress provider sends")
		loop           = flag.Bool("loop", false, "keep running at the configured check interval")
		logLevel       = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig(config.NewEnvVarProvider())
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	locations, err := cfg.Alerting.Locations()
	if err != nil {
		logger.Error("failed to parse locations", "error", err)
		os.Exit(1)
	}

	recipientDir, err := directory.NewCSVDirectory(*recipientsPath)
	if err != nil {
		logger.Error("failed to load recipient file", "path", *recipientsPath, "error", err)
		os.Exit(1)
	}

	var provider external.EmailProvider = external.NewStubEmailProvider(logger)
	channel := email.NewChannel(email.ChannelConfig{
		Provider: provider,
		From: types.EmailAddress{
			Name:    cfg.Email.FromName,
			Address: cfg.Email.FromAddress,
		},
		Logger: logger,
	})

	runner := scheduler.NewCycleRunner(scheduler.CycleRunnerConfig{
		Source:    upstream.NewSource(upstream.SourceConfig{Logger: logger}),
		Evaluator: eval.NewEvaluator(cfg.Alerting.CloudMax, logger),
		Directory: recipientDir,
		Dispatcher: &directDispatcher{
			channel:   channel,
			directory: recipientDir,
			logger:    logger,
		},
		Locations: locations,
		Logger:    logger,
	})

	input := scheduler.CycleInput{
		DryRun:        *dryRun,
		ForceRealtime: *force,
		TestMode:      *testMode,
	}

	ctx := context.Background()
	for {
		report, err := runner.RunCycle(ctx, input)
		if err != nil {
			logger.Error("cycle failed", "error", err)
			os.Exit(1)
		}

		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))

		if !*loop {
			return
		}
		logger.Info("sleeping until next cycle", "interval", cfg.Alerting.CheckInterval.String())
		time.Sleep(cfg.Alerting.CheckInterval)
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
