// Package main is the entrypoint for the Email Worker Lambda function.
//
// The Email Worker consumes NotificationMessages from the notification SQS
// queue, renders and delivers them via SES, and persists the recipient's
// cooldown marker after each successful send. It uses the SQS Lambda handler
// pattern with partial batch responses: only failed messages are retried.
//
// Marker persistence is deliberately after the send. A crash between the two
// re-delivers the message and can produce one duplicate email at worst, which
// is acceptable at multi-hour cooldown granularity. The reverse order would
// silently drop alerts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/jackc/pgx/v5/pgxpool"

	"aurorawatch/internal/config"
	"aurorawatch/internal/db"
	"aurorawatch/internal/directory"
	"aurorawatch/internal/external"
	"aurorawatch/internal/notifications/email"
	"aurorawatch/internal/types"
)

// Handler holds the dependencies for the email worker Lambda handler.
type Handler struct {
	channel   *email.Channel
	directory types.RecipientDirectory
	logger    *slog.Logger
}

// Handle processes an SQS event containing one or more notification
// messages. Each message is processed independently; failures are reported
// via batchItemFailures so SQS retries only those messages.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to process SQS message",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processRecord handles a single SQS message through delivery and marker
// persistence. A returned error means the message should be retried.
func (h *Handler) processRecord(ctx context.Context, record events.SQSMessage) error {
	var msg types.NotificationMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		h.logger.ErrorContext(ctx, "failed to unmarshal notification message",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		// Permanent parse failure, do not retry (nil ACKs the message).
		return nil
	}

	logger := h.logger.With(
		"notification_id", msg.ID,
		"trace_id", msg.TraceID,
		"kind", string(msg.Kind),
		"location", msg.Location.Name,
	)

	result, err := h.channel.Deliver(ctx, msg)
	if err != nil {
		if email.ShouldRetry(err) {
			return fmt.Errorf("delivery failed: %w", err)
		}
		logger.ErrorContext(ctx, "email delivery permanently failed", "error", err.Error())
		return nil
	}

	switch result.Status {
	case types.DeliveryStatusSent:
		logger.InfoContext(ctx, "email delivery succeeded",
			"provider_message_id", result.ProviderMessageID,
		)
		return h.persistMarker(ctx, msg, logger)

	case types.DeliveryStatusSkipped:
		// Test mode: no provider send happened, so no cooldown either.
		logger.InfoContext(ctx, "email delivery skipped")
		return nil

	case types.DeliveryStatusBounced:
		logger.WarnContext(ctx, "email delivery bounced", "reason", result.FailureReason)
		return nil

	default:
		return fmt.Errorf("unexpected delivery status %q", result.Status)
	}
}

// persistMarker writes the cooldown marker carried by the message. Marker
// failures are retryable: re-delivery re-sends the email at worst, it never
// loses cooldown state permanently.
func (h *Handler) persistMarker(ctx context.Context, msg types.NotificationMessage, logger *slog.Logger) error {
	switch msg.Kind {
	case types.AlertRealtime:
		at, err := time.Parse(time.RFC3339, msg.MarkerValue)
		if err != nil {
			logger.ErrorContext(ctx, "malformed realtime marker, cooldown not recorded",
				"marker", msg.MarkerValue,
				"error", err.Error(),
			)
			return nil
		}
		if err := h.directory.MarkRealtimeNotified(ctx, msg.Recipient.RowHandle, at); err != nil {
			return fmt.Errorf("persist realtime marker: %w", err)
		}
	case types.AlertForecast:
		if err := h.directory.MarkForecastNotified(ctx, msg.Recipient.RowHandle, msg.MarkerValue); err != nil {
			return fmt.Errorf("persist forecast marker: %w", err)
		}
	}
	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("email worker initializing (cold start)")

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	var emailProvider external.EmailProvider
	if cfg.Email.Provider == "stub" {
		logger.Warn("using stub email provider, no real emails will be sent")
		emailProvider = external.NewStubEmailProvider(logger)
	} else {
		emailProvider = external.NewSESClient(awsCfg, external.SESClientConfig{Logger: logger})
	}

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

	handler := &Handler{
		channel: email.NewChannel(email.ChannelConfig{
			Provider: emailProvider,
			From: types.EmailAddress{
				Name:    cfg.Email.FromName,
				Address: cfg.Email.FromAddress,
			},
			Logger: logger,
		}),
		directory: recipientDir,
		logger:    logger,
	}

	logger.Info("email worker initialized",
		"environment", cfg.Environment,
		"notification_queue", cfg.AWS.NotificationQueue,
		"email_provider", cfg.Email.Provider,
		"from_address", cfg.Email.FromAddress,
	)

	// Local mode: read a JSON SQS event from stdin instead of starting the
	// Lambda runtime.
	// Usage: echo '{"Records":[{"messageId":"1","body":"{...}"}]}' | go run ./cmd/email-worker
	if cfg.Environment == "local" {
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("failed to read stdin", "error", err)
			os.Exit(1)
		}
		if len(payload) == 0 {
			logger.Error("no input received on stdin")
			os.Exit(1)
		}
		var sqsEvent events.SQSEvent
		if err := json.Unmarshal(payload, &sqsEvent); err != nil {
			logger.Error("failed to parse stdin as SQS event", "error", err)
			os.Exit(1)
		}
		response, err := handler.Handle(ctx, sqsEvent)
		if err != nil {
			logger.Error("handler execution failed", "error", err)
			os.Exit(1)
		}
		if len(response.BatchItemFailures) > 0 {
			respJSON, _ := json.MarshalIndent(response, "", "  ")
			fmt.Fprintln(os.Stderr, string(respJSON))
		}
		logger.Info("handler execution completed",
			"records_processed", len(sqsEvent.Records),
			"failures", len(response.BatchItemFailures),
		)
		return
	}

	lambda.Start(handler.Handle)
}
