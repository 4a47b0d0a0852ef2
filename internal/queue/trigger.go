// Package queue provides the SQS-based producer that hands notification
// messages from the poller to the email worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"aurorawatch/internal/notifications/email"
	"aurorawatch/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// NotificationTrigger serializes NotificationMessages and sends them to the
// notification queue. Each message targets exactly one recipient so the
// worker can report per-recipient partial batch failures.
type NotificationTrigger struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewNotificationTrigger creates a NotificationTrigger for the given queue.
func NewNotificationTrigger(client SQSSender, queueURL string, logger *slog.Logger) *NotificationTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationTrigger{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Dispatch validates, serializes and enqueues one notification message.
// A missing ID is assigned here so callers can leave identity to the queue
// layer.
func (t *NotificationTrigger) Dispatch(ctx context.Context, msg types.NotificationMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.TraceID == "" {
		msg.TraceID = uuid.New().String()
	}

	if err := msg.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal notification message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(msg.Kind)),
			},
			"location": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.Location.Name),
			},
		},
	}

	if _, err := t.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("failed to send notification message to %s", t.queueURL), err)
	}

	t.logger.InfoContext(ctx, "notification message sent",
		"queue_url", t.queueURL,
		"notification_id", msg.ID,
		"trace_id", msg.TraceID,
		"kind", string(msg.Kind),
		"location", msg.Location.Name,
		"dest", email.RedactEmail(msg.Recipient.Email),
	)

	return nil
}
