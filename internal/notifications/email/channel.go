// Package email renders and delivers alert emails. Templates are rendered
// client-side; the provider only transmits finished content.
package email

import (
	"context"
	"errors"
	"log/slog"

	"aurorawatch/internal/external"
	"aurorawatch/internal/types"
)

// Channel delivers rendered notification messages via an EmailProvider.
type Channel struct {
	provider external.EmailProvider
	from     types.EmailAddress
	logger   *slog.Logger
}

// ChannelConfig holds the dependencies needed to create a Channel.
type ChannelConfig struct {
	Provider external.EmailProvider
	From     types.EmailAddress
	Logger   *slog.Logger
}

// NewChannel creates a Channel with the given dependencies.
func NewChannel(cfg ChannelConfig) *Channel {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		provider: cfg.Provider,
		from:     cfg.From,
		logger:   logger,
	}
}

// Deliver renders and transmits one notification message.
//
//  1. Validate the message envelope.
//  2. Test mode bypass: log and report skipped without touching the provider.
//  3. Render the alert for the message kind.
//  4. Send via the provider.
//  5. Blocked addresses become a terminal bounced result; transient provider
//     failures propagate as errors so the queue retries the message.
func (c *Channel) Deliver(ctx context.Context, msg types.NotificationMessage) (*types.DeliveryResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "attempting email delivery",
		"dest", RedactEmail(msg.Recipient.Email),
		"kind", string(msg.Kind),
		"notification_id", msg.ID,
	)

	if msg.TestMode {
		c.logger.InfoContext(ctx, "test mode: suppressing email", "notification_id", msg.ID)
		return &types.DeliveryResult{
			Status:            types.DeliveryStatusSkipped,
			ProviderMessageID: "test-simulated",
		}, nil
	}

	var (
		rendered RenderedEmail
		err      error
	)
	switch msg.Kind {
	case types.AlertRealtime:
		rendered, err = RenderRealtime(msg.Location, msg.Recipient, msg.Evaluation)
	case types.AlertForecast:
		rendered, err = RenderForecast(msg.Location, msg.Recipient, msg.Forecast)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "alert rendering failed",
			"kind", string(msg.Kind),
			"notification_id", msg.ID,
			"error", err.Error(),
		)
		return nil, err
	}

	msgID, err := c.provider.Send(ctx, types.SendInput{
		To:          msg.Recipient.Email,
		From:        c.from,
		Subject:     rendered.Subject,
		BodyHTML:    rendered.BodyHTML,
		BodyText:    rendered.BodyText,
		ReferenceID: msg.ID,
	})
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeEmailBlocked {
			c.logger.WarnContext(ctx, "recipient blocked by provider",
				"dest", RedactEmail(msg.Recipient.Email),
				"notification_id", msg.ID,
			)
			return &types.DeliveryResult{
				Status:        types.DeliveryStatusBounced,
				FailureReason: "address_blocked",
				Retryable:     false,
			}, nil
		}
		return nil, err
	}

	return &types.DeliveryResult{
		Status:            types.DeliveryStatusSent,
		ProviderMessageID: msgID,
	}, nil
}

// ShouldRetry reports whether a delivery error is transient. Blocked
// addresses are terminal; rate limits and provider outages retry.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case types.ErrCodeEmailBlocked, types.ErrCodeValidationMessage:
			return false
		case types.ErrCodeUpstreamRateLimited, types.ErrCodeUpstreamUnavailable, types.ErrCodeUpstreamEmailProvider:
			return true
		}
	}

	// Default: assume transient, allow retry.
	return true
}
