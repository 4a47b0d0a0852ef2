package external

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"aurorawatch/internal/types"
)

// SESAPI defines the subset of the SES v2 client used by SESClient.
// Extracted so tests can provide a mock implementation.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESClientConfig holds the configuration for creating an SESClient.
type SESClientConfig struct {
	// ConfigSetName is the SES configuration set name for tracking.
	// Optional; if empty, no configuration set is used.
	ConfigSetName string
	Logger        *slog.Logger
}

// SESClient implements EmailProvider using AWS SES v2. Authentication is
// handled via IAM roles, and the AWS SDK provides built-in retry logic, so
// no BaseClient wrapper is needed.
type SESClient struct {
	api           SESAPI
	configSetName string
	logger        *slog.Logger
}

// NewSESClient creates a new SESClient from an AWS config.
func NewSESClient(awsCfg aws.Config, cfg SESClientConfig) *SESClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SESClient{
		api:           sesv2.NewFromConfig(awsCfg),
		configSetName: cfg.ConfigSetName,
		logger:        logger,
	}
}

// NewSESClientWithAPI creates an SESClient with a pre-configured SESAPI.
// Useful for testing with a mock SES interface.
func NewSESClientWithAPI(api SESAPI, cfg SESClientConfig) *SESClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SESClient{
		api:           api,
		configSetName: cfg.ConfigSetName,
		logger:        logger,
	}
}

// Send transmits an email using SES v2 SendEmail with simple content
// (Subject, Body.Html, Body.Text). The input carries pre-rendered content.
//
// Error mapping:
//   - MessageRejected -> ErrCodeEmailBlocked
//   - TooManyRequestsException -> ErrCodeUpstreamRateLimited
//   - SendingPausedException -> ErrCodeUpstreamUnavailable
//   - Other -> ErrCodeUpstreamEmailProvider
func (s *SESClient) Send(ctx context.Context, input types.SendInput) (string, error) {
	fromAddr := fmt.Sprintf("%s <%s>", input.From.Name, input.From.Address)
	if input.From.Name == "" {
		fromAddr = input.From.Address
	}

	body := &sestypes.Body{}
	if input.BodyHTML != "" {
		body.Html = &sestypes.Content{Data: aws.String(input.BodyHTML)}
	}
	if input.BodyText != "" {
		body.Text = &sestypes.Content{Data: aws.String(input.BodyText)}
	}

	sendInput := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddr),
		Destination: &sestypes.Destination{
			ToAddresses: []string{input.To},
		},
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(input.Subject)},
				Body:    body,
			},
		},
	}
	if s.configSetName != "" {
		sendInput.ConfigurationSetName = aws.String(s.configSetName)
	}

	out, err := s.api.SendEmail(ctx, sendInput)
	if err != nil {
		return "", s.mapSendError(err, input.ReferenceID)
	}

	msgID := ""
	if out.MessageId != nil {
		msgID = *out.MessageId
	}
	return msgID, nil
}

// mapSendError translates SES SDK errors into the AppError taxonomy.
func (s *SESClient) mapSendError(err error, referenceID string) error {
	var rejected *sestypes.MessageRejected
	if errors.As(err, &rejected) {
		s.logger.Warn("ses rejected message", "reference_id", referenceID)
		return types.NewAppError(types.ErrCodeEmailBlocked, "recipient address rejected by SES", err)
	}

	var tooMany *sestypes.TooManyRequestsException
	if errors.As(err, &tooMany) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimited, "SES send quota exceeded", err)
	}

	var paused *sestypes.SendingPausedException
	if errors.As(err, &paused) {
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "SES sending is paused for this account", err)
	}

	return types.NewAppError(types.ErrCodeUpstreamEmailProvider, "SES send failed", err)
}

// Compile-time assertion that SESClient implements EmailProvider.
var _ EmailProvider = (*SESClient)(nil)
