package external

import (
	"context"

	"aurorawatch/internal/types"
)

// EmailProvider abstracts the email delivery service (AWS SES in
// production, a logging stub for local dry runs). Send transmits a single
// pre-rendered message and returns the provider's message ID.
type EmailProvider interface {
	Send(ctx context.Context, input types.SendInput) (string, error)
}

// MetricPublisher records cycle-level telemetry for operational dashboards.
// Publishing is best effort: failures are logged by implementations and
// never fail an evaluation cycle.
type MetricPublisher interface {
	PublishEvaluation(ctx context.Context, location string, kp float64, score int, send bool)
	PublishDispatched(ctx context.Context, location string, kind types.AlertKind, count int)
}
