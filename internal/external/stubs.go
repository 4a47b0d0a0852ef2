package external

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"aurorawatch/internal/types"
)

// StubEmailProvider is a development EmailProvider that logs instead of
// sending. Used by the local cycle runner in dry-run mode and by tests.
type StubEmailProvider struct {
	logger *slog.Logger
	sent   atomic.Int64
}

// NewStubEmailProvider creates a logging stub provider.
func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubEmailProvider{logger: logger}
}

// Send logs the message and returns a synthetic message ID.
func (s *StubEmailProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	n := s.sent.Add(1)
	s.logger.InfoContext(ctx, "stub email provider: suppressing send",
		"to", input.To,
		"subject", input.Subject,
		"reference_id", input.ReferenceID,
	)
	return fmt.Sprintf("stub-%d", n), nil
}

// SentCount reports how many sends were suppressed.
func (s *StubEmailProvider) SentCount() int64 {
	return s.sent.Load()
}

var _ EmailProvider = (*StubEmailProvider)(nil)
