package types

import "fmt"

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Components MUST use these constants instead of
// hardcoded strings so failures can be routed and counted consistently.
const (
	// Validation
	ErrCodeValidationLocation ErrorCode = "validation_invalid_location"
	ErrCodeValidationMessage  ErrorCode = "validation_invalid_message"

	// Upstream data sources (502-class): one code per collaborator so a
	// single flaky source is attributable in logs and metrics.
	ErrCodeUpstreamKp        ErrorCode = "upstream_kp_unavailable"
	ErrCodeUpstreamWeather   ErrorCode = "upstream_weather_unavailable"
	ErrCodeUpstreamSun       ErrorCode = "upstream_sun_unavailable"
	ErrCodeUpstreamMoon      ErrorCode = "upstream_moon_unavailable"
	ErrCodeUpstreamDirectory ErrorCode = "upstream_directory_unavailable"

	// Email delivery
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider_unavailable"
	ErrCodeEmailBlocked          ErrorCode = "email_blocked"

	// Generic upstream/internal
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
)

// AppError is the standard application error type used throughout the
// pipeline. All collaborator failures are expressed as AppError to enable
// consistent formatting, per-source attribution, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
