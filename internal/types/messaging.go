package types

import "fmt"

// AlertKind distinguishes the two notification paths, which carry
// independent cooldown policies.
type AlertKind string

const (
	AlertRealtime AlertKind = "realtime"
	AlertForecast AlertKind = "forecast"
)

// NotificationMessage is the SQS transport envelope between the poller and
// the email worker. Exactly one of Evaluation/Forecast is set, matching Kind.
//
// MarkerValue is the cooldown marker the worker persists for the recipient
// after a successful send: an RFC 3339 instant for realtime alerts, a
// "2006-01-02" calendar date for forecast alerts. It is computed by the
// poller at gating time so cooldown state is reproducible from recorded
// evaluation timestamps, not from the worker's wall clock.
type NotificationMessage struct {
	ID          string            `json:"id"`
	Kind        AlertKind         `json:"kind"`
	Location    Location          `json:"location"`
	Recipient   Recipient         `json:"recipient"`
	Evaluation  *EvaluationResult `json:"evaluation,omitempty"`
	Forecast    *ForecastDetails  `json:"forecast,omitempty"`
	MarkerValue string            `json:"marker_value"`
	TestMode    bool              `json:"test_mode,omitempty"`
	TraceID     string            `json:"trace_id,omitempty"`
}

// Validate checks the structural invariants of the message before dispatch
// or delivery.
func (m NotificationMessage) Validate() error {
	if m.Recipient.Email == "" {
		return NewAppError(ErrCodeValidationMessage, "notification message has no recipient email", nil)
	}
	switch m.Kind {
	case AlertRealtime:
		if m.Evaluation == nil {
			return NewAppError(ErrCodeValidationMessage, "realtime message missing evaluation payload", nil)
		}
	case AlertForecast:
		if m.Forecast == nil {
			return NewAppError(ErrCodeValidationMessage, "forecast message missing forecast payload", nil)
		}
	default:
		return NewAppError(ErrCodeValidationMessage, fmt.Sprintf("unknown alert kind %q", m.Kind), nil)
	}
	if m.MarkerValue == "" {
		return NewAppError(ErrCodeValidationMessage, "notification message missing cooldown marker value", nil)
	}
	return nil
}
