// Package types defines the shared domain model for the aurora alert pipeline.
// All entities are immutable value records: they are constructed fresh each
// evaluation cycle, passed by value between components, and never mutated.
package types

import "time"

// Location is a configured observation site with its alert threshold.
// KpMin is on the planetary K-index scale and must stay within [0,9];
// the config loader rejects anything else before the core sees it.
type Location struct {
	Name  string  `json:"name" validate:"required"`
	Lat   float64 `json:"lat" validate:"min=-90,max=90"`
	Lon   float64 `json:"lon" validate:"min=-180,max=180"`
	KpMin int     `json:"kp_min" validate:"min=0,max=9"`
	// Timezone is the IANA zone name used for all local-time decisions
	// (darkness window, 10:00 notify rule).
	Timezone string `json:"timezone" validate:"required"`
}

// RealtimeSnapshot captures the measured conditions for one evaluation cycle.
// All timestamps are zoned to the location's local timezone. Sunrise and
// sunset fall on the same calendar day as KpObservedAt; the snapshot
// assembler guarantees this, the scorer does not re-validate it.
type RealtimeSnapshot struct {
	Kp           float64   `json:"kp"`
	KpObservedAt time.Time `json:"kp_observed_at"`
	CloudPct     float64   `json:"cloud_pct"`
	Sunrise      time.Time `json:"sunrise"`
	Sunset       time.Time `json:"sunset"`
	MoonPct      float64   `json:"moon_pct"`
	// MoonEstimated is true when MoonPct came from the local astronomical
	// fallback rather than the illumination service.
	MoonEstimated bool `json:"moon_estimated,omitempty"`
}

// ForecastPoint is one predicted (Kp, time) pair from the 3-day feed.
// Sequences of ForecastPoints are ascending in time; the upstream client
// filters out observed entries before the reducer sees them.
type ForecastPoint struct {
	Kp float64   `json:"kp"`
	At time.Time `json:"at"`
}

// EvaluationDetails echoes the snapshot fields for email rendering. The
// timestamps are the original zoned instants; they serialize as RFC 3339
// with an explicit offset. The email layer treats these as opaque
// pass-through data and never re-derives them.
type EvaluationDetails struct {
	Kp       float64   `json:"kp"`
	Time     time.Time `json:"time"`
	CloudPct float64   `json:"cloud_pct"`
	Sunrise  time.Time `json:"sunrise"`
	Sunset   time.Time `json:"sunset"`
	MoonPct  float64   `json:"moon_pct"`
}

// EvaluationResult is the outcome of scoring a realtime snapshot.
// Score is a heuristic 0-100 visibility gauge used only for email framing;
// it is computed even when Send is false.
type EvaluationResult struct {
	Send    bool              `json:"send"`
	Score   int               `json:"score"`
	Details EvaluationDetails `json:"details"`
}

// ForecastDetails describes the earliest threshold crossing in the forecast.
// Kp is the crossing value, not the peak. NotifyTime is the derived
// 10:00-local instant carrying the same offset as EventTime.
type ForecastDetails struct {
	Kp         float64   `json:"kp"`
	EventTime  time.Time `json:"event_time"`
	NotifyTime time.Time `json:"notify_time"`
	KpMin      int       `json:"kp_min"`
}

// ForecastDecision is the outcome of reducing a forecast sequence.
// Details is nil exactly when Send is false: a forecast with no crossing is
// a normal negative decision, not an error.
type ForecastDecision struct {
	Send    bool             `json:"send"`
	Details *ForecastDetails `json:"details,omitempty"`
}

// Recipient is one subscriber row as read from the recipient directory.
// The two cooldown markers are independent: LastRealtimeNotifiedAt gates the
// 4-hour realtime window and LastForecastNotifiedDay ("2006-01-02", empty
// when never notified) gates the once-per-day forecast alert. The directory
// owns and persists both markers; the core only reads them.
type Recipient struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	LocationName string `json:"location_name"`

	LastRealtimeNotifiedAt  *time.Time `json:"last_realtime_notified_at,omitempty"`
	LastForecastNotifiedDay string     `json:"last_forecast_notified_day,omitempty"`

	// RowHandle is an opaque identifier owned by the directory backend
	// (database row ID, CSV line key). The core never interprets it.
	RowHandle string `json:"row_handle"`
}

// EmailAddress pairs a display name with an address for From headers.
type EmailAddress struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// SendInput is the contract for a single pre-rendered email transmission.
type SendInput struct {
	To          string
	From        EmailAddress
	Subject     string
	BodyHTML    string
	BodyText    string
	ReferenceID string
}

// DeliveryStatus describes the outcome of a delivery attempt.
type DeliveryStatus string

const (
	DeliveryStatusSent    DeliveryStatus = "sent"
	DeliveryStatusSkipped DeliveryStatus = "skipped"
	DeliveryStatusBounced DeliveryStatus = "bounced"
)

// DeliveryResult reports what happened to one email.
type DeliveryResult struct {
	Status            DeliveryStatus `json:"status"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	FailureReason     string         `json:"failure_reason,omitempty"`
	Retryable         bool           `json:"retryable,omitempty"`
}

// DayFormat is the calendar-date layout used for forecast cooldown markers.
const DayFormat = "2006-01-02"
