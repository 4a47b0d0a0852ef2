package types

import (
	"context"
	"time"
)

// ConditionsSource is the single capability interface over the upstream
// data collaborators. Each method has one canonical contract regardless of
// which HTTP endpoint or fallback backs it.
type ConditionsSource interface {
	// KpNow returns the latest measured planetary K-index and its
	// observation instant, zoned to the caller-supplied location timezone.
	KpNow(ctx context.Context, tz *time.Location) (float64, time.Time, error)

	// KpForecast returns the predicted (non-observed) points of the 3-day
	// K-index feed, ascending in time and zoned to tz.
	KpForecast(ctx context.Context, tz *time.Location) ([]ForecastPoint, error)

	// CloudCover returns the current cloud cover percentage at (lat, lon).
	CloudCover(ctx context.Context, lat, lon float64) (float64, error)

	// SunTimes returns the sunrise and sunset instants for the civil date
	// of `date` at (lat, lon), zoned to date's timezone.
	SunTimes(ctx context.Context, lat, lon float64, date time.Time) (sunrise, sunset time.Time, err error)

	// MoonIllumination returns the lunar illumination percentage for the
	// given date. Implementations may substitute a local estimate when the
	// external service is unavailable; the second return reports whether
	// the value is an estimate.
	MoonIllumination(ctx context.Context, date time.Time) (pct float64, estimated bool, err error)
}

// RecipientDirectory abstracts the subscriber store (Postgres in production,
// a CSV file locally). It owns the cooldown markers: the core reads them via
// ListByLocation and hands write-intents back through the Mark methods after
// a successful send. Marking is at-least-once: a crash between send and mark
// may produce one duplicate on the next cycle, which is acceptable at
// multi-hour/daily granularity.
type RecipientDirectory interface {
	ListByLocation(ctx context.Context, locationName string) ([]Recipient, error)
	MarkRealtimeNotified(ctx context.Context, rowHandle string, at time.Time) error
	MarkForecastNotified(ctx context.Context, rowHandle string, day string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }
