// Package eval implements the decision core of the aurora pipeline: the
// realtime visibility scorer and the forecast reducer. Both are pure
// functions of their inputs: they perform no I/O, hold no state between
// calls, and given well-typed inputs always return a result.
package eval

import (
	"log/slog"
	"math"
	"time"

	"aurorawatch/internal/types"
)

// DefaultCloudMax is the global cloud-cover ceiling (%) above which the sky
// is considered too overcast for a realtime alert.
const DefaultCloudMax = 50.0

// NotifyHour is the local hour at which forecast alerts are scheduled.
// Events before this hour notify at NotifyHour on the previous calendar day
// so the alert always precedes the event.
const NotifyHour = 10

// Evaluator fuses the independent condition signals (geomagnetic index,
// cloud cover, darkness window, lunar brightness) into alert decisions.
type Evaluator struct {
	cloudMax float64
	logger   *slog.Logger
}

// NewEvaluator creates an Evaluator with the given cloud-cover ceiling.
// A non-positive cloudMax falls back to DefaultCloudMax.
func NewEvaluator(cloudMax float64, logger *slog.Logger) *Evaluator {
	if cloudMax <= 0 {
		cloudMax = DefaultCloudMax
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{cloudMax: cloudMax, logger: logger}
}

// EvaluateNow decides whether a realtime alert should be sent for the given
// snapshot and computes the 0-100 visibility score.
//
// The send decision requires all three of:
//  1. measured Kp >= the location threshold,
//  2. cloud cover <= the configured ceiling,
//  3. darkness: the observation instant is strictly before sunrise or
//     strictly after sunset (the dusk/dawn boundary itself is not dark).
//
// The score is a heuristic gauge for email framing, not a probability. It is
// computed regardless of the decision: it centers at 50 when exactly at
// threshold with 30% cloud and no moon, adds 10 per whole Kp point above
// threshold, adds 0.5 per cloud point below 30% (subtracts above), and
// subtracts 0.1 per moon illumination point. The raw value is clamped to
// [0,100] before rounding half away from zero.
func (e *Evaluator) EvaluateNow(loc types.Location, snap types.RealtimeSnapshot) types.EvaluationResult {
	kpOK := snap.Kp >= float64(loc.KpMin)
	cloudOK := snap.CloudPct <= e.cloudMax
	darkOK := snap.KpObservedAt.Before(snap.Sunrise) || snap.KpObservedAt.After(snap.Sunset)

	send := kpOK && cloudOK && darkOK

	raw := 50 +
		(snap.Kp-float64(loc.KpMin))*10 +
		(30-snap.CloudPct)*0.5 -
		snap.MoonPct*0.1
	score := int(math.Round(clamp(raw, 0, 100)))

	e.logger.Debug("realtime evaluation",
		"location", loc.Name,
		"kp", snap.Kp,
		"kp_ok", kpOK,
		"cloud_ok", cloudOK,
		"dark_ok", darkOK,
		"score", score,
		"send", send,
	)

	return types.EvaluationResult{
		Send:  send,
		Score: score,
		Details: types.EvaluationDetails{
			Kp:       snap.Kp,
			Time:     snap.KpObservedAt,
			CloudPct: snap.CloudPct,
			Sunrise:  snap.Sunrise,
			Sunset:   snap.Sunset,
			MoonPct:  snap.MoonPct,
		},
	}
}

// EvaluateForecast scans the chronologically ordered forecast for the first
// point whose Kp meets the location threshold. Only the earliest crossing is
// used; later, possibly higher, crossings are ignored for this cycle so the
// earliest actionable warning wins. No crossing is a normal negative
// decision with nil details, not an error.
func (e *Evaluator) EvaluateForecast(loc types.Location, points []types.ForecastPoint) types.ForecastDecision {
	for _, p := range points {
		if p.Kp < float64(loc.KpMin) {
			continue
		}
		return types.ForecastDecision{
			Send: true,
			Details: &types.ForecastDetails{
				Kp:         p.Kp,
				EventTime:  p.At,
				NotifyTime: notifyTimeFor(p.At),
				KpMin:      loc.KpMin,
			},
		}
	}
	return types.ForecastDecision{}
}

// notifyTimeFor derives the alert timestamp for a forecast event: 10:00
// local on the event's calendar date when the event is at or after 10:00,
// otherwise 10:00 on the previous calendar date. The result carries the
// event's own timezone offset.
func notifyTimeFor(event time.Time) time.Time {
	day := event
	if event.Hour() < NotifyHour {
		day = event.AddDate(0, 0, -1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), NotifyHour, 0, 0, 0, event.Location())
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
