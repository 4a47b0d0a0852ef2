// Package scheduler implements the evaluation cycle behind the scheduled
// poller Lambda. One cycle walks every configured location: it assembles the
// current conditions, scores them, reduces the 3-day forecast, applies the
// per-recipient cooldown gates and dispatches one queue message per eligible
// recipient. Locations are independent: a failing location is logged and
// skipped, never aborting the rest of the cycle.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"aurorawatch/internal/eval"
	"aurorawatch/internal/external"
	"aurorawatch/internal/gate"
	"aurorawatch/internal/types"
)

// ConditionsProvider is the subset of the upstream source the cycle needs.
type ConditionsProvider interface {
	Snapshot(ctx context.Context, loc types.Location, now time.Time) (types.RealtimeSnapshot, error)
	KpForecast(ctx context.Context, tz *time.Location) ([]types.ForecastPoint, error)
}

// Dispatcher hands a notification message to the delivery queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg types.NotificationMessage) error
}

// CycleInput defines the input for manual Lambda invocation. Used for
// testing deployments and forcing a send without waiting for real activity.
type CycleInput struct {
	// DryRun evaluates and logs decisions without dispatching anything.
	DryRun bool `json:"dry_run"`
	// ForceRealtime dispatches realtime alerts regardless of the
	// evaluation outcome. Cooldown gates still apply.
	ForceRealtime bool `json:"force_realtime"`
	// TestMode marks dispatched messages so the worker suppresses the
	// actual provider send.
	TestMode bool `json:"test_mode"`
}

// LocationReport summarizes one location's cycle outcome.
type LocationReport struct {
	Location           string `json:"location"`
	Score              int    `json:"score"`
	RealtimeDispatched int    `json:"realtime_dispatched"`
	ForecastDispatched int    `json:"forecast_dispatched"`
	Error              string `json:"error,omitempty"`
}

// CycleReport aggregates the per-location outcomes of one cycle.
type CycleReport struct {
	Locations  []LocationReport `json:"locations"`
	Dispatched int              `json:"dispatched"`
	Failed     int              `json:"failed"`
}

// CycleRunner executes evaluation cycles over the configured locations.
type CycleRunner struct {
	source     ConditionsProvider
	evaluator  *eval.Evaluator
	directory  types.RecipientDirectory
	dispatcher Dispatcher
	metrics    external.MetricPublisher
	locations  []types.Location
	clock      types.Clock
	logger     *slog.Logger
}

// CycleRunnerConfig holds the dependencies for creating a CycleRunner.
type CycleRunnerConfig struct {
	Source     ConditionsProvider
	Evaluator  *eval.Evaluator
	Directory  types.RecipientDirectory
	Dispatcher Dispatcher
	Metrics    external.MetricPublisher
	Locations  []types.Location
	Clock      types.Clock
	Logger     *slog.Logger
}

// NewCycleRunner creates a CycleRunner with the given dependencies.
func NewCycleRunner(cfg CycleRunnerConfig) *CycleRunner {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = external.NopMetrics{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CycleRunner{
		source:     cfg.Source,
		evaluator:  cfg.Evaluator,
		directory:  cfg.Directory,
		dispatcher: cfg.Dispatcher,
		metrics:    metrics,
		locations:  cfg.Locations,
		clock:      clock,
		logger:     logger,
	}
}

// RunCycle evaluates every configured location once. It never returns an
// error for individual location failures; those are recorded in the report
// and the cycle continues. The returned error is reserved for systemic
// failures (currently none).
func (r *CycleRunner) RunCycle(ctx context.Context, input CycleInput) (CycleReport, error) {
	report := CycleReport{}

	for _, loc := range r.locations {
		locReport := r.runLocation(ctx, loc, input)
		report.Locations = append(report.Locations, locReport)
		report.Dispatched += locReport.RealtimeDispatched + locReport.ForecastDispatched
		if locReport.Error != "" {
			report.Failed++
		}
	}

	r.logger.InfoContext(ctx, "evaluation cycle complete",
		"locations", len(r.locations),
		"dispatched", report.Dispatched,
		"failed", report.Failed,
		"dry_run", input.DryRun,
	)
	return report, nil
}

func (r *CycleRunner) runLocation(ctx context.Context, loc types.Location, input CycleInput) LocationReport {
	report := LocationReport{Location: loc.Name}

	tz, err := time.LoadLocation(loc.Timezone)
	if err != nil {
		report.Error = fmt.Sprintf("unknown timezone %q: %v", loc.Timezone, err)
		r.logger.ErrorContext(ctx, "location skipped", "location", loc.Name, "error", report.Error)
		return report
	}
	now := r.clock.Now().In(tz)

	recipients, err := r.directory.ListByLocation(ctx, loc.Name)
	if err != nil {
		report.Error = fmt.Sprintf("recipient listing failed: %v", err)
		r.logger.ErrorContext(ctx, "location skipped", "location", loc.Name, "error", report.Error)
		return report
	}

	// Realtime path. A snapshot failure kills only this location's realtime
	// evaluation; the forecast path still runs on the kp feed alone.
	snap, snapErr := r.source.Snapshot(ctx, loc, now)
	if snapErr != nil {
		report.Error = fmt.Sprintf("snapshot failed: %v", snapErr)
		r.logger.ErrorContext(ctx, "realtime evaluation skipped",
			"location", loc.Name,
			"error", snapErr,
		)
	} else {
		result := r.evaluator.EvaluateNow(loc, snap)
		report.Score = result.Score
		r.metrics.PublishEvaluation(ctx, loc.Name, snap.Kp, result.Score, result.Send)

		if result.Send || input.ForceRealtime {
			dispatched := r.dispatchRealtime(ctx, loc, recipients, result, input)
			report.RealtimeDispatched = dispatched
		}
	}

	// Forecast path.
	points, err := r.source.KpForecast(ctx, tz)
	if err != nil {
		r.logger.ErrorContext(ctx, "forecast evaluation skipped",
			"location", loc.Name,
			"error", err,
		)
		if report.Error == "" {
			report.Error = fmt.Sprintf("forecast fetch failed: %v", err)
		}
		return report
	}

	decision := r.evaluator.EvaluateForecast(loc, points)
	if decision.Send && r.isNotifyWindow(now, decision.Details.NotifyTime) {
		report.ForecastDispatched = r.dispatchForecast(ctx, loc, recipients, decision.Details, now, input)
	}

	return report
}

// isNotifyWindow reports whether the current cycle falls in the forecast
// notify window: same civil date as the derived notify instant and the
// notify hour itself. Cycles run more often than hourly, so the daily gate
// keeps repeats within the hour from double-sending.
func (r *CycleRunner) isNotifyWindow(now, notifyTime time.Time) bool {
	return now.Format(types.DayFormat) == notifyTime.Format(types.DayFormat) &&
		now.Hour() == eval.NotifyHour
}

func (r *CycleRunner) dispatchRealtime(ctx context.Context, loc types.Location, recipients []types.Recipient, result types.EvaluationResult, input CycleInput) int {
	ref := result.Details.Time
	eligible := gate.EligibleRealtime(recipients, ref)
	if len(eligible) == 0 {
		r.logger.InfoContext(ctx, "no recipients eligible for realtime alert",
			"location", loc.Name,
			"subscribed", len(recipients),
		)
		return 0
	}
	if input.DryRun {
		r.logger.InfoContext(ctx, "dry run: realtime dispatch suppressed",
			"location", loc.Name,
			"eligible", len(eligible),
			"score", result.Score,
		)
		return 0
	}

	marker := ref.Format(time.RFC3339)
	dispatched := 0
	for _, rec := range eligible {
		msg := types.NotificationMessage{
			Kind:        types.AlertRealtime,
			Location:    loc,
			Recipient:   rec,
			Evaluation:  &result,
			MarkerValue: marker,
			TestMode:    input.TestMode,
		}
		if err := r.dispatcher.Dispatch(ctx, msg); err != nil {
			r.logger.ErrorContext(ctx, "realtime dispatch failed",
				"location", loc.Name,
				"error", err,
			)
			continue
		}
		dispatched++
	}

	r.metrics.PublishDispatched(ctx, loc.Name, types.AlertRealtime, dispatched)
	return dispatched
}

func (r *CycleRunner) dispatchForecast(ctx context.Context, loc types.Location, recipients []types.Recipient, details *types.ForecastDetails, now time.Time, input CycleInput) int {
	day := now.Format(types.DayFormat)
	eligible := gate.EligibleForecast(recipients, day)
	if len(eligible) == 0 {
		r.logger.InfoContext(ctx, "no recipients eligible for forecast alert",
			"location", loc.Name,
			"subscribed", len(recipients),
			"day", day,
		)
		return 0
	}
	if input.DryRun {
		r.logger.InfoContext(ctx, "dry run: forecast dispatch suppressed",
			"location", loc.Name,
			"eligible", len(eligible),
			"event_time", details.EventTime.Format(time.RFC3339),
		)
		return 0
	}

	dispatched := 0
	for _, rec := range eligible {
		msg := types.NotificationMessage{
			Kind:        types.AlertForecast,
			Location:    loc,
			Recipient:   rec,
			Forecast:    details,
			MarkerValue: day,
			TestMode:    input.TestMode,
		}
		if err := r.dispatcher.Dispatch(ctx, msg); err != nil {
			r.logger.ErrorContext(ctx, "forecast dispatch failed",
				"location", loc.Name,
				"error", err,
			)
			continue
		}
		dispatched++
	}

	r.metrics.PublishDispatched(ctx, loc.Name, types.AlertForecast, dispatched)
	return dispatched
}
