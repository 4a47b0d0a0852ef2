package upstream

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"aurorawatch/internal/astro"
	"aurorawatch/internal/types"
)

// Per-concern client interfaces. The concrete clients above satisfy these;
// tests substitute mocks.
type kpProvider interface {
	KpNow(ctx context.Context, tz *time.Location) (float64, time.Time, error)
	KpForecast(ctx context.Context, tz *time.Location) ([]types.ForecastPoint, error)
}

type cloudProvider interface {
	CloudCover(ctx context.Context, lat, lon float64) (float64, error)
}

type sunProvider interface {
	SunTimes(ctx context.Context, lat, lon float64, date time.Time) (time.Time, time.Time, error)
}

type moonProvider interface {
	MoonIllumination(ctx context.Context, date time.Time) (float64, error)
}

// Source is the single capability facade over the upstream data clients.
// It implements types.ConditionsSource with one canonical contract per
// method, and carries the one documented local mitigation: when the
// moon-phase service fails, the astronomical estimator stands in so the
// cycle survives with an approximate value. Every other source failure
// propagates; a cycle must fail loudly rather than evaluate on defaults.
type Source struct {
	kp     kpProvider
	clouds cloudProvider
	sun    sunProvider
	moon   moonProvider
	logger *slog.Logger
}

// SourceConfig holds the configuration for creating a Source.
type SourceConfig struct {
	// HTTPClient is shared by all upstream clients. Nil gets a 10-second
	// timeout client, matching the upstream APIs' expected latency.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// NewSource wires the production clients into a Source.
func NewSource(cfg SourceConfig) *Source {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		kp:     NewNOAAClient(httpClient, NOAAClientConfig{Logger: logger}),
		clouds: NewOpenMeteoClient(httpClient, OpenMeteoClientConfig{Logger: logger}),
		sun:    NewSunriseSunsetClient(httpClient, SunriseSunsetClientConfig{Logger: logger}),
		moon:   NewFarmSenseClient(httpClient, FarmSenseClientConfig{Logger: logger}),
		logger: logger,
	}
}

// newSourceWithClients is the injection point for tests.
func newSourceWithClients(kp kpProvider, clouds cloudProvider, sun sunProvider, moon moonProvider, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{kp: kp, clouds: clouds, sun: sun, moon: moon, logger: logger}
}

// KpNow implements types.ConditionsSource.
func (s *Source) KpNow(ctx context.Context, tz *time.Location) (float64, time.Time, error) {
	return s.kp.KpNow(ctx, tz)
}

// KpForecast implements types.ConditionsSource.
func (s *Source) KpForecast(ctx context.Context, tz *time.Location) ([]types.ForecastPoint, error) {
	return s.kp.KpForecast(ctx, tz)
}

// CloudCover implements types.ConditionsSource.
func (s *Source) CloudCover(ctx context.Context, lat, lon float64) (float64, error) {
	return s.clouds.CloudCover(ctx, lat, lon)
}

// SunTimes implements types.ConditionsSource.
func (s *Source) SunTimes(ctx context.Context, lat, lon float64, date time.Time) (time.Time, time.Time, error) {
	return s.sun.SunTimes(ctx, lat, lon, date)
}

// MoonIllumination implements types.ConditionsSource. On service failure it
// falls back to the local astronomical estimate and reports estimated=true.
func (s *Source) MoonIllumination(ctx context.Context, date time.Time) (float64, bool, error) {
	pct, err := s.moon.MoonIllumination(ctx, date)
	if err != nil {
		s.logger.WarnContext(ctx, "moon illumination service failed, using astronomical estimate",
			"error", err,
			"date", date.Format(types.DayFormat),
		)
		return astro.MoonIllumination(date), true, nil
	}
	return pct, false, nil
}

// Snapshot assembles a RealtimeSnapshot for the location at the given
// instant, fetching the four sources concurrently. now must already be
// zoned to the location's timezone; sunrise/sunset are queried for now's
// civil date so they land on the same calendar day as the observation.
func (s *Source) Snapshot(ctx context.Context, loc types.Location, now time.Time) (types.RealtimeSnapshot, error) {
	var snap types.RealtimeSnapshot
	tz := now.Location()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		kp, observedAt, err := s.kp.KpNow(gCtx, tz)
		if err != nil {
			return err
		}
		snap.Kp = kp
		snap.KpObservedAt = observedAt
		return nil
	})

	g.Go(func() error {
		cloud, err := s.clouds.CloudCover(gCtx, loc.Lat, loc.Lon)
		if err != nil {
			return err
		}
		snap.CloudPct = cloud
		return nil
	})

	g.Go(func() error {
		sunrise, sunset, err := s.sun.SunTimes(gCtx, loc.Lat, loc.Lon, now)
		if err != nil {
			return err
		}
		snap.Sunrise = sunrise
		snap.Sunset = sunset
		return nil
	})

	g.Go(func() error {
		pct, estimated, err := s.MoonIllumination(gCtx, now)
		if err != nil {
			return err
		}
		snap.MoonPct = pct
		snap.MoonEstimated = estimated
		return nil
	})

	if err := g.Wait(); err != nil {
		return types.RealtimeSnapshot{}, err
	}
	return snap, nil
}

// Compile-time assertions that the concrete clients satisfy the provider
// interfaces and the Source satisfies the capability contract.
var (
	_ kpProvider             = (*NOAAClient)(nil)
	_ cloudProvider          = (*OpenMeteoClient)(nil)
	_ sunProvider            = (*SunriseSunsetClient)(nil)
	_ moonProvider           = (*FarmSenseClient)(nil)
	_ types.ConditionsSource = (*Source)(nil)
)
