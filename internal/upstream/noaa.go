// Package upstream implements the HTTP clients for the aurora data sources
// (NOAA space weather, Open-Meteo, sunrise-sunset.org, FarmSense) and the
// Source facade that assembles realtime snapshots from them. Each client
// owns its BaseClient so one flapping source cannot trip another's circuit
// breaker. All payload quirks of the upstream wire formats stay inside this
// package; the rest of the pipeline sees only typed values.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"aurorawatch/internal/external"
	"aurorawatch/internal/types"
)

const (
	defaultNOAABaseURL = "https://services.swpc.noaa.gov"
	realtimeKpPath     = "/json/planetary_k_index_1m.json"
	forecastKpPath     = "/products/noaa-planetary-k-index-forecast.json"

	// observedFlag marks already-measured rows in the forecast product.
	// Everything else (predicted, estimated) is forecast input.
	observedFlag = "observed"
)

// NOAAClientConfig holds the configuration for creating a NOAAClient.
type NOAAClientConfig struct {
	// BaseURL overrides the NOAA services host; used in tests.
	BaseURL string
	Logger  *slog.Logger
}

// NOAAClient fetches the measured and predicted planetary K-index feeds
// from the NOAA Space Weather Prediction Center.
type NOAAClient struct {
	base    *external.BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewNOAAClient creates a NOAAClient with its own circuit breaker.
func NewNOAAClient(httpClient *http.Client, cfg NOAAClientConfig) *NOAAClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultNOAABaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &NOAAClient{
		base:    external.NewBaseClient(httpClient, "noaa", external.DefaultRetryPolicy(), userAgent),
		baseURL: baseURL,
		logger:  logger,
	}
}

// kpNowRecord is one row of the 1-minute realtime K-index feed. The feed
// serializes kp_index inconsistently (number or string) across products,
// so json.Number absorbs both.
type kpNowRecord struct {
	TimeTag string      `json:"time_tag"`
	KpIndex json.Number `json:"kp_index"`
}

// KpNow fetches the latest measured planetary K-index. The feed's last
// record is the most recent observation; its time tag is UTC.
func (c *NOAAClient) KpNow(ctx context.Context, tz *time.Location) (float64, time.Time, error) {
	var records []kpNowRecord
	if err := c.getJSON(ctx, c.baseURL+realtimeKpPath, &records); err != nil {
		return 0, time.Time{}, err
	}
	if len(records) == 0 {
		return 0, time.Time{}, types.NewAppError(types.ErrCodeUpstreamKp, "realtime kp feed returned no records", nil)
	}

	last := records[len(records)-1]
	kp, err := last.KpIndex.Float64()
	if err != nil {
		return 0, time.Time{}, types.NewAppError(types.ErrCodeUpstreamKp,
			fmt.Sprintf("malformed kp_index %q in realtime feed", last.KpIndex), err)
	}

	observedAt, err := parseNOAATime(last.TimeTag)
	if err != nil {
		return 0, time.Time{}, types.NewAppError(types.ErrCodeUpstreamKp,
			fmt.Sprintf("malformed time_tag %q in realtime feed", last.TimeTag), err)
	}

	return kp, observedAt.In(tz), nil
}

// KpForecast fetches the 3-day predicted K-index product. The product is an
// array of rows [time_tag, kp, observed_flag, noaa_scale] with a header row
// first; only non-observed rows are returned, in feed order (the feed is
// ascending in time and is not re-sorted here).
func (c *NOAAClient) KpForecast(ctx context.Context, tz *time.Location) ([]types.ForecastPoint, error) {
	var rows [][]any
	if err := c.getJSON(ctx, c.baseURL+forecastKpPath, &rows); err != nil {
		return nil, err
	}

	var points []types.ForecastPoint
	for i, row := range rows {
		if i == 0 {
			continue // header row
		}
		if len(row) < 3 {
			return nil, types.NewAppError(types.ErrCodeUpstreamKp,
				fmt.Sprintf("forecast row %d has %d columns, want at least 3", i, len(row)), nil)
		}

		flag, _ := row[2].(string)
		if flag == observedFlag {
			continue
		}

		timeTag, ok := row[0].(string)
		if !ok {
			return nil, types.NewAppError(types.ErrCodeUpstreamKp,
				fmt.Sprintf("forecast row %d has non-string time tag", i), nil)
		}
		at, err := parseNOAATime(timeTag)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamKp,
				fmt.Sprintf("malformed forecast time tag %q", timeTag), err)
		}

		kp, err := anyToFloat(row[1])
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamKp,
				fmt.Sprintf("malformed forecast kp value in row %d", i), err)
		}

		points = append(points, types.ForecastPoint{Kp: kp, At: at.In(tz)})
	}

	return points, nil
}

// getJSON performs a GET through the BaseClient and decodes the body,
// mapping failures to the Kp upstream error code.
func (c *NOAAClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build NOAA request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamKp, "NOAA request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.NewAppError(types.ErrCodeUpstreamKp,
			fmt.Sprintf("NOAA returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamKp, "failed to read NOAA response", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamKp, "malformed NOAA payload", err)
	}
	return nil
}

// parseNOAATime parses the time formats used across NOAA products. Feeds
// omit the zone designator; tags are UTC.
func parseNOAATime(tag string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05",
	} {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, tag); err == nil {
				return t, nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, tag, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized NOAA time tag %q", tag)
}

// anyToFloat coerces the JSON-decoded kp column, which NOAA serializes as
// either a number or a decimal string.
func anyToFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", v)
	}
}
