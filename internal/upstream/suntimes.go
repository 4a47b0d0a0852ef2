package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"aurorawatch/internal/external"
	"aurorawatch/internal/types"
)

const defaultSunriseSunsetBaseURL = "https://api.sunrise-sunset.org"

// userAgent identifies the pipeline to the public data APIs.
const userAgent = "aurorawatch/1.0"

// SunriseSunsetClientConfig holds the configuration for creating a
// SunriseSunsetClient.
type SunriseSunsetClientConfig struct {
	BaseURL string
	Logger  *slog.Logger
}

// SunriseSunsetClient fetches sunrise/sunset instants from sunrise-sunset.org.
type SunriseSunsetClient struct {
	base    *external.BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewSunriseSunsetClient creates a SunriseSunsetClient with its own circuit breaker.
func NewSunriseSunsetClient(httpClient *http.Client, cfg SunriseSunsetClientConfig) *SunriseSunsetClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultSunriseSunsetBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SunriseSunsetClient{
		base:    external.NewBaseClient(httpClient, "sunrise-sunset", external.DefaultRetryPolicy(), userAgent),
		baseURL: baseURL,
		logger:  logger,
	}
}

// SunTimes returns the sunrise and sunset instants for the civil date of
// `date` at (lat, lon), converted to date's timezone. The API is queried
// with formatted=0 so it returns RFC 3339 timestamps in UTC.
func (c *SunriseSunsetClient) SunTimes(ctx context.Context, lat, lon float64, date time.Time) (time.Time, time.Time, error) {
	q := url.Values{}
	q.Set("lat", strconvFloat(lat))
	q.Set("lng", strconvFloat(lon))
	q.Set("date", date.Format(types.DayFormat))
	q.Set("formatted", "0")
	reqURL := c.baseURL + "/json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return time.Time{}, time.Time{}, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build sunrise-sunset request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return time.Time{}, time.Time{}, types.NewAppError(types.ErrCodeUpstreamSun, "sunrise-sunset request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, time.Time{}, types.NewAppError(types.ErrCodeUpstreamSun,
			fmt.Sprintf("sunrise-sunset returned status %d", resp.StatusCode), nil)
	}

	var payload struct {
		Results struct {
			Sunrise string `json:"sunrise"`
			Sunset  string `json:"sunset"`
		} `json:"results"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return time.Time{}, time.Time{}, types.NewAppError(types.ErrCodeUpstreamSun, "malformed sunrise-sunset payload", err)
	}
	if payload.Status != "OK" {
		return time.Time{}, time.Time{}, types.NewAppError(types.ErrCodeUpstreamSun,
			fmt.Sprintf("sunrise-sunset returned status %q", payload.Status), nil)
	}

	sunrise, err := time.Parse(time.RFC3339, payload.Results.Sunrise)
	if err != nil {
		return time.Time{}, time.Time{}, types.NewAppError(types.ErrCodeUpstreamSun,
			fmt.Sprintf("malformed sunrise %q", payload.Results.Sunrise), err)
	}
	sunset, err := time.Parse(time.RFC3339, payload.Results.Sunset)
	if err != nil {
		return time.Time{}, time.Time{}, types.NewAppError(types.ErrCodeUpstreamSun,
			fmt.Sprintf("malformed sunset %q", payload.Results.Sunset), err)
	}

	tz := date.Location()
	return sunrise.In(tz), sunset.In(tz), nil
}

// strconvFloat renders coordinates without exponent notation for query strings.
func strconvFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
