package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"aurorawatch/internal/external"
	"aurorawatch/internal/types"
)

const defaultFarmSenseBaseURL = "https://api.farmsense.net"

// FarmSenseClientConfig holds the configuration for creating a FarmSenseClient.
type FarmSenseClientConfig struct {
	BaseURL string
	Logger  *slog.Logger
}

// FarmSenseClient fetches lunar illumination from the FarmSense moonphases API.
type FarmSenseClient struct {
	base    *external.BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewFarmSenseClient creates a FarmSenseClient with its own circuit breaker.
func NewFarmSenseClient(httpClient *http.Client, cfg FarmSenseClientConfig) *FarmSenseClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultFarmSenseBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FarmSenseClient{
		base:    external.NewBaseClient(httpClient, "farmsense", external.DefaultRetryPolicy(), userAgent),
		baseURL: baseURL,
		logger:  logger,
	}
}

// MoonIllumination returns the lunar illumination percentage for the given
// date. The API is keyed by unix timestamp and answers with a single-element
// array; the Illumination field arrives as either a number or a string
// depending on API version, so both are accepted.
func (c *FarmSenseClient) MoonIllumination(ctx context.Context, date time.Time) (float64, error) {
	reqURL := fmt.Sprintf("%s/v1/moonphases/?d=%d", c.baseURL, date.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build FarmSense request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamMoon, "FarmSense request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, types.NewAppError(types.ErrCodeUpstreamMoon,
			fmt.Sprintf("FarmSense returned status %d", resp.StatusCode), nil)
	}

	var payload []struct {
		Illumination any `json:"Illumination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamMoon, "malformed FarmSense payload", err)
	}
	if len(payload) == 0 {
		return 0, types.NewAppError(types.ErrCodeUpstreamMoon, "FarmSense returned an empty result", nil)
	}

	pct, err := illuminationToPct(payload[0].Illumination)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamMoon, "malformed FarmSense illumination value", err)
	}
	return pct, nil
}

// illuminationToPct coerces the Illumination field. Values at or below 1 are
// fractions and are scaled to a percentage; larger values are already
// percentages.
func illuminationToPct(v any) (float64, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		parsed, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported illumination type %T", v)
	}

	if f <= 1 {
		f *= 100
	}
	if f < 0 {
		f = 0
	}
	if f > 100 {
		f = 100
	}
	return f, nil
}
