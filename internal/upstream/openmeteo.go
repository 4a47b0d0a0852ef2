package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"aurorawatch/internal/external"
	"aurorawatch/internal/types"
)

const defaultOpenMeteoBaseURL = "https://api.open-meteo.com"

// OpenMeteoClientConfig holds the configuration for creating an OpenMeteoClient.
type OpenMeteoClientConfig struct {
	BaseURL string
	Logger  *slog.Logger
}

// OpenMeteoClient fetches current cloud cover from the Open-Meteo forecast API.
type OpenMeteoClient struct {
	base    *external.BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewOpenMeteoClient creates an OpenMeteoClient with its own circuit breaker.
func NewOpenMeteoClient(httpClient *http.Client, cfg OpenMeteoClientConfig) *OpenMeteoClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenMeteoBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenMeteoClient{
		base:    external.NewBaseClient(httpClient, "open-meteo", external.DefaultRetryPolicy(), userAgent),
		baseURL: baseURL,
		logger:  logger,
	}
}

// CloudCover returns the current cloud cover percentage at (lat, lon).
func (c *OpenMeteoClient) CloudCover(ctx context.Context, lat, lon float64) (float64, error) {
	q := url.Values{}
	q.Set("latitude", strconvFloat(lat))
	q.Set("longitude", strconvFloat(lon))
	q.Set("current", "cloud_cover")
	reqURL := c.baseURL + "/v1/forecast?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build Open-Meteo request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamWeather, "Open-Meteo request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, types.NewAppError(types.ErrCodeUpstreamWeather,
			fmt.Sprintf("Open-Meteo returned status %d", resp.StatusCode), nil)
	}

	var payload struct {
		Current struct {
			CloudCover *float64 `json:"cloud_cover"`
		} `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamWeather, "malformed Open-Meteo payload", err)
	}
	if payload.Current.CloudCover == nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamWeather, "Open-Meteo payload missing current cloud_cover", nil)
	}

	return *payload.Current.CloudCover, nil
}
