package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var torontoOffset = time.FixedZone("EDT", -4*3600)

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNOAAKpNowTakesLastRecord(t *testing.T) {
	srv := jsonServer(t, `[
		{"time_tag":"2025-06-20T00:00:00","kp_index":2.33},
		{"time_tag":"2025-06-20T00:01:00","kp_index":2.67},
		{"time_tag":"2025-06-20T00:02:00","kp_index":6.33}
	]`)

	c := NewNOAAClient(srv.Client(), NOAAClientConfig{BaseURL: srv.URL})
	kp, at, err := c.KpNow(context.Background(), torontoOffset)
	require.NoError(t, err)
	assert.Equal(t, 6.33, kp)
	// 00:02 UTC converts to 20:02 the previous evening at UTC-4.
	assert.Equal(t, "2025-06-19T20:02:00-04:00", at.Format(time.RFC3339))
}

func TestNOAAKpNowStringIndex(t *testing.T) {
	srv := jsonServer(t, `[{"time_tag":"2025-06-20 12:00:00.000","kp_index":"4.67"}]`)

	c := NewNOAAClient(srv.Client(), NOAAClientConfig{BaseURL: srv.URL})
	kp, _, err := c.KpNow(context.Background(), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 4.67, kp)
}

func TestNOAAKpNowEmptyFeed(t *testing.T) {
	srv := jsonServer(t, `[]`)

	c := NewNOAAClient(srv.Client(), NOAAClientConfig{BaseURL: srv.URL})
	_, _, err := c.KpNow(context.Background(), time.UTC)
	assert.Error(t, err)
}

func TestNOAAKpForecastFiltersObserved(t *testing.T) {
	srv := jsonServer(t, `[
		["time_tag","kp","observed","noaa_scale"],
		["2025-06-19 21:00:00","4.33","observed",null],
		["2025-06-20 00:00:00","3.67","estimated",null],
		["2025-06-20 03:00:00","6.00","predicted",null],
		["2025-06-20 06:00:00","7.33","predicted","G3"]
	]`)

	c := NewNOAAClient(srv.Client(), NOAAClientConfig{BaseURL: srv.URL})
	points, err := c.KpForecast(context.Background(), time.UTC)
	require.NoError(t, err)
	require.Len(t, points, 3, "observed rows and the header must be dropped")

	assert.Equal(t, 3.67, points[0].Kp)
	assert.Equal(t, 6.00, points[1].Kp)
	assert.Equal(t, 7.33, points[2].Kp)
	assert.Equal(t, "2025-06-20T03:00:00Z", points[1].At.Format(time.RFC3339))
	assert.True(t, points[0].At.Before(points[1].At), "feed order is preserved")
}

func TestNOAAKpForecastZoneConversion(t *testing.T) {
	srv := jsonServer(t, `[
		["time_tag","kp","observed","noaa_scale"],
		["2025-06-20 06:00:00","6.00","predicted",null]
	]`)

	c := NewNOAAClient(srv.Client(), NOAAClientConfig{BaseURL: srv.URL})
	points, err := c.KpForecast(context.Background(), torontoOffset)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "2025-06-20T02:00:00-04:00", points[0].At.Format(time.RFC3339))
}

func TestOpenMeteoCloudCover(t *testing.T) {
	srv := jsonServer(t, `{"current":{"time":"2025-06-20T00:00","cloud_cover":38}}`)

	c := NewOpenMeteoClient(srv.Client(), OpenMeteoClientConfig{BaseURL: srv.URL})
	cloud, err := c.CloudCover(context.Background(), 42.3149, -83.0364)
	require.NoError(t, err)
	assert.Equal(t, 38.0, cloud)
}

func TestOpenMeteoMissingField(t *testing.T) {
	srv := jsonServer(t, `{"current":{"time":"2025-06-20T00:00"}}`)

	c := NewOpenMeteoClient(srv.Client(), OpenMeteoClientConfig{BaseURL: srv.URL})
	_, err := c.CloudCover(context.Background(), 42.3149, -83.0364)
	assert.Error(t, err)
}

func TestSunriseSunsetTimes(t *testing.T) {
	srv := jsonServer(t, `{
		"results":{"sunrise":"2025-06-20T09:56:02+00:00","sunset":"2025-06-21T01:14:31+00:00"},
		"status":"OK"
	}`)

	c := NewSunriseSunsetClient(srv.Client(), SunriseSunsetClientConfig{BaseURL: srv.URL})
	date := time.Date(2025, time.June, 20, 1, 0, 0, 0, torontoOffset)
	sunrise, sunset, err := c.SunTimes(context.Background(), 42.3149, -83.0364, date)
	require.NoError(t, err)

	assert.Equal(t, "2025-06-20T05:56:02-04:00", sunrise.Format(time.RFC3339))
	assert.Equal(t, "2025-06-20T21:14:31-04:00", sunset.Format(time.RFC3339))
	assert.True(t, sunrise.Before(sunset))
}

func TestSunriseSunsetBadStatus(t *testing.T) {
	srv := jsonServer(t, `{"results":{},"status":"INVALID_REQUEST"}`)

	c := NewSunriseSunsetClient(srv.Client(), SunriseSunsetClientConfig{BaseURL: srv.URL})
	_, _, err := c.SunTimes(context.Background(), 0, 0, time.Now())
	assert.Error(t, err)
}

func TestFarmSenseIllumination(t *testing.T) {
	cases := []struct {
		name string
		body string
		want float64
	}{
		{"numeric fraction", `[{"Illumination":0.55}]`, 55.0},
		{"numeric percent", `[{"Illumination":55.0}]`, 55.0},
		{"string percent", `[{"Illumination":"55.0"}]`, 55.0},
		{"full moon fraction", `[{"Illumination":1}]`, 100.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := jsonServer(t, tc.body)
			c := NewFarmSenseClient(srv.Client(), FarmSenseClientConfig{BaseURL: srv.URL})
			got, err := c.MoonIllumination(context.Background(), time.Now())
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestFarmSenseEmptyResult(t *testing.T) {
	srv := jsonServer(t, `[]`)
	c := NewFarmSenseClient(srv.Client(), FarmSenseClientConfig{BaseURL: srv.URL})
	_, err := c.MoonIllumination(context.Background(), time.Now())
	assert.Error(t, err)
}
