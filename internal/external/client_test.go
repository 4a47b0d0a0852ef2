package external

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurorawatch/internal/types"
)

func newTestClient(t *testing.T, name string) (*BaseClient, *[]time.Duration) {
	t.Helper()
	var sleeps []time.Duration
	bc := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		name,
		RetryPolicy{MaxRetries: 2, MinWait: time.Millisecond, MaxWait: 10 * time.Millisecond},
		"aurorawatch-test/1.0",
		WithSleepFunc(func(d time.Duration) { sleeps = append(sleeps, d) }),
	)
	return bc, &sleeps
}

func TestBaseClientSuccessPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "aurorawatch-test/1.0", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bc, _ := newTestClient(t, "success")
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := bc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBaseClientRetriesServerErrors(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bc, sleeps := newTestClient(t, "retry-5xx")
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := bc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 3, hits)
	assert.Len(t, *sleeps, 2)
}

func TestBaseClientMapsExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	bc, _ := newTestClient(t, "exhausted")
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := bc.Do(req)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, appErr.Code)
}

func TestBaseClientMapsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	bc, sleeps := newTestClient(t, "ratelimit")
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := bc.Do(req)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamRateLimited, appErr.Code)

	// Retry-After is honored, clamped to MaxWait.
	for _, d := range *sleeps {
		assert.LessOrEqual(t, d, 10*time.Millisecond)
	}
}

func TestBaseClientDoesNotRetryClientErrors(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	bc, _ := newTestClient(t, "no-retry-4xx")
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := bc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, hits)
}
