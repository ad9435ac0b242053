package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterMiddleware(t *testing.T) {
	const limit = 100

	app := newTestApplication(t, withRateLimit(limit))
	mux := app.mount()

	for i := range limit {
		rr := executeRequest(httptest.NewRequest(http.MethodGet, "/api/roadtrips", nil), mux)
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i+1)
		assert.Equal(t, strconv.Itoa(limit), rr.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(limit-i-1), rr.Header().Get("X-RateLimit-Remaining"))
	}

	rr := executeRequest(httptest.NewRequest(http.MethodGet, "/api/roadtrips", nil), mux)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	retryAfter, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, retryAfter)
	assert.LessOrEqual(t, retryAfter, 60)

	body := decodeError(t, rr)
	assert.False(t, body.Success)
	assert.Equal(t, http.StatusTooManyRequests, body.Status)
	assert.Equal(t, "Too many requests from this IP, please try again later.", body.Message)
	assert.Equal(t, retryAfter, body.RetryAfter)

	t.Run("other clients are counted separately", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/roadtrips", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		rr := executeRequest(req, mux)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("health is not limited", func(t *testing.T) {
		rr := executeRequest(httptest.NewRequest(http.MethodGet, "/health", nil), mux)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestBasicAuthProtectsOperationalRoutes(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	// produce at least one sample
	executeRequest(httptest.NewRequest(http.MethodGet, "/api/roadtrips", nil), mux)

	t.Run("without credentials", func(t *testing.T) {
		rr := executeRequest(httptest.NewRequest(http.MethodGet, "/metrics", nil), mux)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Basic")
	})

	t.Run("wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.SetBasicAuth("admin", "nope")
		rr := executeRequest(req, mux)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("metrics with credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		req.SetBasicAuth("admin", "admin")
		rr := executeRequest(req, mux)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `roadtrip_http_requests_total{method="GET",path="/api/roadtrips`)
	})

	t.Run("expvar with credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/debug/vars", nil)
		req.SetBasicAuth("admin", "admin")
		rr := executeRequest(req, mux)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "memstats")
	})
}

func TestHealthCheck(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	rr := executeRequest(httptest.NewRequest(http.MethodGet, "/health", nil), mux)
	require.Equal(t, http.StatusOK, rr.Code)

	var body healthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "OK", body.Status)
	assert.Equal(t, "RoadTrip Planner API is running", body.Message)
	assert.Equal(t, version, body.Version)
	assert.False(t, body.Timestamp.IsZero())
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	rr := executeRequest(httptest.NewRequest(http.MethodGet, "/api/nothing-here", nil), mux)
	require.Equal(t, http.StatusNotFound, rr.Code)

	body := decodeError(t, rr)
	assert.False(t, body.Success)
	assert.Equal(t, "Route Not Found", body.Message)
	assert.Equal(t, http.StatusNotFound, body.Status)
}
