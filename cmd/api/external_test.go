package main

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadtrip/internal/external/weather"
)

const weatherBody = `{
  "location": {"name": "Paris", "region": "Ile-de-France", "country": "France"},
  "current": {"temp_c": 18.5, "temp_f": 65.3, "condition": {"text": "Sunny", "icon": "//cdn/sunny.png"},
              "humidity": 40, "wind_kph": 11.2, "feelslike_c": 18, "last_updated": "2026-05-01 09:00"}
}`

func weatherUpstream(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		switch r.URL.Query().Get("q") {
		case "Atlantis":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":1006,"message":"No matching location found."}}`))
		case "Broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte(weatherBody))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCurrentWeatherHandler(t *testing.T) {
	var calls int32
	upstream := weatherUpstream(t, &calls)
	app := newTestApplication(t, withUpstreamURLs(upstream.URL, upstream.URL, upstream.URL))
	mux := app.mount()

	t.Run("served and cached", func(t *testing.T) {
		for range 2 {
			rr := executeRequest(httptest.NewRequest(http.MethodGet, "/api/weather?location=Paris", nil), mux)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

			var got weather.Current
			decodeData(t, rr, &got)
			assert.Equal(t, "Paris", got.Location)
			assert.Equal(t, "Sunny", got.Condition)
			assert.Equal(t, 18.5, got.TempC)
		}
		assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	})

	cases := []struct {
		name    string
		query   string
		code    int
		message string
	}{
		{"missing location", "", http.StatusBadRequest, "Location query parameter is required"},
		{"unknown location", "?location=Atlantis", http.StatusNotFound, "Location not found"},
		{"upstream failure", "?location=Broken", http.StatusInternalServerError, "Failed to fetch weather data"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := executeRequest(httptest.NewRequest(http.MethodGet, "/api/weather"+tc.query, nil), mux)
			require.Equal(t, tc.code, rr.Code, rr.Body.String())

			body := decodeError(t, rr)
			assert.False(t, body.Success)
			assert.Equal(t, tc.message, body.Message)
			assert.Equal(t, tc.code, body.Status)
		})
	}
}

func TestExternalHandlersWithoutKeys(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	cases := []struct {
		name    string
		req     *http.Request
		message string
	}{
		{"weather", httptest.NewRequest(http.MethodGet, "/api/weather?location=Paris", nil), "Weather API key not configured"},
		{"forecast", httptest.NewRequest(http.MethodGet, "/api/weather/forecast?location=Paris", nil), "Weather API key not configured"},
		{"places", httptest.NewRequest(http.MethodGet, "/api/places?location=Paris", nil), "Places API key not configured"},
		{"route", jsonRequest(t, http.MethodPost, "/api/route", "", map[string]string{
			"startLocationName": "Paris", "endLocationName": "Lyon",
		}), "Route API key not configured"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := executeRequest(tc.req, mux)
			require.Equal(t, http.StatusInternalServerError, rr.Code, rr.Body.String())
			assert.Equal(t, tc.message, decodeError(t, rr).Message)
		})
	}
}

func TestExternalHandlerInputErrors(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	cases := []struct {
		name    string
		req     *http.Request
		message string
	}{
		{"forecast days not a number", httptest.NewRequest(http.MethodGet, "/api/weather/forecast?location=Paris&days=abc", nil), "Days must be a positive number"},
		{"forecast negative days", httptest.NewRequest(http.MethodGet, "/api/weather/forecast?location=Paris&days=-2", nil), "Days must be a positive number"},
		{"forecast too many days", httptest.NewRequest(http.MethodGet, "/api/weather/forecast?location=Paris&days=30", nil), "Forecast limited to 7 days"},
		{"places radius", httptest.NewRequest(http.MethodGet, "/api/places?location=Paris&radius=far", nil), "Radius must be a number"},
		{"places limit", httptest.NewRequest(http.MethodGet, "/api/places?location=Paris&limit=many", nil), "Limit must be a number"},
		{"places missing location", httptest.NewRequest(http.MethodGet, "/api/places", nil), "Location is required"},
		{"route missing end", jsonRequest(t, http.MethodPost, "/api/route", "", map[string]string{"startLocationName": "Paris"}), "Start and end location names are required"},
		{"route same ends", jsonRequest(t, http.MethodPost, "/api/route", "", map[string]string{
			"startLocationName": "Paris", "endLocationName": "paris",
		}), "Start and end locations cannot be the same"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := executeRequest(tc.req, mux)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, tc.message, decodeError(t, rr).Message)
		})
	}
}
