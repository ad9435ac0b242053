package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadtrip/internal/cache"
	"roadtrip/internal/external"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

const currentBody = `{
  "location": {"name": "Paris", "region": "Ile-de-France", "country": "France"},
  "current": {"temp_c": 18.5, "temp_f": 65.3, "condition": {"text": "Sunny", "icon": "//cdn/sunny.png"},
              "humidity": 40, "wind_kph": 11.2, "feelslike_c": 18, "last_updated": "2026-05-01 09:00"}
}`

func newUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestCurrentIsCachedForTenMinutes(t *testing.T) {
	var calls int32
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/current.json", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.Equal(t, "Paris", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(currentBody))
	})

	c := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	svc := New(Config{APIKey: "test-key", BaseURL: srv.URL}, cache.NewMemory().WithClock(c.Now))
	ctx := context.Background()

	got, err := svc.Current(ctx, "Paris")
	require.NoError(t, err)
	assert.Equal(t, Current{
		Location: "Paris", Region: "Ile-de-France", Country: "France",
		TempC: 18.5, TempF: 65.3, Condition: "Sunny", Icon: "//cdn/sunny.png",
		Humidity: 40, WindKph: 11.2, FeelsLikeC: 18, LastUpdated: "2026-05-01 09:00",
	}, got)

	c.Advance(5 * time.Minute)
	_, err = svc.Current(ctx, "  paris ")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	c.Advance(5 * time.Minute)
	_, err = svc.Current(ctx, "Paris")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCurrentErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing location", func(t *testing.T) {
		svc := New(Config{APIKey: "k"}, cache.NewMemory())
		_, err := svc.Current(ctx, " ")
		assert.ErrorIs(t, err, external.ErrInvalidInput)
	})

	t.Run("missing key", func(t *testing.T) {
		svc := New(Config{}, cache.NewMemory())
		_, err := svc.Current(ctx, "Paris")
		assert.ErrorIs(t, err, external.ErrNotConfigured)
		assert.Equal(t, "Weather API key not configured", external.Message(err, ""))
	})

	t.Run("unknown location", func(t *testing.T) {
		srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":1006,"message":"No matching location found."}}`))
		})
		svc := New(Config{APIKey: "k", BaseURL: srv.URL}, cache.NewMemory())
		_, err := svc.Current(ctx, "Nowhere")
		assert.ErrorIs(t, err, external.ErrNotFound)
		assert.Equal(t, "Location not found", external.Message(err, ""))
	})

	t.Run("upstream failure is not cached", func(t *testing.T) {
		var calls int32
		srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(currentBody))
		})
		svc := New(Config{APIKey: "k", BaseURL: srv.URL}, cache.NewMemory())

		_, err := svc.Current(ctx, "Paris")
		assert.ErrorIs(t, err, external.ErrUpstream)

		got, err := svc.Current(ctx, "Paris")
		require.NoError(t, err)
		assert.Equal(t, "Paris", got.Location)
	})
}

func TestCurrentTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	svc := New(Config{APIKey: "k", BaseURL: srv.URL}, cache.NewMemory())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.Current(ctx, "Paris")
	assert.ErrorIs(t, err, external.ErrUpstreamTimeout)
	assert.Equal(t, "Weather service timeout", external.Message(err, ""))
}

func TestForecast(t *testing.T) {
	srv := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast.json", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("days"))
		_, _ = w.Write([]byte(`{
		  "location": {"name": "Paris"},
		  "current": {"temp_c": 18.5, "condition": {"text": "Sunny"}},
		  "forecast": {"forecastday": [
		    {"date": "2026-05-01", "day": {"maxtemp_c": 21, "mintemp_c": 11, "condition": {"text": "Sunny"}, "daily_chance_of_rain": 10}},
		    {"date": "2026-05-02", "day": {"maxtemp_c": 19, "mintemp_c": 10, "condition": {"text": "Rain"}, "daily_chance_of_rain": 80}}
		  ]}
		}`))
	})
	svc := New(Config{APIKey: "k", BaseURL: srv.URL}, cache.NewMemory())

	got, err := svc.Forecast(context.Background(), "Paris", 0)
	require.NoError(t, err)
	assert.Equal(t, "Paris", got.Location)
	require.Len(t, got.Forecast, 2)
	assert.Equal(t, 80, got.Forecast[1].Day.ChanceOfRain)
	assert.Equal(t, "Rain", got.Forecast[1].Day.Condition.Text)

	_, err = svc.Forecast(context.Background(), "Paris", 8)
	assert.ErrorIs(t, err, external.ErrInvalidInput)
	assert.Equal(t, "Forecast limited to 7 days", external.Message(err, ""))
}
