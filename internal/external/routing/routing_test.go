package routing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadtrip/internal/cache"
	"roadtrip/internal/external"
)

// "_p~iF~ps|U_ulLnnqC_mqNvxq`@" is the reference polyline from the format docs.
const samplePolyline = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"

func newORS(t *testing.T, geometry string) *httptest.Server {
	t.Helper()
	coords := map[string][]float64{
		"San Francisco": {-122.42, 37.77},
		"Los Angeles":   {-118.24, 34.05},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/geocode/search", func(w http.ResponseWriter, r *http.Request) {
		c, ok := coords[r.URL.Query().Get("text")]
		if !ok {
			_, _ = w.Write([]byte(`{"features":[]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"features": []any{map[string]any{"geometry": map[string]any{"coordinates": c}}},
		})
	})
	mux.HandleFunc("/v2/directions/driving-car", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "ors-key", r.Header.Get("Authorization"))

		var body directionsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, [][]float64{{-122.42, 37.77}, {-118.24, 34.05}}, body.Coordinates)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"routes": []any{map[string]any{
				"summary":  map[string]any{"distance": 615432.0, "duration": 21060.0},
				"geometry": geometry,
				"segments": []any{map[string]any{"steps": []any{
					map[string]any{"instruction": "Head south", "distance": 1234.0, "duration": 95.0},
				}}},
			}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRoute(t *testing.T) {
	srv := newORS(t, samplePolyline)
	svc := New(Config{APIKey: "ors-key", BaseURL: srv.URL}, cache.NewMemory())

	got, err := svc.Route(context.Background(), "San Francisco", "Los Angeles", "")
	require.NoError(t, err)

	assert.Equal(t, 615.43, got.Distance)
	assert.Equal(t, 5.85, got.Duration)
	assert.Equal(t, DefaultProfile, got.Profile)
	assert.Equal(t, []Instruction{{Instruction: "Head south", Distance: 1.23, Duration: 1.6}}, got.Instructions)
	assert.Equal(t, Endpoint{Name: "San Francisco", Coordinates: []float64{-122.42, 37.77}}, got.StartLocation)

	require.Len(t, got.Polyline, 3)
	assert.InDelta(t, 38.5, got.Polyline[0][0], 1e-6)
	assert.InDelta(t, -120.2, got.Polyline[0][1], 1e-6)
}

func TestRouteFallsBackToStraightLine(t *testing.T) {
	srv := newORS(t, "\x7f\x7f")
	svc := New(Config{APIKey: "ors-key", BaseURL: srv.URL}, cache.NewMemory())

	got, err := svc.Route(context.Background(), "San Francisco", "Los Angeles", "driving-car")
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{37.77, -122.42}, {34.05, -118.24}}, got.Polyline)
}

func TestRouteErrors(t *testing.T) {
	srv := newORS(t, samplePolyline)
	svc := New(Config{APIKey: "ors-key", BaseURL: srv.URL}, cache.NewMemory())
	ctx := context.Background()

	tests := []struct {
		name       string
		start, end string
		profile    string
		kind       error
		message    string
	}{
		{"missing end", "San Francisco", " ", "", external.ErrInvalidInput, "Start and end location names are required"},
		{"same place", "Paris", " paris", "", external.ErrInvalidInput, "Start and end locations cannot be the same"},
		{"bad profile", "San Francisco", "Los Angeles", "teleport", external.ErrInvalidInput, "Unsupported route profile: teleport"},
		{"unknown place", "San Francisco", "Atlantis", "", external.ErrNotFound, "Could not find coordinates for Atlantis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Route(ctx, tt.start, tt.end, tt.profile)
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.message, external.Message(err, ""))
		})
	}

	_, err := New(Config{}, cache.NewMemory()).Route(ctx, "A", "B", "")
	assert.ErrorIs(t, err, external.ErrNotConfigured)
}
