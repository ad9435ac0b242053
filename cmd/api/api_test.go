package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"roadtrip/internal/auth"
	"roadtrip/internal/cache"
	"roadtrip/internal/domain/users"
	"roadtrip/internal/events"
	"roadtrip/internal/external/places"
	"roadtrip/internal/external/routing"
	"roadtrip/internal/external/weather"
	"roadtrip/internal/imagestore"
	"roadtrip/internal/mailer"
	"roadtrip/internal/ratelimiter"
)

func TestMain(m *testing.M) {
	users.HashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type testOption func(*application)

func withUpstreamURLs(weatherURL, placesURL, routeURL string) testOption {
	return func(app *application) {
		store := cache.NewMemory()
		app.weather = weather.New(weather.Config{APIKey: "test-key", BaseURL: weatherURL}, store)
		app.places = places.New(places.Config{APIKey: "test-key", BaseURL: placesURL}, store)
		app.routes = routing.New(routing.Config{APIKey: "test-key", BaseURL: routeURL}, store)
		app.instrument()
	}
}

func withRateLimit(limit int) testOption {
	return func(app *application) {
		app.config.rateLimiter = ratelimiter.Config{RequestsPerTimeFrame: limit, TimeFrame: time.Minute, Enabled: true}
		app.rateLimiter = ratelimiter.NewFixedWindowLimiter(limit, time.Minute)
	}
}

func newTestApplication(t *testing.T, opts ...testOption) *application {
	t.Helper()

	store := cache.NewMemory()
	app := &application{
		config: config{
			env:         "test",
			apiURL:      "localhost:5000",
			frontendURL: "http://localhost:3000",
			auth: authConfig{
				basic: basicConfig{user: "admin", pass: "admin"},
				token: tokenConfig{secret: "test-secret", exp: time.Hour, iss: "roadtrip"},
			},
		},
		store:         newMemoryContainer(),
		logger:        zap.NewNop().Sugar(),
		images:        imagestore.Disabled{},
		mailer:        mailer.Noop{},
		events:        events.Noop{},
		authenticator: auth.NewJWTAuthenticator("test-secret", "roadtrip", "roadtrip", time.Hour),
		weather:       weather.New(weather.Config{}, store),
		places:        places.New(places.Config{}, store),
		routes:        routing.New(routing.Config{}, store),
		metrics:       newMetrics(),
	}
	app.instrument()

	for _, opt := range opts {
		opt(app)
	}
	t.Cleanup(app.wg.Wait)
	return app
}

func executeRequest(req *http.Request, mux http.Handler) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func jsonRequest(t *testing.T, method, path, token string, body any) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// decodeData unwraps the {"data": ...} envelope of a success response.
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env), rr.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

type errorBody struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Status     int    `json:"status"`
	RetryAfter int    `json:"retryAfter"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var body errorBody
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body), rr.Body.String())
	return body
}

// register creates an account through the API and returns its token and ID.
func register(t *testing.T, mux http.Handler, name, username, email string) (token, id string) {
	t.Helper()

	rr := executeRequest(jsonRequest(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     name,
		"username": username,
		"email":    email,
		"password": "secret1",
	}), mux)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp AuthResponse
	decodeData(t, rr, &resp)
	return resp.Token, resp.User.ID
}

func createTrip(t *testing.T, mux http.Handler, token string, body map[string]any) string {
	t.Helper()

	rr := executeRequest(jsonRequest(t, http.MethodPost, "/api/roadtrips", token, body), mux)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var trip struct {
		ID string `json:"id"`
	}
	decodeData(t, rr, &trip)
	return trip.ID
}

func pacificCoast() map[string]any {
	return map[string]any{
		"title":       "Pacific Coast",
		"description": "A scenic week along the coast",
		"route": []map[string]any{
			{"locationName": "SF"},
			{"locationName": "LA"},
		},
	}
}
