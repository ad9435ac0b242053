// Package routing computes driving, cycling and walking routes between two
// place names with openrouteservice.
package routing

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/twpayne/go-polyline"
	"golang.org/x/sync/errgroup"

	"roadtrip/internal/cache"
	"roadtrip/internal/external"
)

const (
	DefaultBaseURL = "https://api.openrouteservice.org"
	CacheTTL       = 60 * time.Minute
	Timeout        = 10 * time.Second
	GeocodeTimeout = 5 * time.Second
	DefaultProfile = "driving-car"
)

var Profiles = []string{
	"driving-car", "driving-hgv",
	"cycling-regular", "cycling-road", "cycling-mountain", "cycling-electric",
	"foot-walking", "foot-hiking", "wheelchair",
}

type Endpoint struct {
	Name        string    `json:"name"`
	Coordinates []float64 `json:"coordinates"`
}

type Instruction struct {
	Instruction string  `json:"instruction"`
	Distance    float64 `json:"distance"`
	Duration    float64 `json:"duration"`
}

type Route struct {
	Distance      float64       `json:"distance"`
	Duration      float64       `json:"duration"`
	Polyline      [][]float64   `json:"polyline"`
	Instructions  []Instruction `json:"instructions"`
	StartLocation Endpoint      `json:"startLocation"`
	EndLocation   Endpoint      `json:"endLocation"`
	Profile       string        `json:"profile"`
}

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

type directionsRequest struct {
	Coordinates  [][]float64 `json:"coordinates"`
	Format       string      `json:"format"`
	Instructions bool        `json:"instructions"`
	Geometry     bool        `json:"geometry"`
}

type directionsResponse struct {
	Routes []struct {
		Summary struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"summary"`
		Geometry string `json:"geometry"`
		Segments []struct {
			Steps []struct {
				Instruction string  `json:"instruction"`
				Distance    float64 `json:"distance"`
				Duration    float64 `json:"duration"`
			} `json:"steps"`
		} `json:"segments"`
	} `json:"routes"`
}

type Config struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

type Service struct {
	apiKey     string
	baseURL    string
	client     *external.Client
	geocodeCli *external.Client
	loader     *cache.Loader
}

func New(cfg Config, store cache.Store) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Service{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		client:     external.NewClient(cfg.HTTP, "Route service", Timeout),
		geocodeCli: external.NewClient(cfg.HTTP, "Route service", GeocodeTimeout),
		loader:     cache.NewLoader("route", store, CacheTTL),
	}
}

func (s *Service) Clients() []*external.Client { return []*external.Client{s.client, s.geocodeCli} }
func (s *Service) Loader() *cache.Loader        { return s.loader }

// Route resolves start and end concurrently and asks for directions between
// them. An empty profile selects DefaultProfile.
func (s *Service) Route(ctx context.Context, start, end, profile string) (Route, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" || end == "" {
		return Route{}, external.InvalidInput("Start and end location names are required")
	}
	if strings.EqualFold(start, end) {
		return Route{}, external.InvalidInput("Start and end locations cannot be the same")
	}
	if profile = strings.TrimSpace(profile); profile == "" {
		profile = DefaultProfile
	}
	if !slices.Contains(Profiles, profile) {
		return Route{}, external.InvalidInput("Unsupported route profile: " + profile)
	}
	if s.apiKey == "" {
		return Route{}, external.NotConfigured("Route API key not configured")
	}

	key := cache.NormalizeKey(start, end, profile)
	return cache.Load(ctx, s.loader, key, func(ctx context.Context) (Route, error) {
		return s.fetch(ctx, start, end, profile)
	})
}

func (s *Service) fetch(ctx context.Context, start, end, profile string) (Route, error) {
	var startCoords, endCoords []float64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		startCoords, err = s.geocode(gctx, start)
		return err
	})
	g.Go(func() (err error) {
		endCoords, err = s.geocode(gctx, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return Route{}, err
	}

	var resp directionsResponse
	err := s.client.PostJSON(ctx, s.baseURL+"/v2/directions/"+profile,
		http.Header{"Authorization": {s.apiKey}},
		directionsRequest{
			Coordinates:  [][]float64{startCoords, endCoords},
			Format:       "json",
			Instructions: true,
			Geometry:     true,
		},
		&resp,
	)
	if err != nil {
		return Route{}, external.Wrap(err, "Error fetching route data")
	}
	if len(resp.Routes) == 0 {
		return Route{}, external.NotFound("Route could not be calculated between these points.")
	}

	r := resp.Routes[0]
	out := Route{
		Distance:      round(r.Summary.Distance/1000, 2),
		Duration:      round(r.Summary.Duration/3600, 2),
		Polyline:      decodePath(r.Geometry, startCoords, endCoords),
		Instructions:  []Instruction{},
		StartLocation: Endpoint{Name: start, Coordinates: startCoords},
		EndLocation:   Endpoint{Name: end, Coordinates: endCoords},
		Profile:       profile,
	}
	if len(r.Segments) > 0 {
		for _, step := range r.Segments[0].Steps {
			out.Instructions = append(out.Instructions, Instruction{
				Instruction: step.Instruction,
				Distance:    round(step.Distance/1000, 2),
				Duration:    round(step.Duration/60, 1),
			})
		}
	}
	return out, nil
}

// geocode returns [lon, lat] of the best match for name.
func (s *Service) geocode(ctx context.Context, name string) ([]float64, error) {
	var resp geocodeResponse
	err := s.geocodeCli.GetJSON(ctx, s.baseURL+"/geocode/search", url.Values{
		"api_key": {s.apiKey},
		"text":    {name},
		"size":    {"1"},
	}, &resp)
	if err != nil {
		return nil, external.Wrap(err, "Error fetching route data")
	}
	if len(resp.Features) == 0 || len(resp.Features[0].Geometry.Coordinates) < 2 {
		return nil, external.NotFound("Could not find coordinates for " + name)
	}
	return resp.Features[0].Geometry.Coordinates[:2], nil
}

// decodePath decodes an encoded polyline into [lat, lon] pairs. A geometry
// that fails to decode yields the straight line between the endpoints.
func decodePath(geometry string, start, end []float64) [][]float64 {
	fallback := [][]float64{{start[1], start[0]}, {end[1], end[0]}}
	if geometry == "" {
		return fallback
	}
	coords, rest, err := polyline.DecodeCoords([]byte(geometry))
	if err != nil || len(rest) > 0 || len(coords) == 0 {
		return fallback
	}
	return coords
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
