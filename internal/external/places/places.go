// Package places finds attractions, restaurants and lodging around a named
// location using the Geoapify geocoding and places APIs.
package places

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"roadtrip/internal/cache"
	"roadtrip/internal/external"
)

const (
	DefaultBaseURL = "https://api.geoapify.com"
	CacheTTL       = 30 * time.Minute
	Timeout        = 5 * time.Second

	DefaultRadius = 5000
	MaxRadius     = 50000
	DefaultLimit  = 6
	MaxLimit      = 20

	categories = "tourism.attraction,entertainment,catering.restaurant,accommodation"
)

type Place struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	Category     string    `json:"category"`
	Coordinates  []float64 `json:"coordinates"`
	Distance     float64   `json:"distance"`
	Rating       *float64  `json:"rating,omitempty"`
	OpeningHours string    `json:"opening_hours,omitempty"`
}

type Result struct {
	Location    string    `json:"location"`
	Coordinates []float64 `json:"coordinates"`
	Places      []Place   `json:"places"`
}

type geocodeResponse struct {
	Features []struct {
		Properties struct {
			Lon       float64 `json:"lon"`
			Lat       float64 `json:"lat"`
			Formatted string  `json:"formatted"`
		} `json:"properties"`
	} `json:"features"`
}

type placesResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			PlaceID      string   `json:"place_id"`
			Name         string   `json:"name"`
			AddressLine1 string   `json:"address_line1"`
			AddressLine2 string   `json:"address_line2"`
			Categories   []string `json:"categories"`
			Distance     float64  `json:"distance"`
			Rating       *float64 `json:"rating"`
			OpeningHours string   `json:"opening_hours"`
		} `json:"properties"`
	} `json:"features"`
}

type Config struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

type Service struct {
	apiKey  string
	baseURL string
	client  *external.Client
	loader  *cache.Loader
}

func New(cfg Config, store cache.Store) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Service{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  external.NewClient(cfg.HTTP, "Places service", Timeout),
		loader:  cache.NewLoader("places", store, CacheTTL),
	}
}

func (s *Service) Client() *external.Client { return s.client }
func (s *Service) Loader() *cache.Loader    { return s.loader }

// Nearby geocodes location and lists named places within radius meters of it.
// Zero radius or limit select the defaults.
func (s *Service) Nearby(ctx context.Context, location string, radius, limit int) (Result, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return Result{}, external.InvalidInput("Location is required")
	}
	switch {
	case radius == 0:
		radius = DefaultRadius
	case radius < 0 || radius > MaxRadius:
		return Result{}, external.InvalidInput(fmt.Sprintf("Radius must be between 1 and %d meters", MaxRadius))
	}
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 0 || limit > MaxLimit:
		return Result{}, external.InvalidInput(fmt.Sprintf("Limit must be between 1 and %d", MaxLimit))
	}
	if s.apiKey == "" {
		return Result{}, external.NotConfigured("Places API key not configured")
	}

	key := cache.NormalizeKey(location, strconv.Itoa(radius), strconv.Itoa(limit))
	return cache.Load(ctx, s.loader, key, func(ctx context.Context) (Result, error) {
		return s.fetch(ctx, location, radius, limit)
	})
}

func (s *Service) fetch(ctx context.Context, location string, radius, limit int) (Result, error) {
	var geo geocodeResponse
	err := s.client.GetJSON(ctx, s.baseURL+"/v1/geocode/search", url.Values{
		"text":   {location},
		"limit":  {"1"},
		"apiKey": {s.apiKey},
	}, &geo)
	if err != nil {
		return Result{}, external.Wrap(err, "Error fetching nearby places")
	}
	if len(geo.Features) == 0 {
		return Result{}, external.NotFound("Could not find location: " + location)
	}

	origin := geo.Features[0].Properties
	lon := strconv.FormatFloat(origin.Lon, 'f', -1, 64)
	lat := strconv.FormatFloat(origin.Lat, 'f', -1, 64)

	var found placesResponse
	err = s.client.GetJSON(ctx, s.baseURL+"/v2/places", url.Values{
		"categories": {categories},
		"filter":     {fmt.Sprintf("circle:%s,%s,%d", lon, lat, radius)},
		"bias":       {fmt.Sprintf("proximity:%s,%s", lon, lat)},
		"limit":      {strconv.Itoa(limit)},
		"apiKey":     {s.apiKey},
	}, &found)
	if err != nil {
		return Result{}, external.Wrap(err, "Error fetching nearby places")
	}

	result := Result{
		Location:    origin.Formatted,
		Coordinates: []float64{origin.Lon, origin.Lat},
		Places:      make([]Place, 0, len(found.Features)),
	}
	for _, f := range found.Features {
		p := f.Properties
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		address := p.AddressLine2
		if address == "" {
			address = p.AddressLine1
		}
		result.Places = append(result.Places, Place{
			ID:           p.PlaceID,
			Name:         p.Name,
			Address:      address,
			Category:     pickCategory(p.Categories),
			Coordinates:  f.Geometry.Coordinates,
			Distance:     p.Distance,
			Rating:       p.Rating,
			OpeningHours: p.OpeningHours,
		})
	}
	return result, nil
}

// pickCategory prefers a tourism category, then the first one listed.
func pickCategory(cats []string) string {
	for _, c := range cats {
		if strings.HasPrefix(c, "tourism") {
			return c
		}
	}
	if len(cats) > 0 {
		return cats[0]
	}
	return "Attraction"
}
