// Package weather serves current conditions and forecasts from weatherapi.com
// through a 10 minute read-through cache.
package weather

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
	DefaultBaseURL = "http://api.weatherapi.com/v1"
	CacheTTL       = 10 * time.Minute
	Timeout        = 5 * time.Second

	DefaultForecastDays = 3
	MaxForecastDays     = 7
)

type Current struct {
	Location    string  `json:"location"`
	Region      string  `json:"region"`
	Country     string  `json:"country"`
	TempC       float64 `json:"temp_c"`
	TempF       float64 `json:"temp_f"`
	Condition   string  `json:"condition"`
	Icon        string  `json:"icon"`
	Humidity    int     `json:"humidity"`
	WindKph     float64 `json:"wind_kph"`
	FeelsLikeC  float64 `json:"feels_like_c"`
	LastUpdated string  `json:"last_updated"`
}

type Condition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
	Code int    `json:"code"`
}

type Day struct {
	MaxTempC     float64   `json:"maxtemp_c"`
	MinTempC     float64   `json:"mintemp_c"`
	Condition    Condition `json:"condition"`
	ChanceOfRain int       `json:"chance_of_rain"`
}

type ForecastDay struct {
	Date string `json:"date"`
	Day  Day    `json:"day"`
}

type Forecast struct {
	Location string        `json:"location"`
	Current  Current       `json:"current"`
	Forecast []ForecastDay `json:"forecast"`
}

// upstream shapes
type apiLocation struct {
	Name    string `json:"name"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

type apiCurrent struct {
	TempC       float64   `json:"temp_c"`
	TempF       float64   `json:"temp_f"`
	Condition   Condition `json:"condition"`
	Humidity    int       `json:"humidity"`
	WindKph     float64   `json:"wind_kph"`
	FeelsLikeC  float64   `json:"feelslike_c"`
	LastUpdated string    `json:"last_updated"`
}

type apiCurrentResponse struct {
	Location apiLocation `json:"location"`
	Current  apiCurrent  `json:"current"`
}

type apiForecastResponse struct {
	Location apiLocation `json:"location"`
	Current  apiCurrent  `json:"current"`
	Forecast struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MaxTempC          float64   `json:"maxtemp_c"`
				MinTempC          float64   `json:"mintemp_c"`
				Condition         Condition `json:"condition"`
				DailyChanceOfRain int       `json:"daily_chance_of_rain"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

type Service struct {
	apiKey   string
	baseURL  string
	client   *external.Client
	current  *cache.Loader
	forecast *cache.Loader
}

type Config struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

func New(cfg Config, store cache.Store) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Service{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   external.NewClient(cfg.HTTP, "Weather service", Timeout),
		current:  cache.NewLoader("weather", store, CacheTTL),
		forecast: cache.NewLoader("forecast", store, CacheTTL),
	}
}

func (s *Service) Client() *external.Client { return s.client }

// Loaders exposes the caches so callers can attach hit/miss hooks.
func (s *Service) Loaders() []*cache.Loader { return []*cache.Loader{s.current, s.forecast} }

func (s *Service) Current(ctx context.Context, location string) (Current, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return Current{}, external.InvalidInput("Location query parameter is required")
	}
	if s.apiKey == "" {
		return Current{}, external.NotConfigured("Weather API key not configured")
	}

	return cache.Load(ctx, s.current, cache.NormalizeKey(location), func(ctx context.Context) (Current, error) {
		var resp apiCurrentResponse
		err := s.client.GetJSON(ctx, s.baseURL+"/current.json", url.Values{
			"key": {s.apiKey},
			"q":   {location},
			"aqi": {"no"},
		}, &resp)
		if err != nil {
			return Current{}, translate(err, "Failed to fetch weather data")
		}
		return toCurrent(resp.Location, resp.Current), nil
	})
}

func (s *Service) Forecast(ctx context.Context, location string, days int) (Forecast, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return Forecast{}, external.InvalidInput("Location is required")
	}
	if days <= 0 {
		days = DefaultForecastDays
	}
	if days > MaxForecastDays {
		return Forecast{}, external.InvalidInput(fmt.Sprintf("Forecast limited to %d days", MaxForecastDays))
	}
	if s.apiKey == "" {
		return Forecast{}, external.NotConfigured("Weather API key not configured")
	}

	key := cache.NormalizeKey(location, strconv.Itoa(days))
	return cache.Load(ctx, s.forecast, key, func(ctx context.Context) (Forecast, error) {
		var resp apiForecastResponse
		err := s.client.GetJSON(ctx, s.baseURL+"/forecast.json", url.Values{
			"key":    {s.apiKey},
			"q":      {location},
			"days":   {strconv.Itoa(days)},
			"aqi":    {"no"},
			"alerts": {"no"},
		}, &resp)
		if err != nil {
			return Forecast{}, translate(err, "Failed to fetch weather forecast")
		}

		out := Forecast{
			Location: resp.Location.Name,
			Current:  toCurrent(resp.Location, resp.Current),
			Forecast: make([]ForecastDay, 0, len(resp.Forecast.ForecastDay)),
		}
		for _, d := range resp.Forecast.ForecastDay {
			out.Forecast = append(out.Forecast, ForecastDay{
				Date: d.Date,
				Day: Day{
					MaxTempC:     d.Day.MaxTempC,
					MinTempC:     d.Day.MinTempC,
					Condition:    d.Day.Condition,
					ChanceOfRain: d.Day.DailyChanceOfRain,
				},
			})
		}
		return out, nil
	})
}

func toCurrent(loc apiLocation, cur apiCurrent) Current {
	return Current{
		Location:    loc.Name,
		Region:      loc.Region,
		Country:     loc.Country,
		TempC:       cur.TempC,
		TempF:       cur.TempF,
		Condition:   cur.Condition.Text,
		Icon:        cur.Condition.Icon,
		Humidity:    cur.Humidity,
		WindKph:     cur.WindKph,
		FeelsLikeC:  cur.FeelsLikeC,
		LastUpdated: cur.LastUpdated,
	}
}

// weatherapi.com answers 400 for locations it cannot resolve.
func translate(err error, fallback string) error {
	if external.StatusCode(err) == http.StatusBadRequest {
		return &external.Error{Kind: external.ErrNotFound, Message: "Location not found", Err: err}
	}
	return external.Wrap(err, fallback)
}
