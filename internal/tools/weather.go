package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	defaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	defaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
)

// locationPatterns are tried in order against conversation context when
// no explicit location was provided; the first match wins.
var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:I live in|I'm in|I'm from|my location is|I'm located in)\s+([A-Za-z\s,]+)`),
	regexp.MustCompile(`(?i)(?:weather in|weather at|weather for)\s+([A-Za-z\s,]+)`),
	regexp.MustCompile(`(?i)(?:in|at|from)\s+([A-Za-z\s,]+?)(?:\s|$|,|\.)`),
}

// ExtractCityFromContext applies the location patterns to free-form
// conversation context and returns the first city name candidate.
func ExtractCityFromContext(context string) string {
	for _, pattern := range locationPatterns {
		if m := pattern.FindStringSubmatch(context); len(m) > 1 && m[1] != "" {
			city := strings.TrimSpace(m[1])
			city = strings.TrimRight(city, ".,")
			return city
		}
	}
	return ""
}

// WeatherInput is the getWeather tool's input. All fields are optional;
// resolution order is coordinates, then cityName, then context.
type WeatherInput struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	CityName  string   `json:"cityName,omitempty"`
	Context   string   `json:"context,omitempty"`
}

// WeatherService resolves locations and fetches forecasts from the
// open-meteo APIs. Neither API requires authentication.
type WeatherService struct {
	geocodingURL string
	forecastURL  string
	httpClient   *http.Client
}

// WeatherOption configures a WeatherService.
type WeatherOption func(*WeatherService)

// WithGeocodingURL overrides the geocoding endpoint, mainly for tests.
func WithGeocodingURL(u string) WeatherOption {
	return func(s *WeatherService) { s.geocodingURL = u }
}

// WithForecastURL overrides the forecast endpoint, mainly for tests.
func WithForecastURL(u string) WeatherOption {
	return func(s *WeatherService) { s.forecastURL = u }
}

// NewWeatherService creates a weather service.
func NewWeatherService(opts ...WeatherOption) *WeatherService {
	s := &WeatherService{
		geocodingURL: defaultGeocodingURL,
		forecastURL:  defaultForecastURL,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type geocodingResult struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name"`
}

type geocodingResponse struct {
	Results []geocodingResult `json:"results"`
}

// Geocode resolves a city name to coordinates using the first result.
func (s *WeatherService) Geocode(ctx context.Context, cityName string) (lat, lon float64, err error) {
	q := url.Values{}
	q.Set("name", cityName)
	q.Set("count", "1")
	q.Set("language", "en")
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.geocodingURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, 0, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("geocoding API error: %d", resp.StatusCode)
	}

	var data geocodingResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, 0, fmt.Errorf("geocoding API decode: %w", err)
	}
	if len(data.Results) == 0 {
		return 0, 0, fmt.Errorf("city %q not found", cityName)
	}
	return data.Results[0].Latitude, data.Results[0].Longitude, nil
}

// Forecast fetches the raw forecast payload for coordinates: current
// temperature, hourly series, and daily sunrise/sunset. The payload is
// passed through unnormalized.
func (s *WeatherService) Forecast(ctx context.Context, lat, lon float64) (map[string]any, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%v", lat))
	q.Set("longitude", fmt.Sprintf("%v", lon))
	q.Set("current", "temperature_2m")
	q.Set("hourly", "temperature_2m")
	q.Set("daily", "sunrise,sunset")
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.forecastURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("weather API error: %d", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("weather API decode: %w", err)
	}
	return payload, nil
}

// Lookup resolves the input to coordinates and fetches the forecast.
func (s *WeatherService) Lookup(ctx context.Context, in WeatherInput) (map[string]any, error) {
	lat, lon := in.Latitude, in.Longitude
	cityName := in.CityName

	if lat == nil && lon == nil && cityName == "" && in.Context != "" {
		cityName = ExtractCityFromContext(in.Context)
	}

	if cityName != "" && (lat == nil || lon == nil) {
		gLat, gLon, err := s.Geocode(ctx, cityName)
		if err != nil {
			return nil, fmt.Errorf("failed to get coordinates for city %q: %w", cityName, err)
		}
		lat, lon = &gLat, &gLon
	}

	if lat == nil || lon == nil {
		return nil, fmt.Errorf("no valid location provided: specify a city name or coordinates")
	}

	return s.Forecast(ctx, *lat, *lon)
}

// NewWeatherTool exposes the weather service as a callable tool spec.
func NewWeatherTool(svc *WeatherService) Tool {
	return Tool{
		Name: "getWeather",
		Description: "Get the current weather at a location. Can accept either coordinates or city name. " +
			"If no location is provided, try to extract location from the conversation context.",
		InputSchema: schemaObject(map[string]any{
			"latitude":  map[string]any{"type": "number"},
			"longitude": map[string]any{"type": "number"},
			"cityName":  map[string]any{"type": "string"},
			"context": map[string]any{
				"type":        "string",
				"description": "Conversation context that might contain location information",
			},
		}),
		Execute: func(ctx context.Context, input json.RawMessage) (any, error) {
			var in WeatherInput
			if len(input) > 0 {
				if err := json.Unmarshal(input, &in); err != nil {
					return nil, fmt.Errorf("invalid getWeather input: %w", err)
				}
			}
			return svc.Lookup(ctx, in)
		},
	}
}
