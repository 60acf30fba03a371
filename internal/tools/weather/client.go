// Package weather implements Open-Meteo backed weather tools.
package weather

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"geminilab/pkg/errors"
)

const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"
	DefaultTimeout      = 10 * time.Second
)

// Location is a geocoding match
type Location struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Current holds the current-conditions block. Numbers keep the API's
// original text so 18.0 is reported as 18.0.
type Current struct {
	Temperature *json.Number `json:"temperature_2m"`
	Humidity    *json.Number `json:"relative_humidity_2m"`
	WeatherCode *json.Number `json:"weather_code"`
	WindSpeed   *json.Number `json:"wind_speed_10m"`
}

// Daily holds the daily forecast arrays
type Daily struct {
	Time           []string      `json:"time"`
	TemperatureMax []json.Number `json:"temperature_2m_max"`
	TemperatureMin []json.Number `json:"temperature_2m_min"`
	WeatherCode    []json.Number `json:"weather_code"`
}

// Forecast is the subset of the forecast response used by the tools
type Forecast struct {
	Current      *Current          `json:"current"`
	CurrentUnits map[string]string `json:"current_units"`
	Daily        *Daily            `json:"daily"`
}

// errBadStatus marks a non-200 Open-Meteo response
var errBadStatus = errors.New("open-meteo bad status")

type geocodingResponse struct {
	Results []Location `json:"results"`
}

// Client talks to the Open-Meteo geocoding and forecast APIs
type Client struct {
	http         *http.Client
	geocodingURL string
	forecastURL  string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the instrumented default client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithBaseURLs points the client at other endpoints (tests use httptest servers)
func WithBaseURLs(geocodingURL, forecastURL string) Option {
	return func(cl *Client) {
		cl.geocodingURL = geocodingURL
		cl.forecastURL = forecastURL
	}
}

// NewClient creates an Open-Meteo client. A zero timeout means DefaultTimeout.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		geocodingURL: DefaultGeocodingURL,
		forecastURL:  DefaultForecastURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode returns the best match for city, or ErrNotFound
func (c *Client) Geocode(ctx context.Context, city string) (*Location, error) {
	q := url.Values{}
	q.Set("name", city)
	q.Set("count", "1")
	q.Set("language", "en")
	q.Set("format", "json")

	var resp geocodingResponse
	if err := c.getJSON(ctx, c.geocodingURL+"?"+q.Encode(), &resp); err != nil {
		return nil, errors.Wrap(err, "geocoding")
	}
	if len(resp.Results) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "city %q", city)
	}
	return &resp.Results[0], nil
}

// Forecast fetches the forecast for loc. params are extra query parameters
// such as current=... or daily=...
func (c *Client) Forecast(ctx context.Context, loc *Location, params url.Values) (*Forecast, error) {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))

	var resp Forecast
	if err := c.getJSON(ctx, c.forecastURL+"?"+q.Encode(), &resp); err != nil {
		return nil, errors.Wrap(err, "forecast")
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return errors.Wrapf(errBadStatus, "status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
