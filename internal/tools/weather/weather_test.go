package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geminilab/internal/adapters/config"
	"geminilab/internal/tools/middleware"
	"geminilab/internal/tools/shared"
	"geminilab/pkg/logger"
)

const parisGeo = `{"results":[{"name":"Paris","country":"France","latitude":48.85341,"longitude":2.3488}]}`

type fakeMeteo struct {
	geo      string
	forecast string
	status   int
	delay    time.Duration
	queries  []string
	hits     atomic.Int32
}

func (f *fakeMeteo) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		f.queries = append(f.queries, r.URL.RawQuery)
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		if f.status != 0 {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte("upstream exploded"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if strings.HasPrefix(r.URL.Path, "/geo") {
			_, _ = w.Write([]byte(f.geo))
			return
		}
		_, _ = w.Write([]byte(f.forecast))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server, timeout time.Duration) *Client {
	return NewClient(timeout, WithBaseURLs(srv.URL+"/geo", srv.URL+"/forecast"))
}

func testDeps() shared.Deps {
	return shared.Deps{Log: logger.Nop()}
}

func TestSimpleWeatherTool(t *testing.T) {
	fake := &fakeMeteo{
		geo:      parisGeo,
		forecast: `{"current":{"temperature_2m":18.0,"weather_code":3},"current_units":{"temperature_2m":"°C"}}`,
	}
	client := newTestClient(fake.server(t), time.Second)

	result, err := NewSimpleWeatherTool(client, testDeps()).Execute(context.Background(), map[string]any{"city": "Paris"})
	require.NoError(t, err)
	assert.Equal(t, "The current temperature in Paris, France is 18.0°C.", result)

	require.Len(t, fake.queries, 2)
	assert.Contains(t, fake.queries[0], "name=Paris")
	assert.Contains(t, fake.queries[0], "count=1")
	assert.Contains(t, fake.queries[1], "current=temperature_2m%2Cweather_code")
	assert.Contains(t, fake.queries[1], "latitude=48.85341")
}

func TestDetailedWeatherTool(t *testing.T) {
	fake := &fakeMeteo{
		geo:      parisGeo,
		forecast: `{"current":{"temperature_2m":21.4,"relative_humidity_2m":65,"weather_code":61,"wind_speed_10m":12.3},"current_units":{"temperature_2m":"°C"}}`,
	}
	client := newTestClient(fake.server(t), time.Second)

	result, err := NewWeatherTool(client, testDeps()).Execute(context.Background(), map[string]any{"city": "Paris"})
	require.NoError(t, err)
	assert.Equal(t, "Weather in Paris, France: 21.4°C, Slight rain. Humidity: 65%, Wind: 12.3 km/h", result)
}

func TestDetailedWeatherMissingFields(t *testing.T) {
	fake := &fakeMeteo{
		geo:      parisGeo,
		forecast: `{"current":{"temperature_2m":5},"current_units":{"temperature_2m":"°C"}}`,
	}
	client := newTestClient(fake.server(t), time.Second)

	result, err := client.DetailedWeather(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, "Weather in Paris, France: 5°C, Clear sky. Humidity: N/A%, Wind: N/A km/h", result)
}

func TestForecastTool(t *testing.T) {
	fake := &fakeMeteo{
		geo: parisGeo,
		forecast: `{"daily":{
			"time":["2025-01-01","2025-01-02","2025-01-03","2025-01-04","2025-01-05","2025-01-06","2025-01-07","2025-01-08"],
			"temperature_2m_max":[10.1,11,12,13,14,15,16,17],
			"temperature_2m_min":[1.5,2,3,4,5,6,7,8],
			"weather_code":[0,95,3,3,3,3,42,3]}}`,
	}
	client := newTestClient(fake.server(t), time.Second)

	result, err := NewForecastTool(client, testDeps()).Execute(context.Background(), map[string]any{"city": "Paris"})
	require.NoError(t, err)

	lines := strings.Split(result.(string), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "7-day forecast for Paris, France:", lines[0])
	assert.Equal(t, "2025-01-01: 1.5°C to 10.1°C, Clear sky", lines[1])
	assert.Equal(t, "2025-01-02: 2°C to 11°C, Thunderstorm", lines[2])
	assert.Equal(t, "2025-01-07: 7°C to 16°C, Unknown", lines[7])
	assert.Contains(t, fake.queries[1], "timezone=auto")
}

func TestWeatherCityNotFound(t *testing.T) {
	fake := &fakeMeteo{geo: `{}`}
	client := newTestClient(fake.server(t), time.Second)

	result, err := NewWeatherTool(client, testDeps()).Execute(context.Background(), map[string]any{"city": "Atlantis"})
	require.NoError(t, err)
	assert.Equal(t, "Could not find coordinates for city: Atlantis", result)
	assert.Equal(t, int32(1), fake.hits.Load())
}

func TestWeatherNoCurrentBlock(t *testing.T) {
	fake := &fakeMeteo{geo: parisGeo, forecast: `{"error":true}`}
	client := newTestClient(fake.server(t), time.Second)

	result, err := client.SimpleWeather(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, "Could not fetch weather data for Paris.", result)

	result, err = client.WeeklyForecast(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, "Could not fetch forecast data for Paris.", result)
}

func TestWeatherServerErrorIsRetriedThenReported(t *testing.T) {
	fake := &fakeMeteo{status: http.StatusBadGateway}
	client := newTestClient(fake.server(t), time.Second)

	stats := middleware.NewUsageStats()
	deps := shared.Deps{
		Config: config.ToolsConfig{RetryAttempts: 2, RetryBackoff: time.Millisecond},
		Stats:  stats,
		Log:    logger.Nop(),
	}

	result, err := NewWeatherTool(client, deps).Execute(context.Background(), map[string]any{"city": "Paris"})
	require.NoError(t, err)
	assert.Equal(t, "Could not fetch weather data for Paris.", result)
	assert.Equal(t, int32(2), fake.hits.Load())

	snap := stats.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, int64(1), snap[0].Failures)
}

func TestForecastServerErrorHidesBody(t *testing.T) {
	fake := &fakeMeteo{status: http.StatusInternalServerError}
	client := newTestClient(fake.server(t), time.Second)

	result, err := NewForecastTool(client, testDeps()).Execute(context.Background(), map[string]any{"city": "Paris"})
	require.NoError(t, err)
	assert.Equal(t, "Could not fetch forecast data for Paris.", result)

	_, err = client.Geocode(context.Background(), "Paris")
	require.Error(t, err)
	assert.ErrorIs(t, err, errBadStatus)
	assert.Contains(t, err.Error(), "status 500")
	assert.NotContains(t, err.Error(), "exploded")
}

func TestWeatherTimeout(t *testing.T) {
	fake := &fakeMeteo{geo: parisGeo, delay: 200 * time.Millisecond}
	client := newTestClient(fake.server(t), 20*time.Millisecond)

	result, err := NewWeatherTool(client, testDeps()).Execute(context.Background(), map[string]any{"city": "Paris"})
	require.NoError(t, err)
	assert.Equal(t, "Weather API timeout for Paris", result)
}

func TestWeatherMissingCity(t *testing.T) {
	client := NewClient(0)
	_, err := NewWeatherTool(client, testDeps()).Execute(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestWMODescription(t *testing.T) {
	assert.Equal(t, "Clear sky", WMODescription(0))
	assert.Equal(t, "Foggy", WMODescription(45))
	assert.Equal(t, "Thunderstorm with heavy hail", WMODescription(99))
	assert.Equal(t, "Unknown", WMODescription(42))
}
