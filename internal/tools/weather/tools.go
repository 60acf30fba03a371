package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"

	"google.golang.org/genai"

	"geminilab/internal/tools"
	"geminilab/internal/tools/middleware"
	"geminilab/internal/tools/shared"
	"geminilab/pkg/errors"
)

const (
	currentSimple   = "temperature_2m,weather_code"
	currentDetailed = "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m"
	dailyForecast   = "temperature_2m_max,temperature_2m_min,weather_code"
	forecastDays    = 7
)

var citySchema = tools.ObjectSchema(map[string]*genai.Schema{
	"city": tools.StringProperty("City name (e.g., 'London', 'Paris', 'New York')"),
}, "city")

// NewSimpleWeatherTool is get_weather for the text bot: temperature only
func NewSimpleWeatherTool(client *Client, deps shared.Deps) tools.Tool {
	params := tools.ObjectSchema(map[string]*genai.Schema{
		"city": tools.StringProperty("The name of the city."),
	}, "city")

	return build(deps, "get_weather",
		"Get the current weather for a given city using Open-Meteo API.",
		params, "weather", client.SimpleWeather)
}

// NewWeatherTool is get_weather for Live sessions: temperature, conditions,
// humidity and wind
func NewWeatherTool(client *Client, deps shared.Deps) tools.Tool {
	return build(deps, "get_weather",
		"Get current weather conditions for a specific city. Returns temperature, humidity, wind speed, and weather conditions using Open-Meteo API (no API key required).",
		citySchema, "weather", client.DetailedWeather)
}

// NewForecastTool is get_forecast
func NewForecastTool(client *Client, deps shared.Deps) tools.Tool {
	return build(deps, "get_forecast",
		"Get 7-day weather forecast for a specific city. Returns daily temperature predictions and conditions using Open-Meteo API.",
		citySchema, "forecast", client.WeeklyForecast)
}

// SimpleWeather renders the current temperature for city. A city that cannot
// be geocoded is a normal answer, not an error.
func (c *Client) SimpleWeather(ctx context.Context, city string) (string, error) {
	loc, err := c.Geocode(ctx, city)
	if err != nil {
		return notFoundOr(city, err)
	}

	forecast, err := c.Forecast(ctx, loc, url.Values{"current": {currentSimple}})
	if err != nil {
		return "", err
	}
	if forecast.Current == nil || forecast.Current.Temperature == nil {
		return fmt.Sprintf("Could not fetch weather data for %s.", loc.Name), nil
	}

	return fmt.Sprintf("The current temperature in %s, %s is %s%s.",
		loc.Name, loc.Country, forecast.Current.Temperature, forecast.CurrentUnits["temperature_2m"]), nil
}

// DetailedWeather renders temperature, conditions, humidity and wind for city
func (c *Client) DetailedWeather(ctx context.Context, city string) (string, error) {
	loc, err := c.Geocode(ctx, city)
	if err != nil {
		return notFoundOr(city, err)
	}

	forecast, err := c.Forecast(ctx, loc, url.Values{"current": {currentDetailed}})
	if err != nil {
		return "", err
	}
	cur := forecast.Current
	if cur == nil || cur.Temperature == nil {
		return fmt.Sprintf("Could not fetch weather data for %s.", loc.Name), nil
	}

	return fmt.Sprintf("Weather in %s, %s: %s%s, %s. Humidity: %s%%, Wind: %s km/h",
		loc.Name, loc.Country,
		cur.Temperature, forecast.CurrentUnits["temperature_2m"],
		WMODescription(codeOf(cur.WeatherCode)),
		orNA(cur.Humidity), orNA(cur.WindSpeed)), nil
}

// WeeklyForecast renders up to seven daily lines for city
func (c *Client) WeeklyForecast(ctx context.Context, city string) (string, error) {
	loc, err := c.Geocode(ctx, city)
	if err != nil {
		return notFoundOr(city, err)
	}

	forecast, err := c.Forecast(ctx, loc, url.Values{
		"daily":    {dailyForecast},
		"timezone": {"auto"},
	})
	if err != nil {
		return "", err
	}
	if forecast.Daily == nil {
		return fmt.Sprintf("Could not fetch forecast data for %s.", loc.Name), nil
	}

	daily := forecast.Daily
	days := min(forecastDays, len(daily.Time), len(daily.TemperatureMax), len(daily.TemperatureMin))

	var b strings.Builder
	fmt.Fprintf(&b, "%d-day forecast for %s, %s:", forecastDays, loc.Name, loc.Country)
	for i := 0; i < days; i++ {
		var code *json.Number
		if i < len(daily.WeatherCode) {
			code = &daily.WeatherCode[i]
		}
		fmt.Fprintf(&b, "\n%s: %s°C to %s°C, %s",
			daily.Time[i], daily.TemperatureMin[i], daily.TemperatureMax[i], WMODescription(codeOf(code)))
	}
	return b.String(), nil
}

func codeOf(n *json.Number) int {
	if n == nil {
		return 0
	}
	if v, err := n.Int64(); err == nil {
		return int(v)
	}
	if f, err := n.Float64(); err == nil {
		return int(f)
	}
	return -1
}

func orNA(n *json.Number) string {
	if n == nil {
		return "N/A"
	}
	return n.String()
}

func notFoundOr(city string, err error) (string, error) {
	if errors.Is(err, errors.ErrNotFound) {
		return "Could not find coordinates for city: " + city, nil
	}
	return "", err
}

// build wires a city lookup into a tool. Transport failures are retried by
// the middleware and then reported to the model as text.
func build(deps shared.Deps, name, description string, params *genai.Schema, kind string, lookup func(context.Context, string) (string, error)) tools.Tool {
	handler := func(ctx context.Context, args map[string]any) (any, error) {
		city, err := tools.RequiredString(args, "city")
		if err != nil {
			return nil, err
		}
		return lookup(ctx, city)
	}

	inner := deps.Build(middleware.NewFactory(name, description, params, handler)).Build()
	log := deps.Logger().Named("weather")

	return tools.New(name, description, params, func(ctx context.Context, args map[string]any) (any, error) {
		result, err := inner.Execute(ctx, args)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, errors.ErrInvalidInput) {
			return nil, err
		}

		city := tools.StringArg(args, "city", "")
		log.Warnw("Open-Meteo request failed", "tool", name, "city", city, "error", err)
		if isTimeout(err) {
			return fmt.Sprintf("Weather API timeout for %s", city), nil
		}
		if errors.Is(err, errBadStatus) {
			return fmt.Sprintf("Could not fetch %s data for %s.", kind, city), nil
		}
		return fmt.Sprintf("Error fetching %s: %v", kind, err), nil
	})
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
