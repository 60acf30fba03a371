// Package toolset assembles the tool registries used by the bot and the relay.
package toolset

import (
	"geminilab/internal/tools"
	"geminilab/internal/tools/calculator"
	"geminilab/internal/tools/datetime"
	"geminilab/internal/tools/shared"
	"geminilab/internal/tools/weather"
)

// RegisterTextTools registers the text bot's tools: simple get_weather and calculator
func RegisterTextTools(registry *tools.Registry, client *weather.Client, deps shared.Deps) {
	log := deps.Logger().With("component", "tool_registration")

	registry.Register(weather.NewSimpleWeatherTool(client, deps))
	registry.Register(calculator.NewTool(deps))
	log.Debugw("Registered text tools", "tools", registry.List())
}

// RegisterLiveTools registers the Live session tools: detailed weather,
// forecast, current time and time difference
func RegisterLiveTools(registry *tools.Registry, client *weather.Client, deps shared.Deps) {
	log := deps.Logger().With("component", "tool_registration")

	registry.Register(weather.NewWeatherTool(client, deps))
	registry.Register(weather.NewForecastTool(client, deps))
	log.Debug("Registered weather tools")

	registry.Register(datetime.NewCurrentTimeTool(deps))
	registry.Register(datetime.NewTimeDifferenceTool(deps))
	log.Debug("Registered datetime tools")
}

// TextRegistry returns a new registry with the text tools
func TextRegistry(client *weather.Client, deps shared.Deps) *tools.Registry {
	registry := tools.NewRegistry()
	RegisterTextTools(registry, client, deps)
	return registry
}

// LiveRegistry returns a new registry with the Live tools
func LiveRegistry(client *weather.Client, deps shared.Deps) *tools.Registry {
	registry := tools.NewRegistry()
	RegisterLiveTools(registry, client, deps)
	return registry
}
