package ai

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"geminilab/pkg/errors"
)

// Model name constants
const (
	ModelGemini25Flash     = "gemini-2.5-flash"
	ModelGemini25Pro       = "gemini-2.5-pro"
	ModelGemini25FlashLite = "gemini-2.5-flash-lite"
	ModelNativeAudio       = "gemini-2.5-flash-native-audio-preview-12-2025"
	ModelTTS               = "gemini-2.5-flash-preview-tts"
)

// ModelInfo describes the capabilities and pricing of a model.
type ModelInfo struct {
	Name              string          // Model identifier without the "models/" prefix
	Family            string          // Family/category name (e.g., "gemini-2.5")
	ContextWindow     int             // Maximum input tokens
	InputCostPer1M    decimal.Decimal // USD per 1M input tokens
	OutputCostPer1M   decimal.Decimal // USD per 1M output tokens (thinking is billed as output)
	SupportsThinking  bool
	SupportsTools     bool
	SupportsAudio     bool
	SupportsLive      bool
	SupportsStreaming bool
}

// Cost returns the USD cost of the given token counts
func (m ModelInfo) Cost(promptTokens, outputTokens int64) decimal.Decimal {
	million := decimal.NewFromInt(1_000_000)
	in := decimal.NewFromInt(promptTokens).Mul(m.InputCostPer1M).Div(million)
	out := decimal.NewFromInt(outputTokens).Mul(m.OutputCostPer1M).Div(million)
	return in.Add(out)
}

// Catalog is a read-only lookup of known Gemini models
type Catalog struct {
	models map[string]ModelInfo
}

// NewCatalog builds a catalog from models; DefaultCatalog covers the models this module uses
func NewCatalog(models ...ModelInfo) *Catalog {
	c := &Catalog{models: make(map[string]ModelInfo, len(models))}
	for _, m := range models {
		c.models[normalizeModel(m.Name)] = m
	}
	return c
}

// DefaultCatalog returns the Gemini 2.5 models with list pricing
func DefaultCatalog() *Catalog {
	return NewCatalog(geminiModels()...)
}

// Get returns model info by name. Lookup is case-insensitive and ignores a "models/" prefix.
func (c *Catalog) Get(model string) (ModelInfo, error) {
	m, ok := c.models[normalizeModel(model)]
	if !ok {
		return ModelInfo{}, errors.Wrapf(errors.ErrNotFound, "gemini model %s not found", model)
	}
	return m, nil
}

// List returns all models sorted by name
func (c *Catalog) List() []ModelInfo {
	out := make([]ModelInfo, 0, len(c.models))
	for _, m := range c.models {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func normalizeModel(model string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(model)), "models/")
}

func geminiModels() []ModelInfo {
	return []ModelInfo{
		{
			Name:              ModelGemini25Flash,
			Family:            "gemini-2.5",
			ContextWindow:     1_048_576,
			InputCostPer1M:    decimal.RequireFromString("0.30"),
			OutputCostPer1M:   decimal.RequireFromString("2.50"),
			SupportsThinking:  true,
			SupportsTools:     true,
			SupportsAudio:     true,
			SupportsStreaming: true,
		},
		{
			Name:              ModelGemini25Pro,
			Family:            "gemini-2.5",
			ContextWindow:     1_048_576,
			InputCostPer1M:    decimal.RequireFromString("1.25"),
			OutputCostPer1M:   decimal.RequireFromString("10.00"),
			SupportsThinking:  true,
			SupportsTools:     true,
			SupportsAudio:     true,
			SupportsStreaming: true,
		},
		{
			Name:              ModelGemini25FlashLite,
			Family:            "gemini-2.5",
			ContextWindow:     1_048_576,
			InputCostPer1M:    decimal.RequireFromString("0.10"),
			OutputCostPer1M:   decimal.RequireFromString("0.40"),
			SupportsThinking:  true,
			SupportsTools:     true,
			SupportsStreaming: true,
		},
		{
			Name:              ModelNativeAudio,
			Family:            "gemini-2.5-live",
			ContextWindow:     131_072,
			InputCostPer1M:    decimal.RequireFromString("0.50"),
			OutputCostPer1M:   decimal.RequireFromString("2.00"),
			SupportsThinking:  true,
			SupportsTools:     true,
			SupportsAudio:     true,
			SupportsLive:      true,
			SupportsStreaming: true,
		},
		{
			Name:            ModelTTS,
			Family:          "gemini-2.5-tts",
			ContextWindow:   8_192,
			InputCostPer1M:  decimal.RequireFromString("0.50"),
			OutputCostPer1M: decimal.RequireFromString("10.00"),
			SupportsAudio:   true,
		},
	}
}
