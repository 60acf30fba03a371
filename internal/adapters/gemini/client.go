package gemini

import (
	"context"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"

	"geminilab/internal/adapters/config"
	"geminilab/pkg/errors"
)

// NewClient creates a Gemini API client whose HTTP traffic is traced by otelhttp
func NewClient(ctx context.Context, cfg config.GeminiConfig) (*genai.Client, error) {
	key := cfg.Key()
	if key == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "GOOGLE_API_KEY or GEMINI_API_KEY must be set")
	}

	httpClient := &http.Client{
		Timeout:   cfg.HTTPTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			APIVersion: cfg.APIVersion,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create genai client")
	}

	return client, nil
}
