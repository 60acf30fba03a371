// Package research implements the research agent: structured query analysis
// over uploaded files, search-grounded answers with citations, and speech output.
package research

import (
	"context"
	"encoding/json"

	"google.golang.org/genai"

	"geminilab/internal/adapters/gemini"
	"geminilab/internal/audio"
	"geminilab/internal/observability"
	"geminilab/internal/tools/search"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

const analyzePrompt = "Analyze the following query and provided context (if any).\n" +
	"Extract key research points and provide a summary.\n\n" +
	"Query: "

// Point is one extracted finding
type Point struct {
	Label      string  `json:"label"`
	Source     string  `json:"source"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// Result is the structured output of AnalyzeQuery
type Result struct {
	Points  []Point `json:"points"`
	Summary string  `json:"summary"`
}

// ResultSchema is the response schema matching Result
func ResultSchema() *genai.Schema {
	point := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"label":      {Type: genai.TypeString, Description: "A short topic label or title for this point."},
			"source":     {Type: genai.TypeString, Description: "The source of the information (e.g., filename, audio timestamp)."},
			"content":    {Type: genai.TypeString, Description: "The extracted key point or information."},
			"confidence": {Type: genai.TypeNumber, Description: "Confidence score between 0.0 and 1.0."},
		},
		Required:         []string{"label", "source", "content", "confidence"},
		PropertyOrdering: []string{"label", "source", "content", "confidence"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"points":  {Type: genai.TypeArray, Items: point, Description: "List of extracted research points."},
			"summary": {Type: genai.TypeString, Description: "A concise summary of the findings."},
		},
		Required:         []string{"points", "summary"},
		PropertyOrdering: []string{"points", "summary"},
	}
}

// Config selects models and the TTS voice
type Config struct {
	Model    string
	TTSModel string
	Voice    string
}

// Agent runs research requests against a ContentGenerator
type Agent struct {
	generator gemini.ContentGenerator
	tracer    *observability.Tracer
	cfg       Config
	log       *logger.Logger
}

// NewAgent creates an agent; the voice defaults to Kore
func NewAgent(generator gemini.ContentGenerator, tracer *observability.Tracer, cfg Config) *Agent {
	if tracer == nil {
		tracer = observability.Disabled()
	}
	if cfg.Voice == "" {
		cfg.Voice = "Kore"
	}
	return &Agent{
		generator: generator,
		tracer:    tracer,
		cfg:       cfg,
		log:       logger.Get().Named("research"),
	}
}

// AnalyzeQuery extracts research points from the query and any processed files
func (a *Agent) AnalyzeQuery(ctx context.Context, query string, files ...*genai.File) (*Result, error) {
	fileNames := make([]string, 0, len(files))
	parts := []*genai.Part{genai.NewPartFromText(analyzePrompt + query)}
	for _, f := range files {
		parts = append(parts, genai.NewPartFromURI(f.URI, f.MIMEType))
		fileNames = append(fileNames, f.Name)
	}

	ctx, span := a.tracer.TraceGeneration(ctx, "analyze_query", map[string]any{"query": query, "files": fileNames})
	defer span.End()

	resp, err := a.generator.GenerateContent(ctx, a.cfg.Model, []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   ResultSchema(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "analyze query")
	}
	a.trackUsage(ctx, resp)

	raw := gemini.TextOf(resp)
	if raw == "" {
		err := errors.Wrap(errors.ErrInternal, "analysis response is empty")
		span.RecordError(err)
		return nil, err
	}

	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "decode analysis")
	}

	span.SetOutput(result)
	a.log.Debugw("Query analyzed", "points", len(result.Points))
	return &result, nil
}

// GroundedAnswer answers with the Google Search tool and inline citations
func (a *Agent) GroundedAnswer(ctx context.Context, query string) (string, error) {
	ctx, span := a.tracer.TraceGeneration(ctx, "grounded_answer", map[string]any{"query": query})
	defer span.End()

	resp, err := a.generator.GenerateContent(ctx, a.cfg.Model, genai.Text(query), &genai.GenerateContentConfig{
		Tools: []*genai.Tool{search.GoogleSearchTool()},
	})
	if err != nil {
		span.RecordError(err)
		return "", errors.Wrap(err, "grounded answer")
	}
	a.trackUsage(ctx, resp)

	answer := AddCitations(resp)
	span.SetOutput(answer)
	return answer, nil
}

// GenerateAudio speaks text with the TTS model and writes a 24 kHz mono WAV
// file to out. It returns the number of PCM bytes written.
func (a *Agent) GenerateAudio(ctx context.Context, text, out string) (int, error) {
	ctx, span := a.tracer.TraceGeneration(ctx, "generate_audio", map[string]any{"text": text, "voice": a.cfg.Voice})
	defer span.End()

	resp, err := a.generator.GenerateContent(ctx, a.cfg.TTSModel, genai.Text("Say: "+text), &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: a.cfg.Voice},
			},
		},
	})
	if err != nil {
		span.RecordError(err)
		return 0, errors.Wrap(err, "generate audio")
	}

	blob := gemini.InlineData(resp)
	if blob == nil {
		span.RecordError(errors.ErrNoAudio)
		return 0, errors.ErrNoAudio
	}

	if err := audio.WriteWAVFile(out, blob.Data, audio.OutputFormat); err != nil {
		span.RecordError(err)
		return 0, err
	}

	a.tracer.TrackAudio(ctx, float64(audio.OutputFormat.Duration(blob.Data).Milliseconds()), 1)
	span.SetOutput(out)
	a.log.Infow("Generated audio saved", "path", out, "bytes", len(blob.Data))
	return len(blob.Data), nil
}

func (a *Agent) trackUsage(ctx context.Context, resp *genai.GenerateContentResponse) {
	u := gemini.UsageOf(resp)
	a.tracer.TrackTokenUsage(ctx, int(u.PromptTokens), int(u.OutputTokens))
}
