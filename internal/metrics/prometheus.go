package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geminilab_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geminilab_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geminilab_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Generation metrics
	GenerationRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geminilab_generation_requests_total",
			Help: "Total number of Gemini generation requests",
		},
		[]string{"model", "mode", "status"}, // mode: unary|stream; status: success|error|rate_limited
	)

	GenerationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geminilab_generation_latency_seconds",
			Help:    "Gemini generation latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"model", "mode"},
	)

	GenerationTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geminilab_generation_tokens_total",
			Help: "Total tokens reported by Gemini usage metadata",
		},
		[]string{"model", "type"}, // type: prompt|output|thoughts
	)

	GenerationCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geminilab_generation_cost_usd",
			Help: "Estimated generation cost in USD",
		},
		[]string{"model"},
	)

	// Tool metrics
	ToolExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geminilab_tool_executions_total",
			Help: "Total number of tool executions",
		},
		[]string{"tool", "status"}, // status: success|error|unknown|timeout
	)

	ToolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geminilab_tool_latency_seconds",
			Help:    "Tool execution latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"tool"},
	)

	// Live relay metrics
	LiveTurns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "geminilab_live_turns_total",
			Help: "Completed Live API turns across all relay sessions",
		},
	)

	LiveInterruptions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "geminilab_live_interruptions_total",
			Help: "Live API turns interrupted by the user (barge-in)",
		},
	)

	LiveSessionsOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geminilab_live_sessions_opened_total",
			Help: "Relay sessions opened",
		},
		[]string{"status"}, // status: connected|failed
	)

	WebSocketMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geminilab_websocket_messages_total",
			Help: "Relay WebSocket messages by direction and type",
		},
		[]string{"direction", "type"}, // direction: inbound|outbound
	)

	// Ephemeral token metrics
	EphemeralTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geminilab_ephemeral_tokens_total",
			Help: "Ephemeral token requests by source",
		},
		[]string{"source"}, // source: issued|cache|error
	)
)

var registerOnce sync.Once

// Init registers all metrics with Prometheus. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(WorkerExecutions)
		prometheus.MustRegister(WorkerDuration)
		prometheus.MustRegister(WorkerLastRun)

		prometheus.MustRegister(GenerationRequests)
		prometheus.MustRegister(GenerationLatency)
		prometheus.MustRegister(GenerationTokens)
		prometheus.MustRegister(GenerationCost)

		prometheus.MustRegister(ToolExecutions)
		prometheus.MustRegister(ToolLatency)

		prometheus.MustRegister(LiveTurns)
		prometheus.MustRegister(LiveInterruptions)
		prometheus.MustRegister(LiveSessionsOpened)
		prometheus.MustRegister(WebSocketMessages)

		prometheus.MustRegister(EphemeralTokens)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	WorkerExecutions.WithLabelValues(worker, status(err)).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordGeneration records one generation request
func RecordGeneration(model, mode string, latency time.Duration, err error) {
	GenerationRequests.WithLabelValues(model, mode, status(err)).Inc()
	GenerationLatency.WithLabelValues(model, mode).Observe(latency.Seconds())
}

// RecordRateLimited records a generation refused by the local limiter
func RecordRateLimited(model, mode string) {
	GenerationRequests.WithLabelValues(model, mode, "rate_limited").Inc()
}

// RecordTokens records usage metadata and estimated cost for a response
func RecordTokens(model string, prompt, output, thoughts int32, costUSD float64) {
	if prompt > 0 {
		GenerationTokens.WithLabelValues(model, "prompt").Add(float64(prompt))
	}
	if output > 0 {
		GenerationTokens.WithLabelValues(model, "output").Add(float64(output))
	}
	if thoughts > 0 {
		GenerationTokens.WithLabelValues(model, "thoughts").Add(float64(thoughts))
	}
	if costUSD > 0 {
		GenerationCost.WithLabelValues(model).Add(costUSD)
	}
}

// RecordToolExecution records a tool execution with an explicit outcome
func RecordToolExecution(tool string, latency time.Duration, outcome string) {
	ToolExecutions.WithLabelValues(tool, outcome).Inc()
	ToolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// RecordWSMessage counts a relay message
func RecordWSMessage(direction, msgType string) {
	WebSocketMessages.WithLabelValues(direction, msgType).Inc()
}

// RecordEphemeralToken counts a token request by where the token came from
func RecordEphemeralToken(source string) {
	EphemeralTokens.WithLabelValues(source).Inc()
}
