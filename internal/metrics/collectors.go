package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SessionSnapshot is the per-session view a SessionSource exposes
type SessionSnapshot struct {
	State          string
	TurnCount      int
	ToolCallsCount int
}

// SessionSource lists the relay's active sessions at scrape time
type SessionSource interface {
	SessionSnapshots() []SessionSnapshot
}

// SessionCollector reports live relay sessions at scrape time instead of
// keeping a gauge in sync with every state transition
type SessionCollector struct {
	source SessionSource

	activeSessions *prometheus.Desc
	sessionTurns   *prometheus.Desc
	sessionTools   *prometheus.Desc
}

// NewSessionCollector creates a collector over source
func NewSessionCollector(source SessionSource) *SessionCollector {
	return &SessionCollector{
		source: source,
		activeSessions: prometheus.NewDesc(
			"geminilab_live_sessions_active",
			"Active relay sessions by Live API state",
			[]string{"state"}, nil,
		),
		sessionTurns: prometheus.NewDesc(
			"geminilab_live_session_turns",
			"Turns completed by currently active sessions",
			nil, nil,
		),
		sessionTools: prometheus.NewDesc(
			"geminilab_live_session_tool_calls",
			"Tool calls made by currently active sessions",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *SessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeSessions
	ch <- c.sessionTurns
	ch <- c.sessionTools
}

// Collect implements prometheus.Collector
func (c *SessionCollector) Collect(ch chan<- prometheus.Metric) {
	byState := make(map[string]int)
	turns, tools := 0, 0

	for _, s := range c.source.SessionSnapshots() {
		byState[s.State]++
		turns += s.TurnCount
		tools += s.ToolCallsCount
	}

	for state, n := range byState {
		ch <- prometheus.MustNewConstMetric(c.activeSessions, prometheus.GaugeValue, float64(n), state)
	}
	ch <- prometheus.MustNewConstMetric(c.sessionTurns, prometheus.GaugeValue, float64(turns))
	ch <- prometheus.MustNewConstMetric(c.sessionTools, prometheus.GaugeValue, float64(tools))
}
