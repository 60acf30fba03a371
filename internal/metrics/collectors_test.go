package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource []SessionSnapshot

func (s staticSource) SessionSnapshots() []SessionSnapshot { return s }

func TestSessionCollector(t *testing.T) {
	collector := NewSessionCollector(staticSource{
		{State: "connected", TurnCount: 3, ToolCallsCount: 1},
		{State: "connected", TurnCount: 1},
		{State: "interrupted", TurnCount: 2, ToolCallsCount: 2},
	})

	expected := `
# HELP geminilab_live_sessions_active Active relay sessions by Live API state
# TYPE geminilab_live_sessions_active gauge
geminilab_live_sessions_active{state="connected"} 2
geminilab_live_sessions_active{state="interrupted"} 1
# HELP geminilab_live_session_turns Turns completed by currently active sessions
# TYPE geminilab_live_session_turns gauge
geminilab_live_session_turns 6
# HELP geminilab_live_session_tool_calls Tool calls made by currently active sessions
# TYPE geminilab_live_session_tool_calls gauge
geminilab_live_session_tool_calls 3
`
	require.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expected)))
}

func TestRecordHelpers(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(ToolExecutions.WithLabelValues("calculator", "success"))
	RecordToolExecution("calculator", 10*time.Millisecond, "success")
	assert.Equal(t, before+1, testutil.ToFloat64(ToolExecutions.WithLabelValues("calculator", "success")))

	RecordTokens("gemini-2.5-flash", 10, 5, 0, 0.001)
	assert.GreaterOrEqual(t, testutil.ToFloat64(GenerationTokens.WithLabelValues("gemini-2.5-flash", "prompt")), float64(10))

	var _ prometheus.Collector = NewSessionCollector(staticSource{})
}
