package live

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"geminilab/internal/adapters/gemini"
	session "geminilab/internal/live"
	"geminilab/internal/metrics"
	"geminilab/internal/observability"
	"geminilab/internal/tools"
	"geminilab/pkg/logger"
)

// SystemInstruction is given to every relayed Live session
const SystemInstruction = "You are a helpful AI assistant with access to real-time information. Use tools when needed to provide accurate, up-to-date information. Keep responses natural and conversational."

// UsageRecorder accumulates token usage per model
type UsageRecorder interface {
	Record(model string, usage gemini.Usage) decimal.Decimal
}

// Config tunes the relay
type Config struct {
	Model             string
	SystemInstruction string
	IncludeSearch     bool
	// Usage receives the usage metadata Live sessions report; nil drops it
	Usage UsageRecorder
	// ClientRate limits browser frames per second per connection; 0 disables
	ClientRate     float64
	ClientBurst    int
	AllowedOrigins []string
}

// ProxyServer upgrades browser connections on /ws/live and tracks the
// resulting sessions by id
type ProxyServer struct {
	connector gemini.LiveConnector
	executor  *tools.Executor
	tracer    *observability.Tracer
	cfg       Config
	upgrader  websocket.Upgrader
	log       *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*LiveSession
}

// NewProxyServer creates a relay. A nil tracer disables tracing.
func NewProxyServer(connector gemini.LiveConnector, executor *tools.Executor, tracer *observability.Tracer, cfg Config) *ProxyServer {
	if tracer == nil {
		tracer = observability.Disabled()
	}
	if cfg.SystemInstruction == "" {
		cfg.SystemInstruction = SystemInstruction
	}

	p := &ProxyServer{
		connector: connector,
		executor:  executor,
		tracer:    tracer,
		cfg:       cfg,
		log:       logger.Get().Named("relay"),
		sessions:  make(map[string]*LiveSession),
	}
	p.upgrader = websocket.Upgrader{
		ReadBufferSize:  32 * 1024,
		WriteBufferSize: 32 * 1024,
		CheckOrigin:     p.checkOrigin,
	}
	return p
}

func (p *ProxyServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range p.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	p.log.Warnw("Rejected WebSocket origin", "origin", origin)
	return false
}

// LiveConfig is the connect config each relayed session uses
func (p *ProxyServer) LiveConfig() *genai.LiveConnectConfig {
	return &genai.LiveConnectConfig{
		SystemInstruction: genai.NewContentFromText(p.cfg.SystemInstruction, genai.RoleUser),
		Tools:             p.executor.Registry().Tools(p.cfg.IncludeSearch),
	}
}

// ServeHTTP upgrades the request and relays until the browser disconnects
func (p *ProxyServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.log.Warnw("WebSocket upgrade failed", "error", err)
		return
	}
	p.HandleClient(context.WithoutCancel(r.Context()), ws)
}

// HandleClient runs one browser connection to completion
func (p *ProxyServer) HandleClient(ctx context.Context, ws *websocket.Conn) {
	id := uuid.NewString()
	log := p.log.With("session_id", id)

	limit := rate.Inf
	if p.cfg.ClientRate > 0 {
		limit = rate.Limit(p.cfg.ClientRate)
	}
	burst := p.cfg.ClientBurst
	if burst <= 0 {
		burst = 1
	}

	manager := session.NewSessionManager(p.connector, p.cfg.Model, p.LiveConfig())
	s := newLiveSession(ctx, id, newClientConn(ws, log), manager, p.executor, p.tracer, rate.NewLimiter(limit, burst), log)
	s.model, s.usage = p.cfg.Model, p.cfg.Usage

	p.add(s)
	log.Infow("New client connected", "active_sessions", p.ActiveSessions())
	defer func() {
		s.disconnect()
		p.remove(id)
	}()

	if err := s.connect(); err != nil {
		metrics.LiveSessionsOpened.WithLabelValues("failed").Inc()
		return
	}
	metrics.LiveSessionsOpened.WithLabelValues("connected").Inc()

	for {
		frame, err := s.conn.Read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnw("Client read error", "error", err)
			}
			return
		}
		if err := s.limiter.Wait(s.ctx); err != nil {
			return
		}

		msg := parseClientFrame(frame)
		metrics.RecordWSMessage("inbound", msg.Type)
		s.handle(msg)
	}
}

func (p *ProxyServer) add(s *LiveSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions[s.id] = s
}

func (p *ProxyServer) remove(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sessions, id)
}

func (p *ProxyServer) list() []*LiveSession {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*LiveSession, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	return out
}

// ActiveSessions returns the number of connected browsers
func (p *ProxyServer) ActiveSessions() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.sessions)
}

// Metrics returns per-session metrics, oldest session first
func (p *ProxyServer) Metrics() []SessionMetrics {
	sessions := p.list()
	out := make([]SessionMetrics, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Metrics())
	}
	return out
}

// SessionSnapshots implements metrics.SessionSource
func (p *ProxyServer) SessionSnapshots() []metrics.SessionSnapshot {
	sessions := p.list()
	out := make([]metrics.SessionSnapshot, 0, len(sessions))
	for _, s := range sessions {
		m := s.Metrics()
		out = append(out, metrics.SessionSnapshot{State: m.State, TurnCount: m.TurnCount, ToolCallsCount: m.ToolCallsCount})
	}
	return out
}

// ReapExpired disconnects sessions older than maxAge and returns how many
func (p *ProxyServer) ReapExpired(maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	reaped := 0
	for _, s := range p.list() {
		if s.Age() < maxAge {
			continue
		}
		p.log.Infow("Closing expired session", "session_id", s.id, "age", s.Age().Round(time.Second))
		s.disconnect()
		reaped++
	}
	return reaped
}

// CloseAll disconnects every session, giving up when ctx is done
func (p *ProxyServer) CloseAll(ctx context.Context) error {
	sessions := p.list()
	if len(sessions) == 0 {
		return nil
	}
	p.log.Infow("Closing relay sessions", "count", len(sessions))

	var g errgroup.Group
	for _, s := range sessions {
		g.Go(func() error {
			s.disconnect()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
