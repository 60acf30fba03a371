package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/cors"

	"geminilab/internal/api/health"
	"geminilab/internal/api/live"
	"geminilab/internal/metrics"
	"geminilab/internal/token"
	"geminilab/pkg/errors"
	"geminilab/pkg/logger"
)

// TokenIssuer hands out ephemeral Live API tokens
type TokenIssuer interface {
	Token(ctx context.Context) (token.Token, error)
}

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Addr           string
	ServiceName    string
	Version        string
	StaticDir      string
	AllowedOrigins []string
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates and configures HTTP server with all routes
func NewServer(cfg ServerConfig, healthHandler *health.Handler, issuer TokenIssuer, proxy *live.ProxyServer, log *logger.Logger) *Server {
	handler := NewHandler(cfg, healthHandler, issuer, proxy, log)

	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:8000"
	}
	log.Infow("HTTP server configured", "addr", addr)

	// no WriteTimeout: /ws/live connections are long-lived
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		log:        log,
	}
}

// NewHandler builds the routed, CORS-wrapped handler
func NewHandler(cfg ServerConfig, healthHandler *health.Handler, issuer TokenIssuer, proxy *live.ProxyServer, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("/ready", healthHandler.HandleReadiness)
	mux.HandleFunc("/live", healthHandler.HandleLiveness)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("GET /api/metrics", func(w http.ResponseWriter, r *http.Request) {
		sessions := proxy.Metrics()
		writeJSON(w, http.StatusOK, map[string]any{
			"active_sessions": len(sessions),
			"sessions":        sessions,
		})
	})
	mux.HandleFunc("POST /api/token", tokenHandler(issuer, log))
	mux.Handle("/ws/live", proxy)

	if dirExists(cfg.StaticDir) {
		mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))
		log.Infow("Serving static files", "dir", cfg.StaticDir)
	}

	// Root endpoint: web client, or service info without one
	index := filepath.Join(cfg.StaticDir, "index.html")
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if cfg.StaticDir != "" && fileExists(index) {
			http.ServeFile(w, r, index)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"status":  "running",
		})
	})

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(mux)
}

func tokenHandler(issuer TokenIssuer, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, err := issuer.Token(r.Context())
		if err != nil {
			log.Errorw("Token generation failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"detail": "Failed to generate token: " + err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, tok.Response())
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func dirExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infow("Starting HTTP server", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
// Waits for active connections to complete within timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("✓ HTTP server stopped")
	return nil
}
