// Package server provides the local HTTP surface of handsignal: binding
// management, call history, the overlay feed and metrics.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ayusman/handsignal/internal/plugin"
	"github.com/ayusman/handsignal/internal/server/api"
	"github.com/ayusman/handsignal/internal/store"
)

// Config holds the server configuration. Every dependency is optional and
// its routes are only registered when it is set.
type Config struct {
	StaticDir string
	Store     *store.Store
	Overlay   OverlaySource
	Plugins   *plugin.Manager
	Metrics   prometheus.Gatherer
	Logger    *slog.Logger
}

// Server represents the HTTP server for the handsignal application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	logger *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		logger: logger,
		done:   make(chan struct{}),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		// A nil *plugin.Manager must stay a nil interface or the handler
		// would call Get on it.
		var plugins api.PluginLookup
		if s.config.Plugins != nil {
			plugins = s.config.Plugins
		}

		bindings := api.NewBindingHandler(s.config.Store, plugins)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)

		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	if s.config.Overlay != nil {
		s.mux.HandleFunc("/api/overlay", s.handleOverlay)
		s.mux.Handle("/api/overlay/ws", NewOverlayHandler(s.config.Overlay, s.done, s.logger))
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.config.Metrics, promhttp.HandlerOpts{}))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close ends every open overlay WebSocket. http.Server.Shutdown does not
// track hijacked connections, so callers shut down with both.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// handleOverlay handles GET /api/overlay with the latest polled state.
func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.config.Overlay.Latest()); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
