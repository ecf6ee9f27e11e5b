// Package server exposes snapshot-derived dashboard views over
// HTTP.
package server

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"
	gosync "sync"
	"time"

	"github.com/wesm/estateview/internal/config"
	"github.com/wesm/estateview/internal/db"
	"github.com/wesm/estateview/internal/sync"
)

// VersionInfo holds build-time version metadata.
type VersionInfo struct {
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	BuildDate     string `json:"build_date"`
	MinAPIVersion string `json:"min_api_version"`
}

// Server is the HTTP server for the dashboard API.
type Server struct {
	mu      gosync.RWMutex
	cfg     config.Config
	db      *db.DB
	engine  *sync.Engine
	mux     *http.ServeMux
	httpSrv *http.Server
	version VersionInfo
	now     func() time.Time

	// handlerDelay is injected before each timeout-wrapped
	// handler, used only by tests to guarantee handlers
	// exceed a short timeout. Zero in production.
	handlerDelay time.Duration
}

// New creates a new Server. database may be nil when snapshot
// persistence is disabled.
func New(
	cfg config.Config, engine *sync.Engine, database *db.DB,
	opts ...Option,
) *Server {
	s := &Server{
		cfg:    cfg,
		db:     database,
		engine: engine,
		mux:    http.NewServeMux(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the build-time version metadata.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

// WithClock overrides the clock used for export filenames.
// Nil is ignored.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

func (s *Server) routes() {
	s.mux.Handle("GET /api/v1/analytics/sales", s.withTimeout(s.handleSales))
	s.mux.Handle("GET /api/v1/analytics/heatmap", s.withTimeout(s.handleHeatmap))
	s.mux.Handle("GET /api/v1/analytics/locations", s.withTimeout(s.handleLocations))
	s.mux.Handle("GET /api/v1/analytics/activities", s.withTimeout(s.handleActivities))
	s.mux.Handle(
		"GET /api/v1/analytics/activities/options",
		s.withTimeout(s.handleActivityOptions),
	)
	s.mux.Handle("GET /api/v1/analytics/response", s.withTimeout(s.handleResponse))
	// Export and report: Do not use timeout handler to avoid
	// buffering the whole download.
	s.mux.HandleFunc("GET /api/v1/analytics/export", s.handleExport)
	s.mux.HandleFunc("GET /api/v1/analytics/report", s.handleReport)

	// Refresh may stream SSE progress, so it runs without the
	// timeout wrapper.
	s.mux.HandleFunc("POST /api/v1/refresh", s.handleRefresh)
	s.mux.Handle("GET /api/v1/status", s.withTimeout(s.handleStatus))
	s.mux.Handle("GET /api/v1/snapshots", s.withTimeout(s.handleListSnapshots))
	s.mux.Handle("GET /api/v1/version", s.withTimeout(s.handleGetVersion))

	s.mux.HandleFunc("GET /{$}", s.handleReport)
}

func (s *Server) handleGetVersion(
	w http.ResponseWriter, _ *http.Request,
) {
	writeJSON(w, http.StatusOK, s.version)
}

// SetPort updates the listen port (for testing).
func (s *Server) SetPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Port = port
}

// heatmapRows returns the configured heatmap row cap.
func (s *Server) heatmapRows() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.HeatmapRows
}

// SetHeatmapRows updates the default heatmap row cap, e.g.
// after config.json changes.
func (s *Server) SetHeatmapRows(rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.HeatmapRows = rows
}

// Handler returns the http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(logMiddleware(s.mux))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.mu.RLock()
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	s.mu.RUnlock()
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()
	log.Printf("Starting server at http://%s", addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpSrv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// FindAvailablePort finds an available port starting from the
// given port, binding to the specified host.
func FindAvailablePort(host string, start int) int {
	for port := start; port < start+100; port++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port
		}
	}
	return start
}
