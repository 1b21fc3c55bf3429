// Package monitor serves a built occupancy map over HTTP: health, JSON
// metadata, the rendered PNG, an interactive scatter view and, when a
// database is configured, the history of build runs.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/gridmap/internal/grid"
	"github.com/banshee-data/gridmap/internal/httputil"
	"github.com/banshee-data/gridmap/internal/logger"
	"github.com/banshee-data/gridmap/internal/mapping"
	"github.com/banshee-data/gridmap/internal/store"
	"github.com/banshee-data/gridmap/internal/version"
)

// MapState is the map currently being served.
type MapState struct {
	Source    string
	RunID     string
	Summary   mapping.BuildSummary
	Occupancy *grid.Map[mapping.Occupancy]
	Stats     mapping.OccupancyStats
}

// Config configures a Server.
type Config struct {
	Address   string
	Runs      *store.RunStore      // optional
	Snapshots *store.SnapshotStore // optional; enables /api/runs/<id>/map.png
}

// Server is the map monitor HTTP server.
type Server struct {
	address   string
	runs      *store.RunStore
	snapshots *store.SnapshotStore
	server    *http.Server
	started   time.Time

	mu    sync.RWMutex
	state *MapState
}

// NewServer creates a server; call SetMap before or after Start.
func NewServer(cfg Config) *Server {
	s := &Server{
		address:   cfg.Address,
		runs:      cfg.Runs,
		snapshots: cfg.Snapshots,
		started:   time.Now(),
	}
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// SetMap replaces the served map.
func (s *Server) SetMap(state *MapState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Server) current() *MapState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/map", s.handleMap)
	mux.HandleFunc("/map.png", s.handleMapPNG)
	mux.HandleFunc("/map.html", s.handleMapChart)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRun)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully. It
// returns early with an error if the listener cannot be opened.
func (s *Server) Start(ctx context.Context) error {
	log := logger.Named("monitor")

	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.address, err)
	}
	s.mu.Lock()
	s.address = ln.Addr().String()
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting HTTP server on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("serve %s: %w", s.address, err)
	}
	log.Infof("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP server shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			log.Warnf("HTTP server force close error: %v", err)
		}
	}
	log.Infof("HTTP server routine stopped")
	return nil
}

// Addr returns the listen address; after Start it is the bound address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":     "ok",
		"service":    "gridmap",
		"version":    version.Version,
		"map_loaded": s.current() != nil,
		"uptime_s":   int(time.Since(s.started).Seconds()),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	src := "no map loaded"
	if st := s.current(); st != nil {
		src = st.Source
	}
	body := fmt.Sprintf(indexHTML, html.EscapeString(src))
	httputil.WriteBody(w, "text/html; charset=utf-8", []byte(body))
}

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>gridmap</title></head>
<body>
	<h1>gridmap</h1>
	<p>Source: %s</p>
	<ul>
		<li><a href="/map.png">Map image</a></li>
		<li><a href="/map.html">Interactive map</a></li>
		<li><a href="/api/map">Map metadata</a></li>
		<li><a href="/api/runs">Build runs</a></li>
		<li><a href="/health">Health check</a></li>
	</ul>
</body>
</html>`
