// Package monitor serves the local observability surface of a running
// translator: liveness and readiness probes, Prometheus metrics, and a
// WebSocket feed of live captions and capture levels.
//
// Endpoints:
//
//   - /healthz — liveness; always 200 once the process serves HTTP.
//   - /readyz  — readiness; 200 only when every configured [Checker] passes.
//   - /metrics — Prometheus scrape endpoint.
//   - /ws      — live caption hub, see [Hub].
//
// The server is meant to bind a loopback address. It carries no
// authentication.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/parley/internal/observe"
)

const (
	// checkTimeout bounds a single readiness check.
	checkTimeout = 5 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// Checker is a named readiness probe. Check returns nil when the dependency
// is healthy.
type Checker struct {
	// Name appears as a key in the /readyz JSON response, e.g. "audio",
	// "history", "engines".
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// Config configures a monitor [Server].
type Config struct {
	// Addr is the listen address, e.g. "127.0.0.1:8811".
	Addr string

	// Metrics instruments the HTTP handlers. Nil falls back to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Checkers are evaluated in order on each /readyz request.
	Checkers []Checker
}

// Server is the monitor HTTP server. Create one with [New], run it with
// [Server.ListenAndServe], and stop it with [Server.Shutdown].
type Server struct {
	hub      *Hub
	checkers []Checker
	srv      *http.Server
	handler  http.Handler
}

// New builds a Server with all routes mounted behind the observability
// middleware.
func New(cfg Config) *Server {
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}

	s := &Server{
		hub:      NewHub(),
		checkers: slices.Clone(cfg.Checkers),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /readyz", s.readyz)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /ws", s.hub)

	s.handler = observe.Middleware(m)(mux)
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Hub returns the caption hub so the application can publish events into it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the full middleware-wrapped handler. Intended for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe blocks serving HTTP until [Server.Shutdown] is called or the
// listener fails. A graceful shutdown returns nil.
func (s *Server) ListenAndServe() error {
	slog.Info("monitor listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}

// Serve is like [Server.ListenAndServe] but accepts connections on ln. It
// lets the caller bind the listener up front so address errors surface
// before the serve loop starts.
func (s *Server) Serve(ln net.Listener) error {
	slog.Info("monitor listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}

// Shutdown disconnects all caption subscribers and drains in-flight HTTP
// requests. WebSocket connections are hijacked from the HTTP server, so the
// hub must be closed explicitly; [http.Server.Shutdown] alone would not end
// them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.srv.Shutdown(ctx)
}

// probeResult is the JSON body of /healthz and /readyz responses.
type probeResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthz reports liveness. A process that can serve HTTP is alive.
func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, probeResult{Status: "ok"})
}

// readyz runs every checker sequentially, each under its own [checkTimeout],
// and reports 503 when any fails.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.checkers))
	allOK := true

	for _, c := range s.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := probeResult{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
