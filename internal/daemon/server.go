package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wethinkt/go-sentinel/internal/audit"
	"github.com/wethinkt/go-sentinel/internal/config"
	"github.com/wethinkt/go-sentinel/internal/orchestrator"
	"github.com/wethinkt/go-sentinel/internal/session"
	"github.com/wethinkt/go-sentinel/internal/state"
	"github.com/wethinkt/go-sentinel/internal/version"
	"github.com/wethinkt/go-sentinel/internal/watchlog"
)

// Server is the daemon control API. It exposes status, pause/resume,
// rearm, forced continuation and the audit tail over local HTTP.
type Server struct {
	config    config.ServerConfig
	daemon    *Daemon
	router    chi.Router
	startedAt time.Time
}

// NewServer creates the control server for a daemon.
func NewServer(cfg config.ServerConfig, d *Daemon) *Server {
	if cfg.Port == 0 {
		cfg.Port = config.DefaultPort
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	s := &Server{
		config:    cfg,
		daemon:    d,
		startedAt: time.Now(),
	}
	s.router = s.setupRouter()
	return s
}

// setupRouter configures the control API routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/pause", s.handlePause)
		r.Post("/resume", s.handleResume)
		r.Post("/rearm", s.handleRearm)
		r.Post("/sessions/force-new", s.handleForceNew)
		r.Get("/audit", s.handleAudit)
		r.Get("/health", s.handleHealth)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// ListenAndServe starts the control server and blocks until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Addr(),
		Handler: s.router,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if s.config.Port == 0 {
		s.config.Port = ln.Addr().(*net.TCPAddr).Port
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	watchlog.Log.Info("Control API listening", "addr", srv.Addr)
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Addr returns the server address string.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// StatusResponse is the /v1/status payload.
type StatusResponse struct {
	Version  string                `json:"version"`
	Uptime   string                `json:"uptime"`
	Monitor  orchestrator.Snapshot `json:"monitor"`
	Stats    Stats                 `json:"stats"`
	Sessions int                   `json:"sessions"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.daemon.mu.Lock()
	sessions := len(s.daemon.records)
	s.daemon.mu.Unlock()

	writeJSON(w, http.StatusOK, StatusResponse{
		Version:  version.Get(),
		Uptime:   time.Since(s.startedAt).Round(time.Second).String(),
		Monitor:  s.daemon.orch.Status(),
		Stats:    s.daemon.stats.Snapshot(),
		Sessions: sessions,
	})
}

// TransitionResponse reports a daemon state change.
type TransitionResponse struct {
	State string `json:"state"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.transition(w, state.Paused)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.transition(w, state.Monitoring)
}

func (s *Server) transition(w http.ResponseWriter, to state.State) {
	if err := s.daemon.gate.Transition(to); err != nil {
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
		return
	}
	watchlog.Log.Info("Daemon state changed", "state", to)
	writeJSON(w, http.StatusOK, TransitionResponse{State: to.String()})
}

// RearmRequest names the session to clear crash loop suspension for.
type RearmRequest struct {
	Session string `json:"session"`
}

func (s *Server) handleRearm(w http.ResponseWriter, r *http.Request) {
	var req RearmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Session == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "session is required")
		return
	}
	was := s.daemon.orch.Rearm(req.Session)
	writeJSON(w, http.StatusOK, map[string]any{"session": req.Session, "was_suspended": was})
}

// ForceNewRequest names the session to continue in a fresh session file.
type ForceNewRequest struct {
	Session string `json:"session"`
}

func (s *Server) handleForceNew(w http.ResponseWriter, r *http.Request) {
	var req ForceNewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Session == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "session is required")
		return
	}

	rec, err := session.Extract(req.Session)
	if err != nil {
		writeError(w, http.StatusNotFound, "no_session", err.Error())
		return
	}

	outcome, err := s.daemon.orch.ForceNew(r.Context(), req.Session, rec)
	if err != nil {
		writeError(w, http.StatusConflict, "in_flight", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": req.Session, "outcome": outcome.String()})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	n := 20
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "n must be a positive integer")
			return
		}
		n = parsed
	}

	entries, err := audit.Tail(s.daemon.auditPath, n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "audit_read", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  s.daemon.gate.Current().String(),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, err string, msg string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: msg})
}
