// Package server exposes the acquisition engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/fullres/internal/acquire/engine"
	"github.com/vietddude/fullres/internal/core/domain"
)

// Status is the aggregate health of the service.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

// Pinger checks a backing dependency such as Redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server provides the acquisition API plus health and metrics endpoints.
type Server struct {
	engine *engine.Engine
	deps   map[string]Pinger
	server *http.Server
	log    *slog.Logger
}

// NewServer creates a new server on port. deps are pinged by /health.
func NewServer(e *engine.Engine, port int, deps map[string]Pinger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		engine: e,
		deps:   deps,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: slog.Default().With("component", "server"),
	}

	mux.HandleFunc("POST /acquire", s.handleAcquire)
	mux.HandleFunc("GET /instances", s.handleInstances)
	mux.HandleFunc("GET /instances/{id}", s.handleInstance)
	mux.HandleFunc("GET /strategies", s.handleStrategies)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleAcquire(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	inst, err := s.engine.Acquire(r.Context(), req)
	switch {
	case errors.Is(err, domain.ErrReentrantCall):
		writeJSON(w, http.StatusConflict, inst)
	case errors.Is(err, domain.ErrEmptyID), errors.Is(err, domain.ErrNoSource):
		writeError(w, http.StatusBadRequest, err)
	case err != nil:
		s.log.Error("Acquire failed", "id", req.ID, "error", err)
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, inst)
	}
}

func (s *Server) handleInstances(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Instances())
}

func (s *Server) handleInstance(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.engine.Instance(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("instance %q not found", r.PathValue("id")))
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

type strategyInfo struct {
	Name string `json:"name"`
	Tag  string `json:"tag,omitempty"`
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	all := s.engine.Strategies().All()
	result := make([]strategyInfo, len(all))
	for i, st := range all {
		result[i] = strategyInfo{Name: st.Name(), Tag: st.Tag()}
	}
	writeJSON(w, http.StatusOK, result)
}

// DetailedReport is the body of /health/detailed.
type DetailedReport struct {
	Status    Status               `json:"status"`
	Deps      map[string]string    `json:"deps,omitempty"`
	Instances map[domain.State]int `json:"instances"`
	Sources   struct {
		Failed    int `json:"failed"`
		Succeeded int `json:"succeeded"`
	} `json:"sources"`
}

func (s *Server) check(ctx context.Context) (Status, map[string]string) {
	status := StatusHealthy
	deps := make(map[string]string, len(s.deps))
	for name, dep := range s.deps {
		if err := dep.Ping(ctx); err != nil {
			deps[name] = err.Error()
			status = StatusDegraded
			continue
		}
		deps[name] = "ok"
	}
	return status, deps
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, _ := s.check(r.Context())

	code := http.StatusOK
	if status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	var report DetailedReport
	report.Status, report.Deps = s.check(r.Context())
	report.Instances = s.engine.CountByState()

	stats, err := s.engine.SourceStats(r.Context())
	if err != nil {
		report.Status = StatusDegraded
	}
	report.Sources.Failed = stats.Failed
	report.Sources.Succeeded = stats.Succeeded

	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
