// Package server exposes the termination handler over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/reaper/internal/terminator"
)

const maxRequestBytes = 1 << 20

// Config holds server configuration.
type Config struct {
	Addr string
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

// Server serves invocations over HTTP.
type Server struct {
	handler     *terminator.Handler
	metrics     http.Handler
	router      *chi.Mux
	server      *http.Server
	startTime   time.Time
	invocations atomic.Int64
}

// New creates a new server instance.
func New(cfg Config, handler *terminator.Handler) *Server {
	s := &Server{
		handler:   handler,
		metrics:   cfg.Metrics,
		router:    chi.NewRouter(),
		startTime: time.Now(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/invoke", s.handleInvoke)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
}

// Router returns the chi router (for tests).
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting http server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	s.invocations.Add(1)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeResult(w, terminator.BadRequest(fmt.Errorf("read request: %w", err)))
		return
	}

	req, err := terminator.DecodeRequest(payload)
	if err != nil {
		writeResult(w, terminator.BadRequest(err))
		return
	}

	writeResult(w, s.handler.Handle(r.Context(), req))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Health())
}

// Health returns server health status.
func (s *Server) Health() HealthStatus {
	return HealthStatus{
		Status:      "healthy",
		Uptime:      int64(time.Since(s.startTime).Seconds()),
		Invocations: s.invocations.Load(),
	}
}

// HealthStatus represents server health.
type HealthStatus struct {
	Status      string `json:"status"`
	Uptime      int64  `json:"uptime_seconds"`
	Invocations int64  `json:"invocations"`
}

func writeResult(w http.ResponseWriter, result *terminator.Result) {
	writeJSON(w, result.StatusCode, result.Body)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("write response")
	}
}
