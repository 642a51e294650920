// Package server exposes the job registry over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/v0xg/cuagent/internal/jobs"
	"github.com/v0xg/cuagent/internal/metrics"
)

// Jobs is the part of the registry served over HTTP
type Jobs interface {
	Start(prompt string) (string, error)
	Status(id string) (jobs.Job, error)
	StartAndWait(ctx context.Context, prompt string) (jobs.Job, error)
	Cancel(id string) error
	List() []jobs.Job
}

// Server routes job requests to the registry
type Server struct {
	jobs     Jobs
	gatherer prometheus.Gatherer
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// New creates a server. gatherer backs /metrics and m records request metrics; either may be nil.
func New(j Jobs, gatherer prometheus.Gatherer, m *metrics.Collector, logger *zap.Logger) *Server {
	return &Server{
		jobs:     j,
		gatherer: gatherer,
		metrics:  m,
		logger:   logger.Named("server"),
	}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.listJobs)
		r.Post("/", s.startJob)
		r.Post("/wait", s.startAndWait)
		r.Get("/{id}", s.jobStatus)
		r.Delete("/{id}", s.cancelJob)
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

type startRequest struct {
	Prompt string `json:"prompt"`
}

type startResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) startJob(w http.ResponseWriter, r *http.Request) {
	prompt, ok := decodePrompt(w, r)
	if !ok {
		return
	}
	id, err := s.jobs.Start(prompt)
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse{ID: id})
}

func (s *Server) startAndWait(w http.ResponseWriter, r *http.Request) {
	prompt, ok := decodePrompt(w, r)
	if !ok {
		return
	}
	job, err := s.jobs.StartAndWait(r.Context(), prompt)
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) jobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Status(chi.URLParam(r, "id"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.jobs.Cancel(id); err != nil {
		writeJobError(w, err)
		return
	}
	job, err := s.jobs.Status(id)
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobs.List())
}

// observe logs and counts every request by route pattern
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, route, ww.Status(), elapsed)
		}
		s.logger.Debug("Request served",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", chimw.GetReqID(r.Context())))
	})
}

func decodePrompt(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return "", false
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return "", false
	}
	return req.Prompt, true
}

func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrUnknownJob):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, jobs.ErrShuttingDown):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, ErrorResponse{Code: code, Message: message})
}
