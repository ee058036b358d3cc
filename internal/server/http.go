// Package server exposes the HTTP and websocket surface of the voicebridge
// daemon: session negotiation, the live event stream, health checks, and
// Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	orchestration "github.com/voceto/voicebridge-core/core"
	"github.com/voceto/voicebridge-core/internal/metrics"
)

// Server hosts the voicebridge HTTP API.
type Server struct {
	server         *http.Server
	logger         *slog.Logger
	orchestrator   *orchestration.Orchestrator
	metrics        *metrics.Metrics
	newTranscriber TranscriberFactory

	startTime time.Time
}

// NewServer creates the HTTP API server on the given port. A nil transcriber
// factory disables server-side transcription; clients then stream transcript
// fragments instead of audio.
func NewServer(port int, logger *slog.Logger, orchestrator *orchestration.Orchestrator, m *metrics.Metrics, transcribers TranscriberFactory) *Server {
	s := &Server{
		logger:         logger,
		orchestrator:   orchestrator,
		metrics:        m,
		newTranscriber: transcribers,
		startTime:      time.Now(),
	}

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.withMetrics("/healthz", s.handleHealth))

	// Websocket upgrades manage their own lifetime; no response-writer wrapping.
	mux.HandleFunc("/v1/session", s.handleSession)

	mux.Handle("/metrics", promhttp.Handler())
}

// withMetrics wraps an HTTP handler with request metrics collection.
func (s *Server) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(ww, r)

		if s.metrics != nil {
			duration := time.Since(startTime).Seconds()
			s.metrics.RecordHTTPRequest(r.Method, endpoint, fmt.Sprintf("%d", ww.statusCode), duration)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start begins serving in the background.
func (s *Server) Start() {
	s.logger.Info("starting http server", slog.String("address", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", slog.String("error", err.Error()))
		}
	}()
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping http server")
	return s.server.Shutdown(ctx)
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startTime).String(),
		"service": map[string]any{
			"name": "voicebridge",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
