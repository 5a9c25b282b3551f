package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusServer serves health, state snapshot, and Prometheus endpoints.
type StatusServer struct {
	server   *http.Server
	snapshot func() any
	logger   *slog.Logger
}

// NewStatusServer creates the HTTP server. snapshot returns the current
// trading state document for the /status endpoint.
func NewStatusServer(addr string, snapshot func() any, logger *slog.Logger) *StatusServer {
	s := &StatusServer{snapshot: snapshot, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start runs the server in the background.
func (s *StatusServer) Start() {
	go func() {
		s.logger.Info("[STATUS] HTTP server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("[STATUS] HTTP server failed", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		s.logger.Error("[STATUS] Failed to encode status", "error", err)
	}
}
