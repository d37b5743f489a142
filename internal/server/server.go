// Package server exposes the assist handler and repository structure over
// HTTP for hosts that cannot link the Go packages directly.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/thellimist/repoctx/internal/assist"
)

const maxRequestBody = 4 << 20

// Assistant is the request handler behind POST /v1/context.
type Assistant interface {
	Handle(ctx context.Context, req assist.Request) assist.Response
}

// StructureSource renders the repository structure.
type StructureSource interface {
	FileStructure(ctx context.Context) string
}

// Server wires the HTTP routes.
type Server struct {
	assistant Assistant
	structure StructureSource
	gatherer  prometheus.Gatherer
	logger    *zap.Logger
}

// New creates a Server. gatherer may be nil to disable /metrics.
func New(assistant Assistant, structure StructureSource, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		assistant: assistant,
		structure: structure,
		gatherer:  gatherer,
		logger:    logger,
	}
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/context", s.handleContext)
	mux.HandleFunc("GET /v1/structure", s.handleStructure)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "ok")
	})
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req assist.Request
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, assist.Response{
			Command: assist.CommandError,
			Error:   "invalid request body: " + err.Error(),
		})
		return
	}
	if req.Prompt == "" {
		s.writeJSON(w, http.StatusBadRequest, assist.Response{
			Command: assist.CommandError,
			Error:   "prompt is required",
		})
		return
	}

	resp := s.assistant.Handle(r.Context(), req)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, s.structure.FileStructure(r.Context()))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}
