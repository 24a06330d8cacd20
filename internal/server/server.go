// Package server exposes the resolver over HTTP.
//
// Routes:
//
//	POST /resolve          {"prompt": "..."} -> {"matched": Entry|null, "files": [...], "tags": [...]}
//	GET  /download?key=K   raw object bytes as an attachment
//	GET  /templates        the catalog index as JSON
//	GET  /healthz          liveness
//	GET  /metrics          Prometheus metrics
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fastertools/devlaunch/internal/apperr"
	"github.com/fastertools/devlaunch/internal/resolver"
)

// RequestIDHeader carries the per-request ID.
const RequestIDHeader = "X-Request-ID"

const maxBodyBytes = 1 << 20

// Server serves the resolution API.
type Server struct {
	svc     resolver.Catalog
	logger  *slog.Logger
	metrics *metrics
	handler http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a server backed by svc.
func New(svc resolver.Catalog, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		logger:  slog.New(slog.DiscardHandler),
		metrics: newMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /resolve", s.instrument("resolve", s.handleResolve))
	mux.HandleFunc("GET /download", s.instrument("download", s.handleDownload))
	mux.HandleFunc("GET /templates", s.instrument("templates", s.handleTemplates))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	s.handler = s.withRequestID(mux)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.start", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("server.shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type resolveRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON body"})
		return
	}

	res, err := s.svc.Resolve(r.Context(), req.Prompt)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if res.Matched != nil {
		s.metrics.resolutions.WithLabelValues("matched").Inc()
	} else {
		s.metrics.resolutions.WithLabelValues("unmatched").Inc()
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	body, err := s.svc.Open(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() { _ = body.Close() }()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(key)}))
	w.WriteHeader(http.StatusOK)
	if n, err := io.Copy(w, body); err != nil {
		s.logger.Warn("download interrupted", "key", key, "bytes", n, "request_id", w.Header().Get(RequestIDHeader), "error", err)
	}
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	idx, err := s.svc.Catalog(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	body := errorBody{Error: "Internal server error", Kind: apperr.KindOf(err).String()}

	var ae *apperr.Error
	if status < http.StatusInternalServerError && errors.As(err, &ae) && ae.Message != "" {
		body.Error = ae.Message
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", w.Header().Get(RequestIDHeader), "error", err)
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
