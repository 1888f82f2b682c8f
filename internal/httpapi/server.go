// Package httpapi serves the extraction results over HTTP and hosts the MCP
// SSE transport in server mode.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	pdferrors "github.com/a3tai/syllabus-extractor/internal/pdf/errors"
	"github.com/a3tai/syllabus-extractor/internal/service"
)

// Server is the HTTP front end of the service.
type Server struct {
	svc    *service.Service
	sse    *server.SSEServer
	logger *zap.Logger
	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithMCP mounts the MCP SSE transport at /sse and /message. baseURL is the
// externally reachable address announced to SSE clients.
func WithMCP(mcpServer *server.MCPServer, baseURL string) Option {
	return func(s *Server) {
		s.sse = server.NewSSEServer(mcpServer, server.WithBaseURL(baseURL))
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates the HTTP server and its routes.
func New(svc *service.Service, opts ...Option) *Server {
	s := &Server{svc: svc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/documents", s.handleDocuments)
		r.Get("/summary", s.handleSummary)
		r.Get("/objectives", s.handleObjectives)
		r.Get("/runs", s.handleRuns)
		r.Post("/runs", s.handleRunBatch)
	})

	if s.sse != nil {
		r.Handle("/sse", s.sse.SSEHandler())
		r.Handle("/message", s.sse.MessageHandler())
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.sse != nil {
		if err := s.sse.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("SSE shutdown", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.ListDocuments(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.LatestSummary(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleObjectives(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	difficulty, err := intParam(values.Get("difficulty"))
	if err != nil || difficulty < 0 || difficulty > 3 {
		writeError(w, http.StatusBadRequest, errors.New("difficulty must be 1, 2 or 3"))
		return
	}
	limit, err := intParam(values.Get("limit"))
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
		return
	}

	result, err := s.svc.QueryObjectives(r.Context(), service.Query{
		Section:    values.Get("section"),
		Difficulty: difficulty,
		Skill:      values.Get("skill"),
		Text:       values.Get("q"),
		SourceFile: values.Get("source_file"),
		Limit:      limit,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("limit must be an integer"))
		return
	}
	runs, err := s.svc.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	report, err := s.svc.RunBatch(r.Context(), force)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if !report.Written {
		writeJSON(w, http.StatusOK, map[string]any{"run_id": report.RunID, "written": false})
		return
	}
	writeJSON(w, http.StatusOK, report.Summary)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNoResults):
		return http.StatusNotFound
	case pdferrors.IsType(err, pdferrors.ErrorTypeInputDirectory):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
