// Package server exposes the OpenAI-compatible HTTP API: one model listing
// and one chat completions endpoint per feature (rag, course, qcm).
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mentora-ai/mentora/pkg/auth"
	"github.com/mentora-ai/mentora/pkg/config"
	"github.com/mentora-ai/mentora/pkg/llms"
	"github.com/mentora-ai/mentora/pkg/observability"
	"github.com/mentora-ai/mentora/pkg/rag"
	"github.com/mentora-ai/mentora/pkg/utils"
)

// RAGService answers questions against a collection, streaming or not.
type RAGService interface {
	StreamRAG(ctx context.Context, collection, question string, topK int) <-chan rag.Event
	Query(ctx context.Context, collection, question string, topK int) (string, []rag.UsedSource, error)
}

// CourseService builds a full course document for a subject.
type CourseService interface {
	Build(ctx context.Context, collection, subject string) <-chan rag.Event
}

// QCMService advances a quiz conversation by one turn.
type QCMService interface {
	HandleTurn(ctx context.Context, collection string, messages []llms.Message) <-chan rag.Event
}

// Server routes HTTP requests to the three feature services.
type Server struct {
	cfg      *config.Config
	registry *config.Registry
	rag      RAGService
	course   CourseService
	qcm      QCMService

	validator *auth.Validator
	metrics   *observability.Metrics

	router  chi.Router
	server  *http.Server
	started int64

	counterOnce sync.Once
	counter     *utils.TokenCounter
}

// Option configures the server.
type Option func(*Server)

// WithAuth enables bearer token authentication on all routes except
// /health and /metrics.
func WithAuth(v *auth.Validator) Option {
	return func(s *Server) {
		s.validator = v
	}
}

// WithMetrics enables the Prometheus /metrics endpoint and per-request
// HTTP metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a server for the given services.
func New(cfg *config.Config, registry *config.Registry, ragSvc RAGService, courseSvc CourseService, qcmSvc QCMService, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		rag:      ragSvc,
		course:   courseSvc,
		qcm:      qcmSvc,
		started:  time.Now().Unix(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the fully assembled HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.loggingMiddleware)
	r.Use(corsMiddleware)
	if s.validator != nil {
		r.Use(s.validator.Middleware("/health", "/metrics"))
	}

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/rag/api", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Post("/chat/completions", s.handleRAGChat)
	})
	r.Route("/course/api", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Post("/chat/completions", s.handleCourseChat)
	})
	r.Route("/qcm/api", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Post("/chat/completions", s.handleQCMChat)
	})

	return r
}

// Start runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        s.cfg.Server.Address(),
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// No write timeout: course generation streams for minutes.
		IdleTimeout: 120 * time.Second,
	}

	slog.Info("http server starting", "address", s.cfg.Server.Address())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	slog.Info("http server shutting down")
	return s.server.Shutdown(shutdownCtx)
}

// statusWriter records the response status for logging and metrics while
// forwarding Flush so SSE handlers keep working through the middleware.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		duration := time.Since(start)

		if s.metrics != nil {
			s.metrics.ObserveHTTP(r.URL.Path, sw.status, duration)
		}
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", duration,
		)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
