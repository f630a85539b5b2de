// Package server implements the trustlane HTTP API on a chi router.
//
// Routes:
//
//	POST /api/generate   text description → draw.io attachment
//	POST /api/render     graph JSON → artifact (?format=drawio|svg|dot|layout)
//	POST /api/validate   graph JSON → normalized summary or field errors
//	GET  /api/schema     JSON Schema of the graph payload
//	GET  /api/sample     sample description text
//	GET  /api/health     liveness and build information
//	GET  /metrics        Prometheus exposition (when metrics are enabled)
//
// Validation failures answer 422 with {"errors": [...]}; everything else
// that goes wrong answers 500 with the same shape.
package server

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/trustlane/internal/metrics"
	"github.com/matzehuels/trustlane/pkg/extract"
	"github.com/matzehuels/trustlane/pkg/pipeline"
)

// DownloadFilename is the attachment name of generated documents.
const DownloadFilename = "security_architecture.drawio"

const defaultMaxBodyBytes = 1 << 20

//go:embed sample_input.txt
var sampleText string

// Config wires a Server.
type Config struct {
	Runner    *pipeline.Runner
	Extractor *extract.Extractor
	Logger    *log.Logger
	// Metrics enables /metrics and request instrumentation when non-nil.
	Metrics *metrics.Metrics
	// Defaults are the pipeline options requests start from.
	Defaults     pipeline.Options
	MaxBodyBytes int64
}

// Server serves the HTTP API.
type Server struct {
	runner    *pipeline.Runner
	extractor *extract.Extractor
	logger    *log.Logger
	metrics   *metrics.Metrics
	defaults  pipeline.Options
	maxBody   int64
}

// New creates a Server. A nil runner or extractor gets an uncached default.
func New(cfg Config) *Server {
	s := &Server{
		runner:    cfg.Runner,
		extractor: cfg.Extractor,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		defaults:  cfg.Defaults,
		maxBody:   cfg.MaxBodyBytes,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.runner == nil {
		s.runner = pipeline.NewRunner(nil, nil, s.logger)
	}
	if s.extractor == nil {
		s.extractor = extract.New(extract.WithLogger(s.logger))
	}
	if s.maxBody <= 0 {
		s.maxBody = defaultMaxBodyBytes
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Post("/render", s.handleRender)
		r.Post("/validate", s.handleValidate)
		r.Get("/schema", s.handleSchema)
		r.Get("/sample", s.handleSample)
		r.Get("/health", s.handleHealth)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
