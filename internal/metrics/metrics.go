// Package metrics implements the observability hooks with Prometheus
// collectors and exposes them over HTTP.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/trustlane/pkg/observability"
)

const namespace = "trustlane"

// Metrics holds every collector. It implements observability.PipelineHooks,
// observability.CacheHooks and observability.ExtractHooks.
type Metrics struct {
	Registry *prometheus.Registry

	stageDuration   *prometheus.HistogramVec
	warnings        *prometheus.CounterVec
	expansions      prometheus.Counter
	expandedNodes   prometheus.Histogram
	documentBytes   *prometheus.HistogramVec
	cacheEvents     *prometheus.CounterVec
	cacheBytes      *prometheus.CounterVec
	extractions     *prometheus.CounterVec
	extractAttempts prometheus.Histogram
	extractDuration prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

var (
	_ observability.PipelineHooks = (*Metrics)(nil)
	_ observability.CacheHooks    = (*Metrics)(nil)
	_ observability.ExtractHooks  = (*Metrics)(nil)
)

// New creates collectors on a fresh registry, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"stage", "outcome"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Advisory problems found while rendering.",
		}, []string{"stage"}),
		expansions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expansions_total",
			Help:      "Graphs expanded with placeholder entities.",
		}),
		expandedNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "expanded_graph_nodes",
			Help:      "Node count after expansion.",
			Buckets:   prometheus.LinearBuckets(25, 25, 8),
		}),
		documentBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_bytes",
			Help:      "Size of rendered artifacts.",
			Buckets:   prometheus.ExponentialBuckets(1024, 2, 10),
		}, []string{"format"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Cache hits, misses and writes.",
		}, []string{"key_type", "event"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_written_bytes_total",
			Help:      "Bytes written to the cache.",
		}, []string{"key_type"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Text extractions by generator.",
		}, []string{"source"}),
		extractAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_model_calls",
			Help:      "Model calls per extraction, including repairs.",
			Buckets:   []float64{0, 1, 2, 3, 4},
		}),
		extractDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extract_duration_seconds",
			Help:      "Duration of text extraction.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.stageDuration, m.warnings, m.expansions, m.expandedNodes, m.documentBytes,
		m.cacheEvents, m.cacheBytes,
		m.extractions, m.extractAttempts, m.extractDuration,
		m.httpRequests, m.httpDuration,
	)
	return m
}

// Install registers m as the process-wide observability hooks.
func (m *Metrics) Install() {
	observability.SetPipelineHooks(m)
	observability.SetCacheHooks(m)
	observability.SetExtractHooks(m)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Middleware records request counts and latency labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// =============================================================================
// Hooks
// =============================================================================

func (m *Metrics) OnStageComplete(_ context.Context, stage observability.Stage, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.stageDuration.WithLabelValues(string(stage), outcome).Observe(d.Seconds())
}

func (m *Metrics) OnWarnings(_ context.Context, stage observability.Stage, count int) {
	m.warnings.WithLabelValues(string(stage)).Add(float64(count))
}

func (m *Metrics) OnExpanded(_ context.Context, _, nodes, _ int) {
	m.expansions.Inc()
	m.expandedNodes.Observe(float64(nodes))
}

func (m *Metrics) OnDocument(_ context.Context, format string, size int) {
	m.documentBytes.WithLabelValues(format).Observe(float64(size))
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheEvents.WithLabelValues(keyType, "set").Inc()
	m.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (m *Metrics) OnExtract(_ context.Context, source string, attempts int, d time.Duration) {
	m.extractions.WithLabelValues(source).Inc()
	m.extractAttempts.Observe(float64(attempts))
	m.extractDuration.Observe(d.Seconds())
}
