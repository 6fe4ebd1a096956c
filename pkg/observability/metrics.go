// Package observability exposes the Prometheus metrics of the service.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service counters and histograms behind one registry.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	retrievalDuration *prometheus.HistogramVec
	retrievalFailures *prometheus.CounterVec
	llmCalls          *prometheus.CounterVec
	llmDuration       *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentora_http_requests_total",
			Help: "HTTP requests by path and status.",
		}, []string{"path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mentora_http_request_duration_seconds",
			Help:    "HTTP request duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		retrievalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mentora_retrieval_duration_seconds",
			Help:    "Hybrid retrieval duration by collection.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"collection"}),
		retrievalFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentora_retrieval_backend_failures_total",
			Help: "Retrieval backend failures by backend name.",
		}, []string{"backend"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mentora_llm_calls_total",
			Help: "LLM calls by model and outcome.",
		}, []string{"model", "outcome"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mentora_llm_call_duration_seconds",
			Help:    "LLM call duration by model.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"model"}),
	}

	registry.MustRegister(
		m.httpRequests, m.httpDuration,
		m.retrievalDuration, m.retrievalFailures,
		m.llmCalls, m.llmDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(path string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(path, httpStatusClass(status)).Inc()
	m.httpDuration.WithLabelValues(path).Observe(duration.Seconds())
}

func (m *Metrics) ObserveRetrieval(collection string, duration time.Duration) {
	m.retrievalDuration.WithLabelValues(collection).Observe(duration.Seconds())
}

func (m *Metrics) RecordBackendFailure(backend string) {
	m.retrievalFailures.WithLabelValues(backend).Inc()
}

func (m *Metrics) RecordLLMCall(model string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.llmCalls.WithLabelValues(model, outcome).Inc()
	m.llmDuration.WithLabelValues(model).Observe(duration.Seconds())
}

func httpStatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
