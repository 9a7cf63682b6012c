// Package metrics exposes Prometheus collectors for the HTTP layer and the
// answer pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "xme"

// Answer outcomes
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	answers         *prometheus.CounterVec
	answerDuration  *prometheus.HistogramVec
	retrievedDocs   *prometheus.CounterVec
	retrievalErrors *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answers by focus mode and outcome.",
		}, []string{"focus_mode", "outcome"}),
		answerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_duration_seconds",
			Help:      "Time from request to end of stream.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"focus_mode"}),
		retrievedDocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieved_documents_total",
			Help:      "Documents kept after reranking, by type.",
		}, []string{"type"}),
		retrievalErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_errors_total",
			Help:      "Failed retrieval branches.",
		}, []string{"branch"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.answers,
		m.answerDuration,
		m.retrievedDocs,
		m.retrievalErrors,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one HTTP request
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveAnswer records a finished answer
func (m *Metrics) ObserveAnswer(focusMode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(focusMode, outcome).Inc()
	m.answerDuration.WithLabelValues(focusMode).Observe(d.Seconds())
}

// AddDocuments counts documents of one type sent to the model
func (m *Metrics) AddDocuments(docType string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.retrievedDocs.WithLabelValues(docType).Add(float64(n))
}

// RetrievalError counts a failed retrieval branch
func (m *Metrics) RetrievalError(branch string) {
	if m == nil {
		return
	}
	m.retrievalErrors.WithLabelValues(branch).Inc()
}
