// Package metrics holds the Prometheus collectors of the journal server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dreamjournal"

// Journal operations counted by JournalOps.
const (
	OpEntryCreate   = "entry_create"
	OpEntryDelete   = "entry_delete"
	OpCommentCreate = "comment_create"
	OpCommentDelete = "comment_delete"
)

// Metrics is a set of collectors registered in a private registry, so several
// servers (tests) can live in one process.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	journalOps      *prometheus.CounterVec
	authEvents      *prometheus.CounterVec
}

// New creates the collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		journalOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_operations_total",
			Help:      "Successful journal mutations by operation.",
		}, []string{"op"}),
		authEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Identity provider events by kind and result.",
		}, []string{"event", "result"}),
	}
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(route, method string, code int, d time.Duration) {
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// JournalOp counts a successful journal mutation
func (m *Metrics) JournalOp(op string) {
	m.journalOps.WithLabelValues(op).Inc()
}

// AuthEvent counts login/register/refresh outcomes
func (m *Metrics) AuthEvent(event string, ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.authEvents.WithLabelValues(event, result).Inc()
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
