// Package metrics provides Prometheus metrics for the quote engine
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	TransitionsTotal    *prometheus.CounterVec
	AuditWriteFailures  prometheus.Counter
	EmailDispatchTotal  *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TransitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotes_transitions_total",
				Help: "Committed quote transitions by action",
			},
			[]string{"action"},
		),
		AuditWriteFailures: f.NewCounter(
			prometheus.CounterOpts{
				Name: "quotes_audit_write_failures_total",
				Help: "Audit batches that failed to persist after the mutation committed",
			},
		),
		EmailDispatchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotes_email_dispatch_total",
				Help: "Customer emails by kind and result",
			},
			[]string{"kind", "result"},
		),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotes_http_requests_total",
				Help: "HTTP requests by method and status",
			},
			[]string{"method", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotes_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}

// Transition counts a committed transition.
func (m *Metrics) Transition(action string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(action).Inc()
}

// AuditWriteFailed counts a lost audit batch.
func (m *Metrics) AuditWriteFailed() {
	if m == nil {
		return
	}
	m.AuditWriteFailures.Inc()
}

// EmailDispatched counts one dispatch attempt.
func (m *Metrics) EmailDispatched(kind string, ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.EmailDispatchTotal.WithLabelValues(kind, result).Inc()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}
