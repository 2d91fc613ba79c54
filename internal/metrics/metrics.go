// Package metrics provides Prometheus instrumentation for generation and export.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatbox"

// Generation outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeImageAbsent  = "image_absent"
	OutcomeFailed       = "failed"
	OutcomeRejectedBusy = "rejected_busy"
)

// Metrics holds the collectors for one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	GenerationTotal    *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	ExportTotal        *prometheus.CounterVec
	HTTPRequestsTotal  *prometheus.CounterVec
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		GenerationTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "total",
				Help:      "Total number of project generation attempts",
			},
			[]string{"outcome"},
		),
		GenerationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "Project generation duration in seconds",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
			},
		),
		ExportTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "export",
				Name:      "total",
				Help:      "Total number of artifact exports",
			},
			[]string{"kind", "status"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
	}
}

// ObserveGeneration records one finished generation.
func (m *Metrics) ObserveGeneration(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GenerationTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeRejectedBusy {
		m.GenerationDuration.Observe(elapsed.Seconds())
	}
}

// ObserveExport records one export attempt.
func (m *Metrics) ObserveExport(kind string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.ExportTotal.WithLabelValues(kind, status).Inc()
}

// ObserveHTTP records one served HTTP request.
func (m *Metrics) ObserveHTTP(method, route, status string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
