// Package metrics exposes Prometheus collectors for the HTTP layer and the
// upload pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload outcomes recorded in attachment_uploads_total.
const (
	OutcomeOK              = "ok"
	OutcomeInvalidArgument = "invalid_argument"
	OutcomeInternal        = "internal"
)

// Metrics owns a private registry so tests and multiple servers never
// collide on the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	// RequestCounter counts HTTP requests by method, route pattern and status.
	RequestCounter *prometheus.CounterVec
	// RequestDuration observes HTTP request latency by method and route pattern.
	RequestDuration *prometheus.HistogramVec
	// Uploads counts attachment uploads by outcome.
	Uploads *prometheus.CounterVec
	// UploadBytes observes the decoded size of stored attachments.
	UploadBytes prometheus.Histogram
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "attachment_uploads_total",
				Help: "Attachment uploads by outcome",
			},
			[]string{"outcome"},
		),
		UploadBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "attachment_upload_bytes",
				Help:    "Decoded size of stored attachments in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8), // 1KiB .. 16MiB
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestCounter,
		m.RequestDuration,
		m.Uploads,
		m.UploadBytes,
	)

	// Pre-create outcome series so dashboards see zeros instead of gaps.
	for _, o := range []string{OutcomeOK, OutcomeInvalidArgument, OutcomeInternal} {
		m.Uploads.WithLabelValues(o)
	}

	return m
}

// ObserveUpload records one upload attempt. size is ignored unless outcome is OutcomeOK.
func (m *Metrics) ObserveUpload(outcome string, size int) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		m.UploadBytes.Observe(float64(size))
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
