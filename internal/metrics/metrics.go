// Package metrics provides Prometheus metrics export for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter collects gateway metrics and serves them in Prometheus format.
type Exporter struct {
	registry *prometheus.Registry

	questionRequests *prometheus.CounterVec
	questionLatency  *prometheus.HistogramVec
	uploadedFiles    prometheus.Counter
	reconcilerRuns   *prometheus.CounterVec
}

// NewExporter creates a new metrics exporter backed by its own registry.
func NewExporter() *Exporter {
	registry := prometheus.NewRegistry()

	e := &Exporter{
		registry: registry,
		questionRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "copilot_gateway",
			Name:      "question_requests_total",
			Help:      "Total question requests by mode and outcome.",
		}, []string{"mode", "status"}),
		questionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "copilot_gateway",
			Name:      "question_duration_seconds",
			Help:      "Latency of question handling, end to end.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"mode"}),
		uploadedFiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "copilot_gateway",
			Name:      "uploaded_files_total",
			Help:      "Total files forwarded to the Copilot backend.",
		}),
		reconcilerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "copilot_gateway",
			Name:      "reconciler_runs_total",
			Help:      "Startup reconciliation outcomes.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		e.questionRequests,
		e.questionLatency,
		e.uploadedFiles,
		e.reconcilerRuns,
	)
	return e
}

// ObserveQuestion records one handled question request.
func (e *Exporter) ObserveQuestion(mode, status string, duration time.Duration) {
	e.questionRequests.WithLabelValues(mode, status).Inc()
	e.questionLatency.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveUpload records one forwarded file part.
func (e *Exporter) ObserveUpload() {
	e.uploadedFiles.Inc()
}

// ObserveReconcilerRun records one reconciliation attempt outcome
// ("success", "failure" or "skipped").
func (e *Exporter) ObserveReconcilerRun(outcome string) {
	e.reconcilerRuns.WithLabelValues(outcome).Inc()
}

// Handler returns the HTTP handler serving the registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
