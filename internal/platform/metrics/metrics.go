// Package metrics exposes Prometheus metrics for the detection service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "teabot"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	predictions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	latency     prometheus.Histogram
	confidence  prometheus.Histogram
}

// New creates the collectors and registers them together with the Go and
// process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disease_predictions_total",
			Help:      "Successful detections by predicted disease.",
		}, []string{"disease"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disease_prediction_errors_total",
			Help:      "Failed detections by error code.",
		}, []string{"code"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_duration_seconds",
			Help:      "End-to-end detection latency including image resolution.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "detection_confidence",
			Help:      "Objectness score of the winning candidate.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}

	registry.MustRegister(
		m.predictions,
		m.failures,
		m.latency,
		m.confidence,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObservePrediction records a successful detection.
func (m *Metrics) ObservePrediction(label string, confidence float32, elapsed time.Duration) {
	m.predictions.WithLabelValues(label).Inc()
	m.latency.Observe(elapsed.Seconds())
	m.confidence.Observe(float64(confidence))
}

// ObserveFailure records a failed detection.
func (m *Metrics) ObserveFailure(code string) {
	m.failures.WithLabelValues(code).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
