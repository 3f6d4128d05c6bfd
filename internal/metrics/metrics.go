// Package metrics provides Prometheus metrics for pulsetrack.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	UpdatesTotal      *prometheus.CounterVec
	ModelCallDuration *prometheus.HistogramVec
	AlertsTotal       *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsetrack_requests_total",
				Help: "Total number of API requests by route and status.",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulsetrack_request_duration_seconds",
				Help:    "API request processing duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		UpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsetrack_updates_total",
				Help: "Total number of processed status updates by outcome.",
			},
			[]string{"outcome"},
		),
		ModelCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulsetrack_model_call_duration_seconds",
				Help:    "Language-model call duration by outcome.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"outcome"},
		),
		AlertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsetrack_risk_alerts_total",
				Help: "Total risk alerts fired by type and severity.",
			},
			[]string{"type", "severity"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulsetrack_errors_total",
				Help: "Total errors by module and type.",
			},
			[]string{"module", "type"},
		),
		registry: reg,
	}

	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.UpdatesTotal)
	reg.MustRegister(m.ModelCallDuration)
	reg.MustRegister(m.AlertsTotal)
	reg.MustRegister(m.ErrorsTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments the request counter.
func (m *Metrics) RecordRequest(route, status string) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
}

// RecordRequestDuration observes request processing time.
func (m *Metrics) RecordRequestDuration(route string, d time.Duration) {
	m.RequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordUpdate increments the processed-update counter.
func (m *Metrics) RecordUpdate(outcome string) {
	m.UpdatesTotal.WithLabelValues(outcome).Inc()
}

// RecordModelCall observes a language-model call.
func (m *Metrics) RecordModelCall(outcome string, d time.Duration) {
	m.ModelCallDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordAlert increments the risk-alert counter.
func (m *Metrics) RecordAlert(alertType, severity string) {
	m.AlertsTotal.WithLabelValues(alertType, severity).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(module, errType string) {
	m.ErrorsTotal.WithLabelValues(module, errType).Inc()
}
