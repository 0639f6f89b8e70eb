// Package metrics holds the prometheus collectors of the engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ivrflow"

// Metrics bundles the collectors and the registry they are exposed from.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	webhooksTotal    *prometheus.CounterVec
	webhookDuration  *prometheus.HistogramVec
	nodeExecutions   *prometheus.CounterVec
	callsEnded       *prometheus.CounterVec
	callsActive      prometheus.Gauge
	audioJobs        *prometheus.CounterVec
	synthesisTotal   *prometheus.CounterVec
	synthesisLatency prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		webhooksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhooks_total",
				Help:      "Telephony webhooks handled",
			},
			[]string{"kind", "outcome"},
		),
		webhookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "webhook_duration_seconds",
				Help:      "Time spent building a call-control response",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"kind"},
		),
		nodeExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_executions_total",
				Help:      "Node handler invocations",
			},
			[]string{"node_type", "status"}, // status: success, error
		),
		callsEnded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_ended_total",
				Help:      "Executions that reached a terminal status",
			},
			[]string{"status"},
		),
		callsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "calls_active",
				Help:      "Executions started and not yet ended by this process",
			},
		),
		audioJobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audio_jobs_total",
				Help:      "Audio jobs by terminal status",
			},
			[]string{"status"},
		),
		synthesisTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "synthesis_requests_total",
				Help:      "Speech synthesis attempts",
			},
			[]string{"status"},
		),
		synthesisLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "synthesis_duration_seconds",
				Help:      "Duration of speech synthesis calls",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.webhooksTotal,
		m.webhookDuration,
		m.nodeExecutions,
		m.callsEnded,
		m.callsActive,
		m.audioJobs,
		m.synthesisTotal,
		m.synthesisLatency,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveWebhook(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.webhooksTotal.WithLabelValues(kind, outcome).Inc()
	m.webhookDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) NodeExecuted(nodeType string, success bool) {
	if m == nil {
		return
	}

	m.nodeExecutions.WithLabelValues(nodeType, status(success)).Inc()
}

func (m *Metrics) CallStarted() {
	if m == nil {
		return
	}

	m.callsActive.Inc()
}

func (m *Metrics) CallEnded(executionStatus string) {
	if m == nil {
		return
	}

	m.callsActive.Dec()
	m.callsEnded.WithLabelValues(executionStatus).Inc()
}

func (m *Metrics) AudioJobFinished(jobStatus string) {
	if m == nil {
		return
	}

	m.audioJobs.WithLabelValues(jobStatus).Inc()
}

func (m *Metrics) ObserveSynthesis(success bool, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.synthesisTotal.WithLabelValues(status(success)).Inc()
	m.synthesisLatency.Observe(elapsed.Seconds())
}

func status(success bool) string {
	if success {
		return "success"
	}

	return "error"
}
