package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/otaflow/ota-agent/api"
)

const namespace = "ota"

// Metrics holds the Prometheus collectors of the agent.
//
// It receives both stage metrics and cycle outcomes.
type Metrics struct {
	registry *prometheus.Registry

	StageDuration  *prometheus.HistogramVec
	FreeMemory     prometheus.Gauge
	Outcomes       *prometheus.CounterVec
	LastCheck      prometheus.Gauge
	TriggersDenied prometheus.Counter
}

// New creates the collectors on a dedicated registry.
func New(currentVersion string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,

		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of completed update pipeline stages.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		FreeMemory: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "free_memory_bytes",
			Help:      "Free memory sampled at the end of the last stage.",
		}),
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_outcomes_total",
			Help:      "Completed update cycles by outcome and reason.",
		}, []string{"outcome", "reason"}),
		LastCheck: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_check_timestamp_seconds",
			Help:      "Unix time of the last completed update cycle.",
		}),
		TriggersDenied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_denied_total",
			Help:      "Triggers dropped because a cycle was already running.",
		}),
	}

	factory.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "build_info",
		Help:        "Firmware version of the running agent.",
		ConstLabels: prometheus.Labels{"version": currentVersion},
	}).Set(1)

	return m
}

// Publish records a stage metric.
func (m *Metrics) Publish(_ context.Context, metric api.StageMetric) error {
	m.StageDuration.WithLabelValues(metric.Stage).Observe((time.Duration(metric.ElapsedMS) * time.Millisecond).Seconds())
	m.FreeMemory.Set(float64(metric.FreeHeap))

	return nil
}

// PublishOutcome records a cycle outcome.
func (m *Metrics) PublishOutcome(_ context.Context, record api.OutcomeRecord) error {
	m.Outcomes.WithLabelValues(string(record.Outcome), string(record.Reason)).Inc()
	m.LastCheck.Set(float64(record.Timestamp.Unix()))

	return nil
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
