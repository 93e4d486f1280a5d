// Package metrics wires the runtime's few cross-cutting gauges/counters
// to Prometheus, grounded on the teacher's pkg/observability/metrics.go
// (one struct of CounterVec/GaugeVec/HistogramVec fields built against a
// private prometheus.Registry, constructed once and passed down by
// reference — never a package-global default registry).
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes the runtime's observability surface. A nil
// *Recorder is always safe to call methods on (every method guards
// against it), matching the teacher's NewMetrics(nil-safe) convention.
type Recorder struct {
	registry *prometheus.Registry

	toolsByCategory    *prometheus.GaugeVec
	toolsByKind        *prometheus.GaugeVec
	toolsDeprecated    prometheus.Gauge
	toolsExperimental  prometheus.Gauge
	securityEvents     *prometheus.CounterVec
	planConfidence     prometheus.Histogram
	toolCallDuration   *prometheus.HistogramVec
}

// New builds a Recorder with its own private registry.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.toolsByCategory = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tool_registry_category_total",
		Help: "Registered tools by category.",
	}, []string{"category"})

	r.toolsByKind = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tool_registry_kind_total",
		Help: "Registered tools by kind.",
	}, []string{"kind"})

	r.toolsDeprecated = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tool_registry_deprecated_total",
		Help: "Registered tools marked deprecated.",
	})

	r.toolsExperimental = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tool_registry_experimental_total",
		Help: "Registered tools marked experimental.",
	})

	r.securityEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "security_events_total",
		Help: "Security Gate events by kind and severity.",
	}, []string{"kind", "severity"})

	r.planConfidence = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_confidence",
		Help:    "Execution plan confidence scores.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	r.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tool_call_duration_seconds",
		Help:    "Tool call wall-clock duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool_id", "status"})

	r.registry.MustRegister(
		r.toolsByCategory, r.toolsByKind, r.toolsDeprecated, r.toolsExperimental,
		r.securityEvents, r.planConfidence, r.toolCallDuration,
	)
	return r
}

// Handler exposes the registry over HTTP, for a caller's own mux — the
// runtime core never listens on a socket itself (spec.md §1: the outer
// HTTP surface is out of scope).
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) SetToolCategoryCount(category string, n int) {
	if r == nil {
		return
	}
	r.toolsByCategory.WithLabelValues(category).Set(float64(n))
}

func (r *Recorder) SetToolKindCount(kind string, n int) {
	if r == nil {
		return
	}
	r.toolsByKind.WithLabelValues(kind).Set(float64(n))
}

func (r *Recorder) SetDeprecatedCount(n int) {
	if r == nil {
		return
	}
	r.toolsDeprecated.Set(float64(n))
}

func (r *Recorder) SetExperimentalCount(n int) {
	if r == nil {
		return
	}
	r.toolsExperimental.Set(float64(n))
}

func (r *Recorder) ObserveSecurityEvent(kind, severity string) {
	if r == nil {
		return
	}
	r.securityEvents.WithLabelValues(kind, severity).Inc()
}

func (r *Recorder) ObservePlanConfidence(confidence float64) {
	if r == nil {
		return
	}
	r.planConfidence.Observe(confidence)
}

func (r *Recorder) ObserveToolCall(toolID, status string, seconds float64) {
	if r == nil {
		return
	}
	r.toolCallDuration.WithLabelValues(toolID, status).Observe(seconds)
}
