// internal/metrics/metrics.go
// Package metrics exposes Prometheus collectors for the HTTP API and the
// recommendation runs it drives.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "decision_cogitator"

// Metrics holds every collector. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	GenerationRuns           *prometheus.CounterVec
	RecommendationsGenerated prometheus.Counter
	RecommendationsPurged    prometheus.Counter
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestCount: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		GenerationRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_runs_total",
			Help:      "Recommendation generation runs by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		RecommendationsGenerated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_generated_total",
			Help:      "Recommendations produced by generation runs",
		}),
		RecommendationsPurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_purged_total",
			Help:      "Expired recommendations removed by retention",
		}),
	}
}

// ObserveRequest records one served request
func (m *Metrics) ObserveRequest(method, route string, status int, seconds float64) {
	if route == "" {
		route = "unmatched"
	}
	m.RequestCount.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// ObserveRun records the outcome of one generation run
func (m *Metrics) ObserveRun(trigger string, generated, purged int, err error) {
	if err != nil {
		m.GenerationRuns.WithLabelValues(trigger, "error").Inc()
		return
	}
	m.GenerationRuns.WithLabelValues(trigger, "ok").Inc()
	m.RecommendationsGenerated.Add(float64(generated))
	m.RecommendationsPurged.Add(float64(purged))
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests and embedding
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
