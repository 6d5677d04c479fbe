package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "leapunits"

// Metrics holds the collectors exported by the HTTP API.
type Metrics struct {
	registry *prometheus.Registry

	conversions *prometheus.CounterVec
	duration    prometheus.Histogram
	reloads     *prometheus.CounterVec
	units       prometheus.Gauge
}

// NewMetrics registers the API collectors on a private prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "conversions_total",
			Help:      "Number of conversions served, by outcome.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "conversion_duration_seconds",
			Help:      "Time spent converting a value.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "registry_reloads_total",
			Help:      "Number of registry rebuilds, by outcome.",
		}, []string{"status"}),
		units: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "registry_units",
			Help:      "Number of units defined in the current registry.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.conversions,
		m.duration,
		m.reloads,
		m.units,
	)
	return m
}

// Handler serves the metrics in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeConversion(seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.conversions.WithLabelValues(status).Inc()
	m.duration.Observe(seconds)
}

func (m *Metrics) observeReload(err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.reloads.WithLabelValues(status).Inc()
}
