// Package metrics defines the Prometheus collectors for the batch job and
// the query API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cyberrisk"

// Metrics bundles the collectors with their own registry so tests and
// multiple servers never collide on the default one.
type Metrics struct {
	Registry *prometheus.Registry

	CompaniesProcessed *prometheus.CounterVec
	CompanyDuration    prometheus.Histogram
	SimulationsRun     prometheus.Counter
	PersistRetries     prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	IndexCompanies prometheus.Gauge
	IndexReloads   *prometheus.CounterVec
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CompaniesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_companies_total",
			Help:      "Companies processed by the batch, by result.",
		}, []string{"result"}),
		CompanyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_company_duration_seconds",
			Help:      "Time to simulate and persist one company.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		SimulationsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "Simulation runs generated.",
		}),
		PersistRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_persist_retries_total",
			Help:      "Retried store writes.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"route"}),
		IndexCompanies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_companies",
			Help:      "Companies in the served aggregation index.",
		}),
		IndexReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_reloads_total",
			Help:      "Aggregation index reloads by result.",
		}, []string{"result"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.CompaniesProcessed,
		m.CompanyDuration,
		m.SimulationsRun,
		m.PersistRetries,
		m.HTTPRequests,
		m.HTTPDuration,
		m.IndexCompanies,
		m.IndexReloads,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
