package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported on /metrics.
type Metrics struct {
	registry   *prometheus.Registry
	ingests    *prometheus.CounterVec
	queries    *prometheus.CounterVec
	records    prometheus.Gauge
	generation prometheus.Gauge
	wsClients  prometheus.Gauge
}

// NewMetrics registers every collector on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credit",
			Name:      "ingests_total",
			Help:      "Dataset loads by input shape and result.",
		}, []string{"shape", "result"}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "credit",
			Name:      "queries_total",
			Help:      "Statistics and comparison queries by kind and result.",
		}, []string{"kind", "result"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "credit",
			Name:      "dataset_records",
			Help:      "Records in the current dataset.",
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "credit",
			Name:      "dataset_generation",
			Help:      "Generation of the current dataset.",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "credit",
			Name:      "websocket_clients",
			Help:      "Connected websocket clients.",
		}),
	}
	m.registry.MustRegister(m.ingests, m.queries, m.records, m.generation, m.wsClients,
		collectors.NewGoCollector())
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ingest(shape, result string) {
	m.ingests.WithLabelValues(shape, result).Inc()
}

func (m *Metrics) query(kind, result string) {
	m.queries.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) dataset(records int, generation uint64) {
	m.records.Set(float64(records))
	m.generation.Set(float64(generation))
}
