package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inkwell"

// Lookup results reported by the entity cache.
const (
	ResultHit         = "hit"
	ResultMiss        = "miss"
	ResultCorrupt     = "corrupt"
	ResultError       = "error"
	ResultUnavailable = "unavailable"
	ResultOK          = "ok"
)

// Metrics holds the cache collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EntityLookups       *prometheus.CounterVec
	EntityInvalidations *prometheus.CounterVec
	ImageRequests       *prometheus.CounterVec
}

// New builds collectors on a private registry so tests can create as many as they like.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		EntityLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entity_cache_lookups_total",
				Help:      "Entity cache lookups by result",
			},
			[]string{"result"},
		),
		EntityInvalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entity_cache_invalidations_total",
				Help:      "Entity cache key deletions by result",
			},
			[]string{"result"},
		),
		ImageRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "image_cache_requests_total",
				Help:      "Image requests by edge cache status",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.EntityLookups,
		m.EntityInvalidations,
		m.ImageRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) EntityLookup(result string) {
	if m == nil {
		return
	}
	m.EntityLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) EntityInvalidation(result string) {
	if m == nil {
		return
	}
	m.EntityInvalidations.WithLabelValues(result).Inc()
}

func (m *Metrics) ImageRequest(status string) {
	if m == nil {
		return
	}
	m.ImageRequests.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
