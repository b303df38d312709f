// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package build

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pdiddy/infobox-kg/internal/pagecache"
	"github.com/pdiddy/infobox-kg/internal/triples"
)

// Metrics holds the counters of one batch run on a private registry, so that
// a run can write them to a textfile without a metrics server.
type Metrics struct {
	registry *prometheus.Registry

	pages     *prometheus.CounterVec // pages by outcome
	fallbacks prometheus.Counter
	warnings  prometheus.Counter
	triples   *prometheus.GaugeVec // triples by graph
	cache     *prometheus.GaugeVec // cache lookups by result
	duration  prometheus.Histogram
}

// NewMetrics creates and registers the build metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "infobox_kg",
			Subsystem: "build",
			Name:      "pages_total",
			Help:      "Pages processed by outcome (built, partial, skipped)",
		}, []string{"outcome"}),

		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "infobox_kg",
			Subsystem: "build",
			Name:      "mapping_fallbacks_total",
			Help:      "Fields mapped to a property in the project namespace by fallback",
		}),

		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "infobox_kg",
			Subsystem: "build",
			Name:      "parse_warnings_total",
			Help:      "Parse warnings recorded on partial pages",
		}),

		triples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "infobox_kg",
			Subsystem: "build",
			Name:      "triples",
			Help:      "Distinct triples per named graph after the run",
		}, []string{"graph"}),

		cache: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "infobox_kg",
			Subsystem: "cache",
			Name:      "lookups",
			Help:      "Page cache lookups by result (hit, miss, failure)",
		}, []string{"result"}),

		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "infobox_kg",
			Subsystem: "build",
			Name:      "page_seconds",
			Help:      "Time to fetch, parse and generate one page",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	m.registry.MustRegister(m.pages, m.fallbacks, m.warnings, m.triples, m.cache, m.duration)
	return m
}

// Registry returns the registry holding the run's metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObservePage records the outcome of one page.
func (m *Metrics) ObservePage(outcome Outcome, seconds float64, fallbacks, warnings int) {
	m.pages.WithLabelValues(outcome.String()).Inc()
	m.duration.Observe(seconds)
	m.fallbacks.Add(float64(fallbacks))
	m.warnings.Add(float64(warnings))
}

// ObserveDataset records the per-graph triple counts of a run.
func (m *Metrics) ObserveDataset(ds *triples.Dataset) {
	for name, n := range ds.Counts() {
		m.triples.WithLabelValues(string(name)).Set(float64(n))
	}
}

// ObserveCache records page cache counters.
func (m *Metrics) ObserveCache(s pagecache.Stats) {
	m.cache.WithLabelValues("hit").Set(float64(s.Hits))
	m.cache.WithLabelValues("miss").Set(float64(s.Misses))
	m.cache.WithLabelValues("failure").Set(float64(s.Failures))
}

// WriteFile writes the metrics in Prometheus text format, for the node
// exporter textfile collector.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
