/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package lrucache

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector collects statistics about how effectively the cache is used.
type MetricsCollector interface {
	// SetAmount sets the number of tracked keys.
	SetAmount(int)

	// IncHits increments the number of keys found in the storage.
	IncHits()

	// IncMisses increments the number of keys not found in the storage.
	IncMisses()

	// AddEvictions increments the number of evicted keys.
	AddEvictions(int)

	// IncStorageErrors increments the number of failed storage calls.
	IncStorageErrors()
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is prepended to all metric names.
	Namespace string

	// ConstLabels are applied to all metrics. Use them to tell apart several caches
	// registered in the same process (e.g. {"cache": "rates"}).
	ConstLabels prometheus.Labels
}

// PrometheusMetrics is a MetricsCollector exposing Prometheus metrics.
type PrometheusMetrics struct {
	EntriesAmount      prometheus.Gauge
	HitsTotal          prometheus.Counter
	MissesTotal        prometheus.Counter
	EvictionsTotal     prometheus.Counter
	StorageErrorsTotal prometheus.Counter
}

var _ MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        name,
			Help:        help,
			ConstLabels: opts.ConstLabels,
		})
	}
	return &PrometheusMetrics{
		EntriesAmount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_entries_amount",
			Help:        "Number of keys tracked by the cache.",
			ConstLabels: opts.ConstLabels,
		}),
		HitsTotal:          counter("cache_hits_total", "Number of keys found in the cache."),
		MissesTotal:        counter("cache_misses_total", "Number of keys not found in the cache."),
		EvictionsTotal:     counter("cache_evictions_total", "Number of evicted keys."),
		StorageErrorsTotal: counter("cache_storage_errors_total", "Number of failed calls to the cache storage."),
	}
}

// MustRegister registers all metrics in the registerer and panics on error.
func (pm *PrometheusMetrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(pm.EntriesAmount, pm.HitsTotal, pm.MissesTotal, pm.EvictionsTotal, pm.StorageErrorsTotal)
}

// Unregister removes all metrics from the registerer.
func (pm *PrometheusMetrics) Unregister(reg prometheus.Registerer) {
	reg.Unregister(pm.EntriesAmount)
	reg.Unregister(pm.HitsTotal)
	reg.Unregister(pm.MissesTotal)
	reg.Unregister(pm.EvictionsTotal)
	reg.Unregister(pm.StorageErrorsTotal)
}

// SetAmount implements MetricsCollector.
func (pm *PrometheusMetrics) SetAmount(amount int) {
	pm.EntriesAmount.Set(float64(amount))
}

// IncHits implements MetricsCollector.
func (pm *PrometheusMetrics) IncHits() {
	pm.HitsTotal.Inc()
}

// IncMisses implements MetricsCollector.
func (pm *PrometheusMetrics) IncMisses() {
	pm.MissesTotal.Inc()
}

// AddEvictions implements MetricsCollector.
func (pm *PrometheusMetrics) AddEvictions(n int) {
	pm.EvictionsTotal.Add(float64(n))
}

// IncStorageErrors implements MetricsCollector.
func (pm *PrometheusMetrics) IncStorageErrors() {
	pm.StorageErrorsTotal.Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) SetAmount(int)     {}
func (disabledMetrics) IncHits()          {}
func (disabledMetrics) IncMisses()        {}
func (disabledMetrics) AddEvictions(int)  {}
func (disabledMetrics) IncStorageErrors() {}
