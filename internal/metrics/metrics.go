// Package metrics holds Prometheus instruments that are used across the
// gateway.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SiteCacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "site_cache_entries",
			Help: "Number of site records currently held in the in-process cache.",
		})

	SiteCacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_cache_hits_total",
			Help: "Cumulative number of site cache hits, by backend.",
		}, []string{"backend"})

	SiteCacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_cache_misses_total",
			Help: "Cumulative number of site cache misses, by backend.",
		}, []string{"backend"})

	SiteCacheEvictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "site_cache_evict_total",
			Help: "Cumulative number of site records evicted from the in-process cache.",
		})

	SiteCacheErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "site_cache_errors_total",
			Help: "Cumulative number of shared cache backend errors.",
		})

	SiteLookupTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_lookup_total",
			Help: "Cumulative number of datastore site lookups, by status.",
		}, []string{"status"})

	ResolutionOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_resolution_outcomes_total",
			Help: "Cumulative number of pipeline outcomes, by outcome.",
		}, []string{"outcome"})

	ResolutionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tenant_resolution_seconds",
			Help:    "Time spent resolving a tenant for a site-domain request.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		})
)

func init() {
	prometheus.MustRegister(
		SiteCacheEntries,
		SiteCacheHitsTotal,
		SiteCacheMissesTotal,
		SiteCacheEvictTotal,
		SiteCacheErrorsTotal,
		SiteLookupTotal,
		ResolutionOutcomesTotal,
		ResolutionSeconds,
	)
}
