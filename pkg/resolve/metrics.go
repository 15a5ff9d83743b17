// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	resolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_resolve_total",
			Help: "Number of dependency resolutions by outcome.",
		},
		[]string{"outcome"},
	)

	resolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kiln_resolve_duration_seconds",
			Help:    "Time taken to resolve a dependency set.",
			Buckets: prometheus.DefBuckets,
		},
	)

	resolveProblemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_resolve_problems_total",
			Help: "Number of problems reported by resolutions, by kind.",
		},
		[]string{"kind"},
	)

	resolveEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kiln_resolve_evictions_total",
			Help: "Total number of evicted module references.",
		},
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiln_resolution_cache_requests_total",
			Help: "Number of resolution cache lookups by result.",
		},
		[]string{"result"},
	)
)

const (
	outcomeOK       = "ok"
	outcomeProblems = "problems"
	outcomeError    = "error"

	cacheHit  = "hit"
	cacheMiss = "miss"
)

func init() {
	prometheus.MustRegister(
		resolveTotal,
		resolveDuration,
		resolveProblemsTotal,
		resolveEvictionsTotal,
		cacheRequestsTotal,
	)
}
