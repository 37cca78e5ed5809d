package recommendation

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecommendationsGeneratedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendations_generated_total",
			Help: "Count of recommendations returned by algorithm.",
		},
		[]string{"algorithm"},
	)

	SourceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_source_failures_total",
			Help: "Count of hybrid stages that failed, by source.",
		},
		[]string{"source"},
	)

	ResultCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_cache_lookups_total",
			Help: "Result cache lookups by outcome (hit or miss).",
		},
		[]string{"outcome"},
	)

	PersistenceFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_persistence_failures_total",
			Help: "Batches that were scored but could not be saved, by algorithm.",
		},
		[]string{"algorithm"},
	)
)

func init() {
	prometheus.MustRegister(
		RecommendationsGeneratedTotal,
		SourceFailuresTotal,
		ResultCacheLookupsTotal,
		PersistenceFailuresTotal,
	)
}
