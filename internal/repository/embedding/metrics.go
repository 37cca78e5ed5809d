package embedding

import "github.com/prometheus/client_golang/prometheus"

var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_requests_total",
			Help: "Embedding provider calls by outcome.",
		},
		[]string{"outcome"},
	)

	// 0 closed, 1 half-open, 2 open
	BreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "embedding_circuit_breaker_state",
		Help: "State of the embedding provider circuit breaker.",
	})
)

func init() {
	prometheus.MustRegister(EmbeddingRequestsTotal, BreakerState)
}
