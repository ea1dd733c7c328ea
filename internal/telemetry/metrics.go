package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments the order service emits.
type Metrics struct {
	CacheHits     *prometheus.CounterVec // label: type
	CacheMisses   *prometheus.CounterVec // label: type
	SagaFailures  *prometheus.CounterVec // label: step
	EventsHandled *prometheus.CounterVec // labels: topic, outcome (ok|dlq)
	OrdersPlaced  prometheus.Counter
}

// NewMetrics registers the service instruments on the given registerer.
// Pass prometheus.DefaultRegisterer in main, a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "order_service_cache_hits_total",
			Help: "Cache hits by entry type.",
		}, []string{"type"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "order_service_cache_misses_total",
			Help: "Cache misses by entry type.",
		}, []string{"type"}),
		SagaFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "order_service_saga_failures_total",
			Help: "Saga step failures after retries were exhausted.",
		}, []string{"step"}),
		EventsHandled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "order_service_events_handled_total",
			Help: "Consumed events by topic and outcome.",
		}, []string{"topic", "outcome"}),
		OrdersPlaced: f.NewCounter(prometheus.CounterOpts{
			Name: "order_service_orders_placed_total",
			Help: "Orders successfully placed.",
		}),
	}
}
