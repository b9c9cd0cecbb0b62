package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline metrics. Outcome labels carry the error kind for failed turns
// and "ok" for completed ones, so dashboards can separate validation
// rejections from model or database trouble.
var (
	nlqTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bauquery_nlq_turns_total",
			Help: "Total number of natural-language query turns by outcome.",
		},
		[]string{"outcome"},
	)
	nlqTurnDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bauquery_nlq_turn_duration_seconds",
			Help:    "End-to-end latency of a pipeline turn.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
	)
	nlqModelRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bauquery_nlq_model_retries_total",
			Help: "Total number of transient-failure retries against the language model.",
		},
	)
	nlqComposeFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bauquery_nlq_compose_fallbacks_total",
			Help: "Total number of turns answered with the templated fallback rendering.",
		},
	)
	nlqQueryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bauquery_nlq_query_duration_seconds",
			Help:    "Latency of validated SQL execution against the dataset.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 3},
		},
	)
	nlqRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bauquery_nlq_rows_returned",
			Help:    "Row counts returned by executed queries.",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 250, 500},
		},
	)
)

func init() {
	prometheus.MustRegister(
		nlqTurnsTotal,
		nlqTurnDurationSeconds,
		nlqModelRetriesTotal,
		nlqComposeFallbacksTotal,
		nlqQueryDurationSeconds,
		nlqRowsReturned,
	)
}

func ObserveTurn(outcome string, elapsed time.Duration) {
	nlqTurnsTotal.WithLabelValues(outcome).Inc()
	nlqTurnDurationSeconds.Observe(elapsed.Seconds())
}

func IncrementModelRetry() {
	nlqModelRetriesTotal.Inc()
}

func IncrementComposeFallback() {
	nlqComposeFallbacksTotal.Inc()
}

func ObserveQuery(rows int, elapsed time.Duration) {
	nlqQueryDurationSeconds.Observe(elapsed.Seconds())
	nlqRowsReturned.Observe(float64(rows))
}
