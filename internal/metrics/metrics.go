// Package metrics exposes Prometheus collectors for the chat pipeline.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "skillsphere"

var (
	// streamsTotal counts generation streams by outcome: completed, failed.
	streamsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_streams_total",
			Help:      "Total number of generation streams by final state",
		},
		[]string{"model", "state"},
	)

	streamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_stream_duration_seconds",
			Help:      "Duration of generation streams in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"model", "state"},
	)

	// enrichmentsTotal counts semantic lookups: hit, empty, error, skipped.
	enrichmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_queries_total",
			Help:      "Total number of semantic enrichment lookups by outcome",
		},
		[]string{"outcome"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "window_cache_lookups_total",
			Help:      "Total number of recent-window cache lookups",
		},
		[]string{"result"}, // hit, miss
	)

	// persistTotal counts post-stream persistence attempts: success, retry, dead_letter.
	persistTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turn_persist_total",
			Help:      "Total number of completed-turn persistence attempts by status",
		},
		[]string{"status"},
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
		[]string{"route"},
	)

	allMetrics = []prometheus.Collector{
		streamsTotal,
		streamDuration,
		enrichmentsTotal,
		cacheLookupsTotal,
		persistTotal,
		rateLimitedTotal,
	}
)

// Register registers every collector with reg. Collectors already registered are skipped.
func Register(reg prometheus.Registerer) error {
	for _, c := range allMetrics {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// Handler serves the metrics gathered by reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// RecordStream records the final state of a generation stream.
func RecordStream(model, state string, durationSeconds float64) {
	streamsTotal.WithLabelValues(model, state).Inc()
	streamDuration.WithLabelValues(model, state).Observe(durationSeconds)
}

// RecordEnrichment records a semantic lookup outcome.
func RecordEnrichment(outcome string) {
	enrichmentsTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup records a window cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordPersist records a persistence attempt.
func RecordPersist(status string) {
	persistTotal.WithLabelValues(status).Inc()
}

// RecordRateLimited records a rejected request.
func RecordRateLimited(route string) {
	rateLimitedTotal.WithLabelValues(route).Inc()
}
