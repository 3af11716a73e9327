package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	DetectionsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_detections_total",
			Help: "Total number of detection calls by recommendation tier",
		},
		[]string{"recommendation"},
	)

	AutoBlocksTotal = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_auto_blocks_total",
			Help: "Total number of automatic IP blocks",
		},
	)

	ScorerErrorsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_scorer_errors_total",
			Help: "Total number of per-signal scorer failures zeroed by the engine",
		},
		[]string{"signal"},
	)

	RateLimitRejectionsTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_rate_limit_rejections_total",
			Help: "Total number of requests rejected by rate limiting",
		},
		[]string{"kind"},
	)

	DetectionLatency = promauto.With(registerer).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_detection_latency_ms",
			Help:    "Detection pipeline latency in milliseconds, excluding store I/O done by the caller",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)
)

// Registry exposes the private registry for the metrics endpoint.
func Registry() *prometheus.Registry {
	return registry
}
