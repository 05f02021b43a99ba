// Package metrics defines prometheus metrics to expose
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vita_api_request_duration_seconds",
			Help:    "Total time taken for requests in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 60, 120},
		},
		[]string{"path"},
	)

	ResponseCodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vita_api_status_code",
			Help: "Status Codes",
		},
		[]string{"path", "status_code"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vita_api_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route_class"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vita_api_cache_hits_total",
			Help: "Cache hits",
		},
		[]string{"backend"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vita_api_cache_misses_total",
			Help: "Cache misses, including expired and errored reads",
		},
		[]string{"backend"},
	)

	StreamFragments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vita_api_stream_fragments_total",
			Help: "Chat fragments forwarded to clients",
		},
		[]string{"outcome"},
	)

	TimeToFirstToken = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vita_api_time_to_first_token_seconds",
			Help:    "Time to first token in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 60},
		},
		[]string{"endpoint"},
	)

	ExtractionTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vita_api_extraction_tasks_total",
			Help: "Profile extraction tasks by terminal status",
		},
		[]string{"status"},
	)

	ExtractionQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vita_api_extraction_queue_depth",
			Help: "Tasks currently queued per extraction worker",
		},
		[]string{"worker"},
	)

	ErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vita_api_error_count",
			Help: "Error count",
		},
		[]string{"path", "type"},
	)
)
