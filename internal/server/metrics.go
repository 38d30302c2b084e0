package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lootlens_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lootlens_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Detection metrics
	detectRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lootlens_detect_requests_total",
			Help: "Total number of detection requests",
		},
		[]string{"status"}, // status: success, error
	)

	detectDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lootlens_detect_duration_seconds",
			Help:    "Detection processing duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	detectResultCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lootlens_detect_results",
			Help:    "Number of candidate entities returned per detection",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	// Detection cache metrics, refreshed after each detect request.
	cacheHitsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lootlens_detection_cache_hits_total",
			Help: "Cumulative detection cache hits",
		},
	)

	cacheMissesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lootlens_detection_cache_misses_total",
			Help: "Cumulative detection cache misses",
		},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lootlens_detection_cache_entries",
			Help: "Current number of cached detections",
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lootlens_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: requests_per_minute, max_data_per_day
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lootlens_upload_size_bytes",
			Help:    "Size of uploaded screenshots in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lootlens_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lootlens_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
