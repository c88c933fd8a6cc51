package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deteksi_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deteksi_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Cascade processing metrics
	cascadeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deteksi_cascade_requests_total",
			Help: "Total number of reading cascade runs",
		},
		[]string{"source", "status"}, // source: upload, batch
	)

	cascadeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deteksi_cascade_duration_seconds",
			Help:    "Reading cascade duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25},
		},
		[]string{"source"},
	)

	meterStateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deteksi_meter_state_total",
			Help: "Meter-state outcomes of the cascade",
		},
		[]string{"state"},
	)

	// Batch acquisition metrics
	batchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deteksi_batch_items_total",
			Help: "Total number of batch items processed",
		},
		[]string{"status"}, // status: ok, error
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "deteksi_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deteksi_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
