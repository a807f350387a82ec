package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CatalogSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_sync_total",
		Help: "Total number of catalog syncs by entity kind and provenance",
	}, []string{"kind", "provenance"})

	CatalogFetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_fetch_latency_seconds",
		Help:    "Latency of remote catalog fetches",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	OrdersSubmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_submitted_total",
		Help: "Total number of orders accepted, by submission mode",
	}, []string{"mode"})

	OrdersSubmissionFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_submission_failed_total",
		Help: "Total number of failed order submissions",
	}, []string{"reason"})

	OrderSubmitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_submit_latency_seconds",
		Help:    "Latency of createOrder calls to the remote endpoint",
		Buckets: prometheus.DefBuckets,
	})

	OfflineQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "offline_queue_depth",
		Help: "Number of queued offline actions across all sessions",
	})

	OfflineQueueReplayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "offline_queue_replayed_total",
		Help: "Total number of queued actions replayed, by result",
	}, []string{"result"})

	PersistenceResetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "persistence_resets_total",
		Help: "Total number of corrupt persisted values reset to their default",
	}, []string{"key"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
