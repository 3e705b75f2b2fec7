package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdv_orders_created_total",
		Help: "Total number of orders created",
	}, []string{"payment_method"})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdv_orders_failed_total",
		Help: "Total number of failed order creations",
	}, []string{"reason"})

	OrderReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdv_order_idempotent_replays_total",
		Help: "Order creations answered from an existing idempotency key",
	})

	SalesValueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdv_sales_value_total",
		Help: "Accumulated value of created orders",
	})

	OrderNumberConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdv_order_number_conflicts_total",
		Help: "Order number collisions retried under the optimistic strategy",
	})

	OrderStatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdv_order_status_transitions_total",
		Help: "Order status transitions",
	}, []string{"from", "to"})

	OrderCreateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pdv_order_create_latency_seconds",
		Help:    "Latency of the order creation transaction",
		Buckets: prometheus.DefBuckets,
	})

	DashboardLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pdv_dashboard_snapshot_latency_seconds",
		Help:    "Latency of dashboard snapshot computation",
		Buckets: prometheus.DefBuckets,
	})

	DashboardCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdv_dashboard_cache_total",
		Help: "Dashboard snapshot cache lookups",
	}, []string{"result"})

	DashboardDegradedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdv_dashboard_degraded_total",
		Help: "Dashboard snapshots served zeroed because the store failed",
	})

	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdv_events_published_total",
		Help: "Events published on the in-process bus",
	}, []string{"event"})

	EventHandlerFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdv_event_handler_failures_total",
		Help: "Event handlers that returned an error or panicked",
	}, []string{"event"})

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
