// Package metrics defines the prometheus collectors for the service. All
// collectors are registered via promauto on the default registry, which the
// /metrics endpoint exposes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Session lifecycle metrics
var (
	// SessionsCreatedTotal counts created sessions.
	SessionsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_created_total",
			Help: "Total bill-splitting sessions created",
		},
	)

	// SessionsExpiredTotal counts sessions removed by TTL expiry.
	SessionsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessions_expired_total",
			Help: "Total sessions removed by TTL expiry",
		},
	)

	// MutationsTotal counts successful mutating operations by operation name.
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_mutations_total",
			Help: "Total successful session mutations by operation",
		},
		[]string{"operation"},
	)
)

// Notifier metrics
var (
	// SubscribersCurrent tracks currently connected snapshot subscribers.
	SubscribersCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifier_subscribers_current",
			Help: "Current number of snapshot subscribers across all sessions",
		},
	)

	// SubscribersDroppedTotal counts subscribers dropped for being too slow.
	SubscribersDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_subscribers_dropped_total",
			Help: "Total subscribers dropped because their buffer was full",
		},
	)

	// BroadcastsTotal counts snapshot broadcasts delivered to subscriber sets.
	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_broadcasts_total",
			Help: "Total snapshot broadcasts",
		},
	)

	// BroadcastsDroppedStale counts broadcasts discarded because a newer
	// revision was already delivered.
	BroadcastsDroppedStale = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_broadcasts_dropped_stale_total",
			Help: "Broadcasts discarded because their revision was stale",
		},
	)
)

// Stream transport metrics
var (
	// StreamConnectionsTotal counts subscription stream attempts by transport
	// (sse/websocket) and result (success/rejected/error).
	StreamConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_connections_total",
			Help: "Subscription stream connection attempts by transport and result",
		},
		[]string{"transport", "result"},
	)
)

// Vision collaborator metrics
var (
	// VisionRequestsTotal counts vision model calls by operation
	// (extract/verify) and result (success/error/open_circuit).
	VisionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vision_requests_total",
			Help: "Vision model requests by operation and result",
		},
		[]string{"operation", "result"},
	)

	// VisionRequestDuration tracks vision model call latency.
	VisionRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vision_request_duration_seconds",
			Help:    "Vision model request duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"operation"},
	)
)

// Cross-instance relay metrics
var (
	// RelayMessagesTotal counts relay pub/sub messages by direction
	// (published/received/dropped_self/decode_error).
	RelayMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Cross-instance relay messages by direction",
		},
		[]string{"direction"},
	)
)

// BuildInfo always reports 1 with build metadata as labels.
var BuildInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build information with version, commit, and go_version labels (value is always 1)",
	},
	[]string{"version", "commit", "go_version"},
)
