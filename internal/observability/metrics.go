package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	chatConnections     prometheus.Counter
	chatMessagesSent    *prometheus.CounterVec
	chatSnapshots       *prometheus.CounterVec
	attachmentsEncoded  *prometheus.CounterVec
	adminRequestsTotal  *prometheus.CounterVec
	adminLatencySeconds *prometheus.HistogramVec
	adminErrorsTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		chatConnections = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_connections_total",
			Help: "Total number of websocket feed connections accepted.",
		})

		chatMessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total number of chat messages persisted.",
		}, []string{"kind"})

		chatSnapshots = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_snapshots_delivered_total",
			Help: "Total number of full conversation snapshots delivered to feed subscribers.",
		}, []string{"kind"})

		attachmentsEncoded = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_attachments_encoded_total",
			Help: "Total number of attachment encoding attempts by outcome.",
		}, []string{"outcome"})

		adminRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_requests_total",
			Help: "Total number of admin API requests served.",
		}, []string{"method", "route", "status"})

		adminLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admin_latency_seconds",
			Help:    "Latency distribution for admin API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		adminErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_errors_total",
			Help: "Total number of error responses returned by admin endpoints.",
		}, []string{"method", "route", "status"})

		prometheus.MustRegister(
			chatConnections,
			chatMessagesSent,
			chatSnapshots,
			attachmentsEncoded,
			adminRequestsTotal,
			adminLatencySeconds,
			adminErrorsTotal,
		)
	})
}

// ChatConnectionsTotal exposes the feed connection counter.
func ChatConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return chatConnections
}

// ChatMessagesSent exposes the persisted-message counter.
func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesSent
}

// ChatSnapshotsDelivered exposes the snapshot delivery counter.
func ChatSnapshotsDelivered() *prometheus.CounterVec {
	RegisterMetrics()
	return chatSnapshots
}

// AttachmentsEncoded exposes the attachment encoding counter.
func AttachmentsEncoded() *prometheus.CounterVec {
	RegisterMetrics()
	return attachmentsEncoded
}

// AdminRequests exposes the counter for admin requests.
func AdminRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return adminRequestsTotal
}

// AdminLatency exposes the latency histogram for admin requests.
func AdminLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return adminLatencySeconds
}

// AdminErrors exposes the counter for admin error responses.
func AdminErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return adminErrorsTotal
}
