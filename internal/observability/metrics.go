package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	chatConnectionsTotal  prometheus.Counter
	chatActiveConnections prometheus.Gauge
	chatMessagesTotal     *prometheus.CounterVec

	notificationsPublishedTotal *prometheus.CounterVec
	sseClientsActive            prometheus.Gauge

	uploadRequestsTotal *prometheus.CounterVec
	uploadRejectedTotal *prometheus.CounterVec
	uploadLatency       *prometheus.HistogramVec

	roomSweepsTotal    *prometheus.CounterVec
	roomsExpiredTotal  prometheus.Counter
	roomAccessAttempts *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		chatConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_connections_total",
			Help: "Total websocket chat connections accepted.",
		})

		chatActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_active_connections",
			Help: "Websocket chat connections currently open.",
		})

		chatMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Chat frames processed by outcome.",
		}, []string{"outcome"})

		notificationsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications persisted and published by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notifications_sse_clients_active",
			Help: "Notification stream subscribers currently connected.",
		})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_requests_total",
			Help: "Upload attempts by purpose.",
		}, []string{"purpose"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_rejected_total",
			Help: "Rejected uploads by reason.",
		}, []string{"reason"})

		uploadLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "upload_latency_seconds",
			Help:    "Upload processing latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"purpose"})

		roomSweepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_room_sweeps_total",
			Help: "Expired room sweeps by result.",
		}, []string{"result"})

		roomsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_rooms_expired_total",
			Help: "Chat rooms deleted after expiry.",
		})

		roomAccessAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_room_access_attempts_total",
			Help: "Room join attempts by room kind and result.",
		}, []string{"room_kind", "result"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			chatConnectionsTotal, chatActiveConnections, chatMessagesTotal,
			notificationsPublishedTotal, sseClientsActive,
			uploadRequestsTotal, uploadRejectedTotal, uploadLatency,
			roomSweepsTotal, roomsExpiredTotal, roomAccessAttempts,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

func ChatConnectionsTotal() prometheus.Counter {
	RegisterMetrics()
	return chatConnectionsTotal
}

func ChatActiveConnections() prometheus.Gauge {
	RegisterMetrics()
	return chatActiveConnections
}

// ChatMessages counts relay frames labelled by outcome (delivered, invalid, unpersisted).
func ChatMessages() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesTotal
}

func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublishedTotal
}

func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

func UploadLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return uploadLatency
}

// RoomSweeps counts sweeper runs labelled success or error.
func RoomSweeps() *prometheus.CounterVec {
	RegisterMetrics()
	return roomSweepsTotal
}

func RoomsExpired() prometheus.Counter {
	RegisterMetrics()
	return roomsExpiredTotal
}

func RoomAccessAttempts() *prometheus.CounterVec {
	RegisterMetrics()
	return roomAccessAttempts
}
