package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HeartbeatsSent     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "driver_dispatch", Name: "heartbeats_sent_total", Help: "Location heartbeats sent to the backend"})
	HeartbeatErrors    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "driver_dispatch", Name: "heartbeat_errors_total", Help: "Heartbeats that failed to send"})
	PollsTotal         = promauto.NewCounter(prometheus.CounterOpts{Namespace: "driver_dispatch", Name: "polls_total", Help: "Available-request polls executed"})
	PollErrors         = promauto.NewCounter(prometheus.CounterOpts{Namespace: "driver_dispatch", Name: "poll_errors_total", Help: "Polls that failed"})
	OffersPresented    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "driver_dispatch", Name: "offers_presented_total", Help: "Requests presented to the driver"})
	OffersAccepted     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "driver_dispatch", Name: "offers_accepted_total", Help: "Presented requests accepted"})
	OffersDeclined     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "driver_dispatch", Name: "offers_declined_total", Help: "Presented requests declined by the driver"})
	OffersExpired      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "driver_dispatch", Name: "offers_expired_total", Help: "Presented requests auto-declined on countdown expiry"})
	RelaySamples       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "driver_dispatch", Name: "relay_samples_total", Help: "Location samples relayed for an active job"})
	RelayErrors        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "driver_dispatch", Name: "relay_errors_total", Help: "Relay samples that failed to send"})
	SessionOnline      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "driver_dispatch", Name: "session_online", Help: "1 while the driver session is online"})
	CandidateQueueSize = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "driver_dispatch", Name: "candidate_queue_size", Help: "Candidates currently in the local queue"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "driver_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "driver_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
