package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "naskahsync_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "naskahsync_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Sync core
	DocumentsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "naskahsync_documents_created_total",
			Help: "Total documents created",
		},
	)

	Mutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "naskahsync_mutations_total",
			Help: "Document mutations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "naskahsync_events_published_total",
			Help: "Change events fanned out, by event type",
		},
		[]string{"type"},
	)

	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "naskahsync_active_subscriptions",
			Help: "Currently registered document subscriptions",
		},
	)

	DroppedSubscriptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "naskahsync_dropped_subscriptions_total",
			Help: "Subscriptions dropped because the subscriber fell behind",
		},
	)

	PresenceEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "naskahsync_presence_entries",
			Help: "Tracked typing-presence entries",
		},
	)

	ChatMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "naskahsync_chat_messages_total",
			Help: "Total chat messages appended",
		},
	)
)
