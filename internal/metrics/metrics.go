package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiteboard_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whiteboard_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Engine metrics
	LiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whiteboard_live_rooms",
			Help: "Rooms currently held in the registry",
		},
	)

	LiveParticipants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "whiteboard_live_participants",
			Help: "Participants currently joined to a live room",
		},
	)

	EventsRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiteboard_events_relayed_total",
			Help: "Events relayed to peers, by event type",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiteboard_events_dropped_total",
			Help: "Inbound events dropped, by reason",
		},
		[]string{"reason"}, // "malformed", "unjoined", "not_participant", "room_mismatch"
	)

	CursorSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whiteboard_cursor_suppressed_total",
			Help: "Cursor moves suppressed by the distance filter",
		},
	)

	SlowConsumerDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whiteboard_slow_consumer_drops_total",
			Help: "Outbound events dropped because a client send queue was full",
		},
	)

	// Persistence metrics
	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whiteboard_persistence_failures_total",
			Help: "Failed persistence gateway calls, by operation",
		},
		[]string{"op"}, // "append", "read", "clear", "touch"
	)

	PersistenceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "whiteboard_persistence_latency_seconds",
			Help:    "Persistence gateway call latency",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"op"},
	)

	RoomsCleaned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "whiteboard_rooms_cleaned_total",
			Help: "Inactive rooms deleted by the cleanup task",
		},
	)
)
