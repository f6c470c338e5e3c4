package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Configuration metrics
	ConfigurationsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "confsync_configurations_total",
			Help: "Total number of configurations by connector and enabled state",
		},
		[]string{"connector", "enabled"},
	)

	ConfigurationsPending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "confsync_configurations_pending",
			Help: "Configurations with local edits not yet acknowledged by their connector",
		},
		[]string{"connector"},
	)

	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "confsync_raft_is_leader",
			Help: "Whether this instance is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "confsync_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "confsync_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	// Sync metrics
	SyncSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confsync_sync_sessions_total",
			Help: "Total number of sync sessions by connector and result",
		},
		[]string{"connector", "result"},
	)

	SyncSessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "confsync_sync_session_duration_seconds",
			Help:    "Sync session duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"connector"},
	)

	IntentsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confsync_intents_applied_total",
			Help: "Total number of reconciliation intents applied by kind",
		},
		[]string{"kind"},
	)

	IntentFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confsync_intent_failures_total",
			Help: "Total number of reconciliation intents that failed to apply by kind",
		},
		[]string{"kind"},
	)

	UploadsAcknowledged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "confsync_uploads_acknowledged_total",
			Help: "Total number of pending local edits acknowledged by a connector",
		},
	)

	// Scheduler metrics
	SyncTriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confsync_sync_triggers_total",
			Help: "Total number of sync triggers by source and result",
		},
		[]string{"source", "result"},
	)

	BackoffInterval = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "confsync_backoff_interval_seconds",
			Help: "Current delay before the next periodic sync",
		},
	)

	// Event metrics
	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "confsync_events_dropped_total",
			Help: "Events not delivered to a subscriber whose buffer was full",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confsync_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "confsync_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(ConfigurationsTotal)
	prometheus.MustRegister(ConfigurationsPending)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(SyncSessionsTotal)
	prometheus.MustRegister(SyncSessionDuration)
	prometheus.MustRegister(IntentsApplied)
	prometheus.MustRegister(IntentFailures)
	prometheus.MustRegister(UploadsAcknowledged)
	prometheus.MustRegister(SyncTriggersTotal)
	prometheus.MustRegister(BackoffInterval)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(ComponentHealthy)
	prometheus.MustRegister(EventsDropped)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
