/*
Package metrics exposes Prometheus metrics and component health for confsync.

All collectors are package-level variables registered with the default
registry at init, so any package can record without wiring:

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.SyncSessionDuration, "s3")

	metrics.SyncSessionsTotal.WithLabelValues("s3", "changed").Inc()

# Metrics

Sync:
  - confsync_sync_sessions_total{connector,result}: result is "changed",
    "unchanged" or a diagnostic kind such as "exchange_failure"
  - confsync_sync_session_duration_seconds{connector}
  - confsync_intents_applied_total{kind}, confsync_intent_failures_total{kind}
  - confsync_uploads_acknowledged_total

Scheduler:
  - confsync_sync_triggers_total{source,result}: source "timer" or "manual",
    result "run", "queued" or "collapsed"
  - confsync_backoff_interval_seconds

State:
  - confsync_configurations_total{connector,enabled}
  - confsync_configurations_pending{connector}
  - confsync_raft_is_leader, confsync_raft_log_index, confsync_raft_applied_index

API:
  - confsync_api_requests_total{method,status}
  - confsync_api_request_duration_seconds{method}

# Health

Components report into a process-wide registry with RegisterComponent and
UpdateComponent. GetHealth is unhealthy when any component is; GetReadiness
only considers the critical components (raft, storage, api), so a remote
outage shows up in /health without taking the process out of rotation.
*/
package metrics
