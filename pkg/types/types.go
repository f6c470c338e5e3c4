package types

import (
	"encoding/json"
	"time"

	"github.com/opencontainers/go-digest"
)

// Configuration is a user-authored rule set plus its metadata
type Configuration struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Content   string            `json:"content"`
	Test      string            `json:"test,omitempty"`
	Enabled   bool              `json:"enabled"`
	Values    map[string]string `json:"values"`
	Connector string            `json:"connector,omitempty"` // Empty for purely local records
	Hotkeys   []int             `json:"hotkeys,omitempty"`

	// Pending marks a local edit the owning connector has not acknowledged yet
	Pending bool `json:"pending,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOwnedBy reports whether the record belongs to the given connector
func (c *Configuration) IsOwnedBy(connector string) bool {
	return connector != "" && c.Connector == connector
}

// Digest identifies the remote-visible state of the record. It covers every
// field RecordFromConfiguration carries, so a toggle or a values edit made
// during an exchange invalidates an acknowledgment just like a content edit.
func (c *Configuration) Digest() digest.Digest {
	// A RemoteRecord always marshals; map keys come out sorted
	data, _ := json.Marshal(RecordFromConfiguration(c))
	return digest.FromBytes(data)
}

// Clone returns a deep copy of the configuration
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return nil
	}
	out := *c
	if c.Values != nil {
		out.Values = make(map[string]string, len(c.Values))
		for k, v := range c.Values {
			out.Values[k] = v
		}
	}
	if c.Hotkeys != nil {
		out.Hotkeys = append([]int(nil), c.Hotkeys...)
	}
	return &out
}

// RemoteRecord is the content-bearing part of a configuration as stored remotely
type RemoteRecord struct {
	Name    string            `json:"name"`
	Content string            `json:"content"`
	Test    string            `json:"test,omitempty"`
	Enabled *bool             `json:"enabled,omitempty"`
	Values  map[string]string `json:"values,omitempty"`
	Hotkeys []int             `json:"hotkeys,omitempty"`
}

// RecordFromConfiguration builds the remote representation of a local record
func RecordFromConfiguration(c *Configuration) RemoteRecord {
	clone := c.Clone()
	enabled := clone.Enabled
	return RemoteRecord{
		Name:    clone.Name,
		Content: clone.Content,
		Test:    clone.Test,
		Enabled: &enabled,
		Values:  clone.Values,
		Hotkeys: clone.Hotkeys,
	}
}

// RemoteSnapshot is the full set of remote records keyed by name.
// A nil *RemoteSnapshot means the fetch produced no data; a snapshot with
// zero records means the remote is empty.
type RemoteSnapshot struct {
	Records map[string]RemoteRecord
}

// NewRemoteSnapshot builds a snapshot from a list of records
func NewRemoteSnapshot(records ...RemoteRecord) *RemoteSnapshot {
	snap := &RemoteSnapshot{Records: make(map[string]RemoteRecord, len(records))}
	for _, r := range records {
		snap.Records[r.Name] = r
	}
	return snap
}

// Len returns the number of records in the snapshot
func (s *RemoteSnapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// Ack acknowledges one uploaded record
type Ack struct {
	Name   string        `json:"name"`
	Digest digest.Digest `json:"digest"`
}

// UploadReport is the upload-acknowledgment section of an exchange
type UploadReport struct {
	Acks []Ack `json:"acks"`
}

// ExchangeResult is what a connector returns from one push/fetch round
type ExchangeResult struct {
	Upload   *UploadReport
	Snapshot *RemoteSnapshot // nil when nothing was downloaded
}

// IntentKind identifies the mutation an intent carries
type IntentKind string

const (
	IntentAdd    IntentKind = "add"
	IntentUpdate IntentKind = "update"
	IntentDelete IntentKind = "delete"
)

// Intent is a single proposed mutation produced by reconciliation
type Intent struct {
	Kind          IntentKind
	ID            string
	Configuration *Configuration // nil for deletes
}

// DiagnosticKind classifies why a sync session made no progress
type DiagnosticKind string

const (
	DiagnosticNotConnected    DiagnosticKind = "not_connected"
	DiagnosticExchangeFailure DiagnosticKind = "exchange_failure"
	DiagnosticMalformedResult DiagnosticKind = "malformed_result"
	DiagnosticApplyFailure    DiagnosticKind = "apply_failure"
	DiagnosticStateFailure    DiagnosticKind = "state_failure"
)

// Diagnostic is the side-channel report of a failure absorbed by a session
type Diagnostic struct {
	Kind            DiagnosticKind `json:"kind"`
	Connector       string         `json:"connector,omitempty"`
	ConfigurationID string         `json:"configuration_id,omitempty"`
	Message         string         `json:"message"`
}

// SyncOutcome is the result of one sync session
type SyncOutcome struct {
	Changed      bool          `json:"changed"`
	Added        int           `json:"added"`
	Updated      int           `json:"updated"`
	Deleted      int           `json:"deleted"`
	Acknowledged int           `json:"acknowledged"`
	Held         int           `json:"held"`
	Diagnostics  []Diagnostic  `json:"diagnostics,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
}

// SchedulerState is the run state of the sync scheduler
type SchedulerState string

const (
	SchedulerIdle    SchedulerState = "idle"
	SchedulerRunning SchedulerState = "running"
	SchedulerStopped SchedulerState = "stopped"
)

// SchedulerStatus is a diagnostic view of the scheduler
type SchedulerStatus struct {
	State           SchedulerState `json:"state"`
	IntervalSeconds int            `json:"interval_seconds"`
	TriggerPending  bool           `json:"trigger_pending"`
	Sessions        int            `json:"sessions"`
	LastRun         time.Time      `json:"last_run,omitempty"`
	LastOutcome     *SyncOutcome   `json:"last_outcome,omitempty"`
}
