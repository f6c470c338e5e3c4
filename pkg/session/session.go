package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/confsync/pkg/connector"
	"github.com/cuemby/confsync/pkg/events"
	"github.com/cuemby/confsync/pkg/log"
	"github.com/cuemby/confsync/pkg/manager"
	"github.com/cuemby/confsync/pkg/metrics"
	"github.com/cuemby/confsync/pkg/reconciler"
	"github.com/cuemby/confsync/pkg/types"
	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds one exchange with the connector
const DefaultTimeout = 30 * time.Second

// StateContainer is the single writer of local configurations
type StateContainer interface {
	ListConfigurations() ([]*types.Configuration, error)
	ApplyAdd(cfg *types.Configuration) error
	ApplyUpdate(id string, cfg *types.Configuration) error
	ApplyDelete(id string) error
	MarkSynced(id string, d digest.Digest) error
}

// Session runs one exchange with a connector and applies the reconciled
// result to the state container
type Session struct {
	connector connector.Connector
	state     StateContainer
	publisher events.Publisher
	newID     reconciler.IDFunc
	timeout   time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// Option configures a Session
type Option func(*Session)

// WithTimeout bounds the connector exchange
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithPublisher sends a sync event to p after every session
func WithPublisher(p events.Publisher) Option {
	return func(s *Session) { s.publisher = p }
}

// WithIDFunc replaces the ID generator for records added from the remote
func WithIDFunc(fn reconciler.IDFunc) Option {
	return func(s *Session) { s.newID = fn }
}

// WithNow replaces the clock used for outcome timestamps
func WithNow(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a session runner for c against state
func New(c connector.Connector, state StateContainer, opts ...Option) *Session {
	s := &Session{
		connector: c,
		state:     state,
		newID:     uuid.NewString,
		timeout:   DefaultTimeout,
		now:       time.Now,
		logger:    log.WithConnector(c.Name()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run performs one sync session. Failures never escape: they are reported
// as diagnostics on the outcome, and Changed is true only when at least one
// intent was applied.
func (s *Session) Run(ctx context.Context, download bool) types.SyncOutcome {
	timer := metrics.NewTimer()
	outcome := types.SyncOutcome{StartedAt: s.now()}

	err := s.run(ctx, download, &outcome)

	outcome.Duration = timer.Duration()
	s.report(&outcome, err)
	timer.ObserveDurationVec(metrics.SyncSessionDuration, s.connector.Name())

	return outcome
}

// sessionError carries the diagnostic kind of a failure that stopped the
// session
type sessionError struct {
	kind types.DiagnosticKind
	err  error
}

func (e *sessionError) Error() string { return e.err.Error() }
func (e *sessionError) Unwrap() error { return e.err }

func fail(kind types.DiagnosticKind, err error) error {
	return &sessionError{kind: kind, err: err}
}

func (s *Session) run(ctx context.Context, download bool, outcome *types.SyncOutcome) error {
	name := s.connector.Name()

	if !s.connector.Connected() {
		return fail(types.DiagnosticNotConnected, connector.ErrNotConnected)
	}

	local, err := s.state.ListConfigurations()
	if err != nil {
		return fail(types.DiagnosticStateFailure, fmt.Errorf("failed to read local configurations: %w", err))
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	result, err := connector.Exchange(exchangeCtx, s.connector, owned(name, local), download)
	cancel()
	if err != nil {
		return fail(classify(err), err)
	}

	outcome.Acknowledged = s.acknowledge(local, result.Upload, outcome)

	if result.Snapshot == nil {
		return nil
	}

	// Acks and concurrent user edits may have changed the set since the read
	local, err = s.state.ListConfigurations()
	if err != nil {
		return fail(types.DiagnosticStateFailure, fmt.Errorf("failed to re-read local configurations: %w", err))
	}

	intents, held := holdPending(local, reconciler.Reconcile(name, local, result.Snapshot, s.newID))
	outcome.Held = held

	for _, intent := range intents {
		if err := s.apply(intent); err != nil {
			metrics.IntentFailures.WithLabelValues(string(intent.Kind)).Inc()
			outcome.Diagnostics = append(outcome.Diagnostics, types.Diagnostic{
				Kind:            types.DiagnosticApplyFailure,
				Connector:       name,
				ConfigurationID: intentID(intent),
				Message:         fmt.Sprintf("%s: %v", intent.Kind, err),
			})
			continue
		}

		metrics.IntentsApplied.WithLabelValues(string(intent.Kind)).Inc()
		outcome.Changed = true
		switch intent.Kind {
		case types.IntentAdd:
			outcome.Added++
		case types.IntentUpdate:
			outcome.Updated++
		case types.IntentDelete:
			outcome.Deleted++
		}
	}

	return nil
}

// acknowledge clears Pending on records whose pushed content is confirmed.
// A record edited again since the push stays pending.
func (s *Session) acknowledge(local []*types.Configuration, report *types.UploadReport, outcome *types.SyncOutcome) int {
	byName := make(map[string]*types.Configuration)
	for _, cfg := range owned(s.connector.Name(), local) {
		if cfg.Pending {
			if _, ok := byName[cfg.Name]; !ok {
				byName[cfg.Name] = cfg
			}
		}
	}

	acked := 0
	for _, ack := range report.Acks {
		cfg, ok := byName[ack.Name]
		if !ok || cfg.Digest() != ack.Digest {
			continue
		}

		err := s.state.MarkSynced(cfg.ID, ack.Digest)
		if errors.Is(err, manager.ErrStaleDigest) {
			continue
		}
		if err != nil {
			outcome.Diagnostics = append(outcome.Diagnostics, types.Diagnostic{
				Kind:            types.DiagnosticApplyFailure,
				Connector:       s.connector.Name(),
				ConfigurationID: cfg.ID,
				Message:         fmt.Sprintf("mark synced: %v", err),
			})
			continue
		}

		metrics.UploadsAcknowledged.Inc()
		acked++
	}
	return acked
}

// holdPending drops update and delete intents aimed at records that are
// still Pending after acknowledgment. Those carry a local edit the remote
// has not confirmed, usually one made while the exchange was in flight; the
// next session pushes them instead of letting the remote overwrite them.
func holdPending(local []*types.Configuration, intents []types.Intent) ([]types.Intent, int) {
	pending := make(map[string]bool)
	for _, cfg := range local {
		if cfg.Pending {
			pending[cfg.ID] = true
		}
	}
	if len(pending) == 0 {
		return intents, 0
	}

	kept := intents[:0:0]
	held := 0
	for _, intent := range intents {
		if intent.Kind != types.IntentAdd && pending[intent.ID] {
			held++
			continue
		}
		kept = append(kept, intent)
	}
	return kept, held
}

func (s *Session) apply(intent types.Intent) error {
	switch intent.Kind {
	case types.IntentAdd:
		return s.state.ApplyAdd(intent.Configuration)
	case types.IntentUpdate:
		return s.state.ApplyUpdate(intent.ID, intent.Configuration)
	case types.IntentDelete:
		return s.state.ApplyDelete(intent.ID)
	default:
		return fmt.Errorf("unknown intent kind %q", intent.Kind)
	}
}

// report is the single place a session outcome leaves the session: it
// logs, counts, updates connector health and publishes the sync event
func (s *Session) report(outcome *types.SyncOutcome, err error) {
	name := s.connector.Name()
	notConnected := errors.Is(err, connector.ErrNotConnected)

	if err != nil {
		kind := types.DiagnosticExchangeFailure
		var se *sessionError
		if errors.As(err, &se) {
			kind = se.kind
		}
		outcome.Diagnostics = append([]types.Diagnostic{{
			Kind:      kind,
			Connector: name,
			Message:   err.Error(),
		}}, outcome.Diagnostics...)
	}

	result := "success"
	switch {
	case notConnected:
		result = "skipped"
	case err != nil:
		result = "failure"
	case len(outcome.Diagnostics) > 0:
		result = "partial"
	}
	metrics.SyncSessionsTotal.WithLabelValues(name, result).Inc()

	// Not being connected is the idle state of an unconfigured remote
	switch {
	case notConnected:
		metrics.UpdateComponent(metrics.ComponentConnector, true, "not connected")
		s.logger.Debug().Msg("Connector not connected, sync skipped")
	case err != nil:
		metrics.UpdateComponent(metrics.ComponentConnector, false, err.Error())
	default:
		metrics.UpdateComponent(metrics.ComponentConnector, true, "")
	}

	if !notConnected {
		for _, d := range outcome.Diagnostics {
			s.logger.Warn().
				Str("kind", string(d.Kind)).
				Str("configuration_id", d.ConfigurationID).
				Msg(d.Message)
		}
	}

	s.logger.Debug().
		Bool("changed", outcome.Changed).
		Int("added", outcome.Added).
		Int("updated", outcome.Updated).
		Int("deleted", outcome.Deleted).
		Int("acknowledged", outcome.Acknowledged).
		Int("held", outcome.Held).
		Dur("duration", outcome.Duration).
		Msg("Sync session finished")

	if s.publisher == nil {
		return
	}

	event := &events.Event{
		Type: events.EventSyncCompleted,
		Metadata: map[string]string{
			"connector": name,
			"changed":   fmt.Sprintf("%t", outcome.Changed),
			"added":     fmt.Sprintf("%d", outcome.Added),
			"updated":   fmt.Sprintf("%d", outcome.Updated),
			"deleted":   fmt.Sprintf("%d", outcome.Deleted),
			"held":      fmt.Sprintf("%d", outcome.Held),
		},
		Message: fmt.Sprintf("sync with %s completed", name),
	}
	switch {
	case notConnected:
		event.Type = events.EventSyncSkipped
		event.Message = fmt.Sprintf("sync with %s skipped: not connected", name)
		event.Metadata["kind"] = string(types.DiagnosticNotConnected)
	case err != nil:
		event.Type = events.EventSyncFailed
		event.Message = fmt.Sprintf("sync with %s failed: %v", name, err)
		event.Metadata["kind"] = string(outcome.Diagnostics[0].Kind)
	}
	s.publisher.Publish(event)
}

func classify(err error) types.DiagnosticKind {
	switch {
	case errors.Is(err, connector.ErrNotConnected):
		return types.DiagnosticNotConnected
	case errors.Is(err, connector.ErrMalformedResult):
		return types.DiagnosticMalformedResult
	default:
		return types.DiagnosticExchangeFailure
	}
}

func owned(name string, local []*types.Configuration) []*types.Configuration {
	var out []*types.Configuration
	for _, cfg := range local {
		if cfg.IsOwnedBy(name) {
			out = append(out, cfg)
		}
	}
	return out
}

func intentID(intent types.Intent) string {
	if intent.ID != "" {
		return intent.ID
	}
	if intent.Configuration != nil {
		return intent.Configuration.ID
	}
	return ""
}
