package manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cuemby/confsync/pkg/storage"
	"github.com/cuemby/confsync/pkg/types"
	"github.com/hashicorp/raft"
	"github.com/opencontainers/go-digest"
)

var (
	// ErrDuplicateName is returned when a record would share its name with
	// another record of the same connector
	ErrDuplicateName = errors.New("configuration name already in use")

	// ErrImmutableID is returned when an update tries to change a record ID
	ErrImmutableID = errors.New("configuration id cannot change")

	// ErrInvalidConfiguration is returned for records missing required fields
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrStaleDigest is returned by MarkSynced when the record changed after
	// the acknowledged upload
	ErrStaleDigest = errors.New("acknowledged digest does not match current content")
)

// Raft command operations
const (
	opAddConfiguration    = "add_configuration"
	opUpdateConfiguration = "update_configuration"
	opDeleteConfiguration = "delete_configuration"
	opMarkSynced          = "mark_synced"
)

// Command represents a state change operation in the Raft log
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

type updatePayload struct {
	ID            string               `json:"id"`
	Configuration *types.Configuration `json:"configuration"`
}

type markSyncedPayload struct {
	ID     string        `json:"id"`
	Digest digest.Digest `json:"digest"`
}

// ConfigFSM applies committed commands to the configuration store. It is
// the only writer of the store.
type ConfigFSM struct {
	mu    sync.RWMutex
	store storage.Store
}

// NewConfigFSM creates a new FSM instance
func NewConfigFSM(store storage.Store) *ConfigFSM {
	return &ConfigFSM{
		store: store,
	}
}

// Apply applies a Raft log entry to the FSM.
// The returned value is nil or an error; Manager.Apply surfaces it.
func (f *ConfigFSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("failed to unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opAddConfiguration:
		var cfg types.Configuration
		if err := json.Unmarshal(cmd.Data, &cfg); err != nil {
			return err
		}
		return f.add(&cfg)

	case opUpdateConfiguration:
		var payload updatePayload
		if err := json.Unmarshal(cmd.Data, &payload); err != nil {
			return err
		}
		return f.update(payload.ID, payload.Configuration)

	case opDeleteConfiguration:
		var id string
		if err := json.Unmarshal(cmd.Data, &id); err != nil {
			return err
		}
		if _, err := f.store.GetConfiguration(id); err != nil {
			return err
		}
		return f.store.DeleteConfiguration(id)

	case opMarkSynced:
		var payload markSyncedPayload
		if err := json.Unmarshal(cmd.Data, &payload); err != nil {
			return err
		}
		return f.markSynced(payload.ID, payload.Digest)

	default:
		return fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

// add stores a new record. Re-adding an existing ID overwrites it, which
// keeps log replay over an existing store convergent.
func (f *ConfigFSM) add(cfg *types.Configuration) error {
	if cfg.ID == "" || cfg.Name == "" {
		return fmt.Errorf("%w: id and name are required", ErrInvalidConfiguration)
	}
	if err := f.checkName(cfg); err != nil {
		return err
	}

	if _, err := f.store.GetConfiguration(cfg.ID); err == nil {
		return f.store.UpdateConfiguration(cfg)
	}
	return f.store.CreateConfiguration(cfg)
}

func (f *ConfigFSM) update(id string, cfg *types.Configuration) error {
	if cfg == nil || cfg.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfiguration)
	}
	if cfg.ID != id {
		return fmt.Errorf("%w: %s -> %s", ErrImmutableID, id, cfg.ID)
	}

	existing, err := f.store.GetConfiguration(id)
	if err != nil {
		return err
	}
	if err := f.checkName(cfg); err != nil {
		return err
	}

	cfg.CreatedAt = existing.CreatedAt
	return f.store.UpdateConfiguration(cfg)
}

func (f *ConfigFSM) markSynced(id string, d digest.Digest) error {
	cfg, err := f.store.GetConfiguration(id)
	if err != nil {
		return err
	}
	if !cfg.Pending {
		return nil
	}
	if cfg.Digest() != d {
		return ErrStaleDigest
	}

	cfg.Pending = false
	return f.store.UpdateConfiguration(cfg)
}

// checkName enforces name uniqueness per connector
func (f *ConfigFSM) checkName(cfg *types.Configuration) error {
	all, err := f.store.ListConfigurations()
	if err != nil {
		return err
	}
	for _, other := range all {
		if other.ID != cfg.ID && other.Connector == cfg.Connector && other.Name == cfg.Name {
			return fmt.Errorf("%w: %q (connector %q)", ErrDuplicateName, cfg.Name, cfg.Connector)
		}
	}
	return nil
}

// Snapshot creates a point-in-time snapshot of the FSM
func (f *ConfigFSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cfgs, err := f.store.ListConfigurations()
	if err != nil {
		return nil, fmt.Errorf("failed to list configurations: %w", err)
	}

	return &ConfigSnapshot{Configurations: cfgs}, nil
}

// Restore replaces the store contents with a snapshot
func (f *ConfigFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snapshot ConfigSnapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.store.ReplaceConfigurations(snapshot.Configurations); err != nil {
		return fmt.Errorf("failed to restore configurations: %w", err)
	}
	return nil
}

// ConfigSnapshot is a point-in-time copy of all configurations
type ConfigSnapshot struct {
	Configurations []*types.Configuration `json:"configurations"`
}

// Persist writes the snapshot to the given SnapshotSink
func (s *ConfigSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()

	if err != nil {
		sink.Cancel()
	}

	return err
}

// Release releases the snapshot resources
func (s *ConfigSnapshot) Release() {}
