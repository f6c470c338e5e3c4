package manager

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/confsync/pkg/events"
	"github.com/cuemby/confsync/pkg/log"
	"github.com/cuemby/confsync/pkg/storage"
	"github.com/cuemby/confsync/pkg/types"
	"github.com/google/uuid"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/opencontainers/go-digest"
	"github.com/rs/zerolog"
)

const (
	metaInstanceID = "instance_id"
	metaSeeded     = "seeded"

	applyTimeout  = 5 * time.Second
	leaderTimeout = 10 * time.Second
)

// Manager owns the configuration store and serializes every write to it
// through a single-node Raft log
type Manager struct {
	nodeID       string
	bindAddr     string
	dataDir      string
	seedExamples bool
	instanceID   string

	raft        *raft.Raft
	fsm         *ConfigFSM
	store       storage.Store
	logStore    *raftboltdb.BoltStore
	stableStore *raftboltdb.BoltStore
	eventBroker *events.Broker
	logger      zerolog.Logger
}

// Config holds configuration for creating a Manager
type Config struct {
	NodeID       string
	BindAddr     string // empty selects the in-memory transport
	DataDir      string
	SeedExamples bool
}

// NewManager opens the store and event broker. Call Bootstrap before
// applying commands.
func NewManager(cfg *Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	instanceID, err := loadInstanceID(store)
	if err != nil {
		store.Close()
		return nil, err
	}

	eventBroker := events.NewBroker()
	eventBroker.Start()

	m := &Manager{
		nodeID:       cfg.NodeID,
		bindAddr:     cfg.BindAddr,
		dataDir:      cfg.DataDir,
		seedExamples: cfg.SeedExamples,
		instanceID:   instanceID,
		fsm:          NewConfigFSM(store),
		store:        store,
		eventBroker:  eventBroker,
		logger:       log.WithComponent("manager"),
	}

	return m, nil
}

// loadInstanceID returns the persisted instance ID, creating it on first start
func loadInstanceID(store storage.Store) (string, error) {
	id, err := store.GetMeta(metaInstanceID)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("failed to read instance id: %w", err)
	}

	id = uuid.NewString()
	if err := store.SetMeta(metaInstanceID, id); err != nil {
		return "", fmt.Errorf("failed to persist instance id: %w", err)
	}
	return id, nil
}

// Bootstrap starts single-node Raft, waits for leadership and seeds the
// example configurations on first start
func (m *Manager) Bootstrap() error {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(m.nodeID)
	config.LogOutput = log.Writer("raft")

	// A single voter elects itself; short timeouts keep startup fast
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond

	transport, err := m.newTransport()
	if err != nil {
		return err
	}

	snapshotStore, err := raft.NewFileSnapshotStore(m.dataDir, 2, log.Writer("raft"))
	if err != nil {
		return fmt.Errorf("failed to create snapshot store: %w", err)
	}

	m.logStore, err = raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-log.db"))
	if err != nil {
		return fmt.Errorf("failed to create log store: %w", err)
	}

	m.stableStore, err = raftboltdb.NewBoltStore(filepath.Join(m.dataDir, "raft-stable.db"))
	if err != nil {
		return fmt.Errorf("failed to create stable store: %w", err)
	}

	hasState, err := raft.HasExistingState(m.logStore, m.stableStore, snapshotStore)
	if err != nil {
		return fmt.Errorf("failed to inspect raft state: %w", err)
	}

	r, err := raft.NewRaft(config, m.fsm, m.logStore, m.stableStore, snapshotStore, transport)
	if err != nil {
		return fmt.Errorf("failed to create raft: %w", err)
	}
	m.raft = r

	if !hasState {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{
					ID:      config.LocalID,
					Address: transport.LocalAddr(),
				},
			},
		}
		if err := m.raft.BootstrapCluster(configuration).Error(); err != nil {
			return fmt.Errorf("failed to bootstrap cluster: %w", err)
		}
	}

	if err := m.waitForLeader(leaderTimeout); err != nil {
		return err
	}

	m.logger.Info().
		Str("node_id", m.nodeID).
		Str("instance_id", m.instanceID).
		Bool("restored", hasState).
		Msg("State container ready")

	if m.seedExamples {
		if err := m.seed(); err != nil {
			return fmt.Errorf("failed to seed examples: %w", err)
		}
	}

	return nil
}

func (m *Manager) newTransport() (raft.Transport, error) {
	if m.bindAddr == "" {
		_, transport := raft.NewInmemTransport(raft.ServerAddress(m.nodeID))
		return transport, nil
	}

	addr, err := net.ResolveTCPAddr("tcp", m.bindAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bind address: %w", err)
	}

	transport, err := raft.NewTCPTransport(m.bindAddr, addr, 3, 10*time.Second, log.Writer("raft"))
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	return transport, nil
}

func (m *Manager) waitForLeader(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.IsLeader() {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("no raft leader after %s", timeout)
}

// InstanceID returns the identifier generated on first start
func (m *Manager) InstanceID() string {
	return m.instanceID
}

// IsLeader returns true if this manager is the Raft leader
func (m *Manager) IsLeader() bool {
	if m.raft == nil {
		return false
	}
	return m.raft.State() == raft.Leader
}

// RaftState returns the Raft state name, or "uninitialized"
func (m *Manager) RaftState() string {
	if m.raft == nil {
		return "uninitialized"
	}
	return m.raft.State().String()
}

// GetRaftStats returns Raft statistics
func (m *Manager) GetRaftStats() map[string]interface{} {
	if m.raft == nil {
		return nil
	}

	stats := make(map[string]interface{})
	stats["state"] = m.raft.State().String()
	stats["last_log_index"] = m.raft.LastIndex()
	stats["applied_index"] = m.raft.AppliedIndex()

	return stats
}

// GetEventBroker returns the event broker
func (m *Manager) GetEventBroker() *events.Broker {
	return m.eventBroker
}

// Publish forwards an event to the broker
func (m *Manager) Publish(event *events.Event) {
	if m.eventBroker != nil {
		m.eventBroker.Publish(event)
	}
}

// Apply submits a command to Raft and returns the FSM result
func (m *Manager) Apply(cmd Command) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	future := m.raft.Apply(data, applyTimeout)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to apply command: %w", err)
	}

	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) applyOp(op string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return m.Apply(Command{Op: op, Data: data})
}

// ApplyAdd commits a new configuration
func (m *Manager) ApplyAdd(cfg *types.Configuration) error {
	cfg = cfg.Clone()
	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	if err := m.applyOp(opAddConfiguration, cfg); err != nil {
		return err
	}

	m.publishConfiguration(events.EventConfigurationAdded, cfg)
	return nil
}

// ApplyUpdate commits a full replacement of configuration id. The ID
// cannot change.
func (m *Manager) ApplyUpdate(id string, cfg *types.Configuration) error {
	cfg = cfg.Clone()
	if cfg.ID == "" {
		cfg.ID = id
	}
	cfg.UpdatedAt = time.Now().UTC()

	if err := m.applyOp(opUpdateConfiguration, updatePayload{ID: id, Configuration: cfg}); err != nil {
		return err
	}

	m.publishConfiguration(events.EventConfigurationUpdated, cfg)
	return nil
}

// ApplyDelete commits the removal of configuration id
func (m *Manager) ApplyDelete(id string) error {
	existing, err := m.store.GetConfiguration(id)
	if err != nil {
		return err
	}

	if err := m.applyOp(opDeleteConfiguration, id); err != nil {
		return err
	}

	m.publishConfiguration(events.EventConfigurationDeleted, existing)
	return nil
}

// MarkSynced clears the Pending flag of id when its content still matches
// the acknowledged digest. It returns ErrStaleDigest otherwise.
func (m *Manager) MarkSynced(id string, d digest.Digest) error {
	return m.applyOp(opMarkSynced, markSyncedPayload{ID: id, Digest: d})
}

func (m *Manager) publishConfiguration(eventType events.EventType, cfg *types.Configuration) {
	m.Publish(&events.Event{
		Type:    eventType,
		Message: fmt.Sprintf("%s %s", eventType, cfg.Name),
		Metadata: map[string]string{
			"id":        cfg.ID,
			"name":      cfg.Name,
			"connector": cfg.Connector,
		},
	})
}

// GetConfiguration returns a configuration by ID
func (m *Manager) GetConfiguration(id string) (*types.Configuration, error) {
	return m.store.GetConfiguration(id)
}

// ListConfigurations returns all configurations
func (m *Manager) ListConfigurations() ([]*types.Configuration, error) {
	return m.store.ListConfigurations()
}

// Shutdown gracefully shuts down the manager
func (m *Manager) Shutdown() error {
	if m.eventBroker != nil {
		m.eventBroker.Stop()
	}

	if m.raft != nil {
		if err := m.raft.Shutdown().Error(); err != nil {
			return fmt.Errorf("failed to shutdown raft: %w", err)
		}
	}

	for _, bs := range []*raftboltdb.BoltStore{m.logStore, m.stableStore} {
		if bs == nil {
			continue
		}
		if err := bs.Close(); err != nil {
			return fmt.Errorf("failed to close raft store: %w", err)
		}
	}

	if m.store != nil {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("failed to close store: %w", err)
		}
	}

	return nil
}
