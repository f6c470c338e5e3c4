package manager

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/cuemby/confsync/pkg/storage"
	"github.com/cuemby/confsync/pkg/types"
	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFSM(t *testing.T) (*ConfigFSM, *storage.BoltStore) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewConfigFSM(store), store
}

func applyCommand(t *testing.T, fsm *ConfigFSM, op string, payload interface{}) error {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(Command{Op: op, Data: data})
	require.NoError(t, err)

	resp := fsm.Apply(&raft.Log{Data: raw})
	if resp == nil {
		return nil
	}
	return resp.(error)
}

func TestFSMAdd(t *testing.T) {
	fsm, store := newTestFSM(t)

	cfg := &types.Configuration{ID: "1", Name: "a", Content: "x", Connector: "file"}
	require.NoError(t, applyCommand(t, fsm, opAddConfiguration, cfg))

	got, err := store.GetConfiguration("1")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Content)

	// Same name, same connector
	err = applyCommand(t, fsm, opAddConfiguration, &types.Configuration{ID: "2", Name: "a", Connector: "file"})
	assert.ErrorIs(t, err, ErrDuplicateName)

	// Same name, different connector
	require.NoError(t, applyCommand(t, fsm, opAddConfiguration, &types.Configuration{ID: "3", Name: "a"}))

	err = applyCommand(t, fsm, opAddConfiguration, &types.Configuration{ID: "4"})
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestFSMAddReplayOverwrites(t *testing.T) {
	fsm, store := newTestFSM(t)

	require.NoError(t, applyCommand(t, fsm, opAddConfiguration, &types.Configuration{ID: "1", Name: "a", Content: "old"}))
	require.NoError(t, applyCommand(t, fsm, opAddConfiguration, &types.Configuration{ID: "1", Name: "a", Content: "new"}))

	all, err := store.ListConfigurations()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "new", all[0].Content)
}

func TestFSMUpdate(t *testing.T) {
	fsm, store := newTestFSM(t)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, applyCommand(t, fsm, opAddConfiguration, &types.Configuration{ID: "1", Name: "a", Connector: "s3", CreatedAt: created}))
	require.NoError(t, applyCommand(t, fsm, opAddConfiguration, &types.Configuration{ID: "2", Name: "b", Connector: "s3"}))

	tests := []struct {
		name    string
		payload updatePayload
		wantErr error
	}{
		{
			name:    "changes id",
			payload: updatePayload{ID: "1", Configuration: &types.Configuration{ID: "9", Name: "a"}},
			wantErr: ErrImmutableID,
		},
		{
			name:    "collides with sibling",
			payload: updatePayload{ID: "1", Configuration: &types.Configuration{ID: "1", Name: "b", Connector: "s3"}},
			wantErr: ErrDuplicateName,
		},
		{
			name:    "missing record",
			payload: updatePayload{ID: "7", Configuration: &types.Configuration{ID: "7", Name: "z"}},
			wantErr: storage.ErrNotFound,
		},
		{
			name:    "valid",
			payload: updatePayload{ID: "1", Configuration: &types.Configuration{ID: "1", Name: "a", Connector: "s3", Content: "y"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := applyCommand(t, fsm, opUpdateConfiguration, tt.payload)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	got, err := store.GetConfiguration("1")
	require.NoError(t, err)
	assert.Equal(t, "y", got.Content)
	assert.True(t, got.CreatedAt.Equal(created), "created time survives updates")
}

func TestFSMDelete(t *testing.T) {
	fsm, store := newTestFSM(t)

	require.NoError(t, applyCommand(t, fsm, opAddConfiguration, &types.Configuration{ID: "1", Name: "a"}))
	require.NoError(t, applyCommand(t, fsm, opDeleteConfiguration, "1"))

	_, err := store.GetConfiguration("1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, applyCommand(t, fsm, opDeleteConfiguration, "1"), storage.ErrNotFound)
}

func TestFSMMarkSynced(t *testing.T) {
	fsm, store := newTestFSM(t)

	cfg := &types.Configuration{ID: "1", Name: "a", Content: "v1", Connector: "file", Pending: true}
	require.NoError(t, applyCommand(t, fsm, opAddConfiguration, cfg))

	stale := (&types.Configuration{Content: "v0"}).Digest()
	err := applyCommand(t, fsm, opMarkSynced, markSyncedPayload{ID: "1", Digest: stale})
	assert.ErrorIs(t, err, ErrStaleDigest)

	got, _ := store.GetConfiguration("1")
	assert.True(t, got.Pending)

	require.NoError(t, applyCommand(t, fsm, opMarkSynced, markSyncedPayload{ID: "1", Digest: cfg.Digest()}))
	got, _ = store.GetConfiguration("1")
	assert.False(t, got.Pending)

	// Already synced is a no-op
	require.NoError(t, applyCommand(t, fsm, opMarkSynced, markSyncedPayload{ID: "1", Digest: stale}))
}

func TestFSMUnknownCommand(t *testing.T) {
	fsm, _ := newTestFSM(t)
	assert.Error(t, applyCommand(t, fsm, "launch_rocket", nil))

	resp := fsm.Apply(&raft.Log{Data: []byte("{")})
	assert.Error(t, resp.(error))
}

type memorySink struct {
	bytes.Buffer
	cancelled bool
}

func (s *memorySink) ID() string    { return "test" }
func (s *memorySink) Close() error  { return nil }
func (s *memorySink) Cancel() error { s.cancelled = true; return nil }

func TestFSMSnapshotRestore(t *testing.T) {
	fsm, _ := newTestFSM(t)
	require.NoError(t, applyCommand(t, fsm, opAddConfiguration, &types.Configuration{ID: "1", Name: "a"}))
	require.NoError(t, applyCommand(t, fsm, opAddConfiguration, &types.Configuration{ID: "2", Name: "b"}))

	snap, err := fsm.Snapshot()
	require.NoError(t, err)

	sink := &memorySink{}
	require.NoError(t, snap.Persist(sink))
	assert.False(t, sink.cancelled)

	other, otherStore := newTestFSM(t)
	require.NoError(t, applyCommand(t, other, opAddConfiguration, &types.Configuration{ID: "stale", Name: "gone"}))

	require.NoError(t, other.Restore(io.NopCloser(&sink.Buffer)))

	all, err := otherStore.ListConfigurations()
	require.NoError(t, err)
	require.Len(t, all, 2)
	_, err = otherStore.GetConfiguration("stale")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
