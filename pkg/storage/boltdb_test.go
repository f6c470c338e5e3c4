package storage

import (
	"testing"
	"time"

	"github.com/cuemby/confsync/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestConfigurationCRUD(t *testing.T) {
	store := newTestStore(t)

	cfg := &types.Configuration{
		ID:      "c-1",
		Name:    "Example",
		Content: "Cart = Basket",
		Values:  map[string]string{"city": "London"},
	}
	require.NoError(t, store.CreateConfiguration(cfg))

	got, err := store.GetConfiguration("c-1")
	require.NoError(t, err)
	assert.Equal(t, "Example", got.Name)
	assert.Equal(t, "London", got.Values["city"])

	got.Content = "Cart = Trolley"
	require.NoError(t, store.UpdateConfiguration(got))

	got, err = store.GetConfiguration("c-1")
	require.NoError(t, err)
	assert.Equal(t, "Cart = Trolley", got.Content)

	require.NoError(t, store.DeleteConfiguration("c-1"))
	_, err = store.GetConfiguration("c-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMissingConfiguration(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateConfiguration(&types.Configuration{ID: "ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateConfigurationRequiresID(t *testing.T) {
	store := newTestStore(t)
	assert.Error(t, store.CreateConfiguration(&types.Configuration{Name: "no id"}))
}

func TestListConfigurationsOrder(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateConfiguration(&types.Configuration{ID: "b", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, store.CreateConfiguration(&types.Configuration{ID: "z", CreatedAt: base}))
	require.NoError(t, store.CreateConfiguration(&types.Configuration{ID: "a", CreatedAt: base.Add(time.Minute)}))

	cfgs, err := store.ListConfigurations()
	require.NoError(t, err)
	require.Len(t, cfgs, 3)
	assert.Equal(t, []string{"z", "a", "b"}, []string{cfgs[0].ID, cfgs[1].ID, cfgs[2].ID})
}

func TestReplaceConfigurations(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateConfiguration(&types.Configuration{ID: "old"}))

	require.NoError(t, store.ReplaceConfigurations([]*types.Configuration{{ID: "new-1"}, {ID: "new-2"}}))

	cfgs, err := store.ListConfigurations()
	require.NoError(t, err)
	assert.Len(t, cfgs, 2)
	_, err = store.GetConfiguration("old")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMeta(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetMeta("instance_id")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SetMeta("instance_id", "abc"))
	value, err := store.GetMeta("instance_id")
	require.NoError(t, err)
	assert.Equal(t, "abc", value)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()

	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.CreateConfiguration(&types.Configuration{ID: "c-1", Name: "Cities"}))
	require.NoError(t, store.Close())

	store, err = NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetConfiguration("c-1")
	require.NoError(t, err)
	assert.Equal(t, "Cities", got.Name)
}
