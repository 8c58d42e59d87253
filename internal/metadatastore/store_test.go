package metadatastore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divyekant/memoryd/internal/memory"
)

func TestStore_OpenOnMissingFileIsEmpty(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestStore_PutSaveReloadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	store.Put(&memory.Record{ID: 1, Text: "hello", Source: "cli", CreatedAt: time.Now().UTC()})
	store.Put(&memory.Record{ID: 2, Text: "world", Source: "cli", CreatedAt: time.Now().UTC()})
	require.NoError(t, store.Save())

	reloaded, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())

	r, ok := reloaded.Get(1)
	require.True(t, ok)
	assert.Equal(t, "hello", r.Text)
}

func TestStore_SaveProducesTwoSpaceIndentedArray(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	store.Put(&memory.Record{ID: 1, Text: "hello"})
	require.NoError(t, store.Save())

	data, err := os.ReadFile(filepath.Join(dir, metadataFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  {")
	assert.True(t, data[0] == '[')
}

func TestStore_DeleteRemovesRecord(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	store.Put(&memory.Record{ID: 1, Text: "hello"})

	assert.True(t, store.Delete(1))
	assert.False(t, store.Delete(1))
	_, ok := store.Get(1)
	assert.False(t, ok)
}

func TestStore_AllReturnsSortedById(t *testing.T) {
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	store.Put(&memory.Record{ID: 3})
	store.Put(&memory.Record{ID: 1})
	store.Put(&memory.Record{ID: 2})

	all := store.All()
	require.Len(t, all, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{all[0].ID, all[1].ID, all[2].ID})
}

func TestConfig_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveConfig(dir, StoreConfig{Model: "static", EmbedProvider: "static", Dimension: 256}))

	cfg, ok, err := LoadConfig(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "static", cfg.Model)
	assert.False(t, cfg.LastUpdated.IsZero())
	assert.False(t, cfg.CreatedAt.IsZero())
}

func TestConfig_LoadMissingReturnsFalse(t *testing.T) {
	_, ok, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.False(t, ok)
}
