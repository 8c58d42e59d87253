package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReloader struct {
	calls int
}

func (f *fakeReloader) ReloadFromDisk(ctx context.Context) error {
	f.calls++
	return nil
}

func TestManager_RestoreTakesPreRestoreSnapshotAndReloads(t *testing.T) {
	dataDir := setupDataDir(t)
	backupsDir := t.TempDir()

	local, err := NewLocal(backupsDir, dataDir, 5)
	require.NoError(t, err)

	name, err := local.Create("manual")
	require.NoError(t, err)

	mgr := NewManager(local, nil, nil)

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "metadata.json"), []byte(`{"records":["dirty"]}`), 0o644))

	reloader := &fakeReloader{}
	require.NoError(t, mgr.Restore(context.Background(), name, reloader))

	assert.Equal(t, 1, reloader.calls)

	data, err := os.ReadFile(filepath.Join(dataDir, "metadata.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"records":[]}`, string(data))

	entries, err := local.List()
	require.NoError(t, err)
	hasPreRestore := false
	for _, e := range entries {
		if len(e) >= len("pre_restore") && e[:len("pre_restore")] == "pre_restore" {
			hasPreRestore = true
		}
	}
	assert.True(t, hasPreRestore)
}

func TestManager_AutoRestoreSkipsWhenMetadataPresent(t *testing.T) {
	dataDir := setupDataDir(t)
	backupsDir := t.TempDir()
	local, err := NewLocal(backupsDir, dataDir, 5)
	require.NoError(t, err)

	mgr := NewManager(local, nil, nil)
	require.NoError(t, mgr.AutoRestore(context.Background(), nil))
}
