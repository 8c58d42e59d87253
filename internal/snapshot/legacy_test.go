package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCutoverLegacyVector_NoOpWithoutLegacyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, CutoverLegacyVector(dir, 5, 5))
	_, err := os.Stat(filepath.Join(dir, "migrations", doneMarkerName))
	assert.True(t, os.IsNotExist(err))
}

func TestCutoverLegacyVector_NoOpOnCountMismatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LegacyVectorFileName), []byte("legacy"), 0o644))

	require.NoError(t, CutoverLegacyVector(dir, 5, 6))

	_, err := os.Stat(filepath.Join(dir, LegacyVectorFileName))
	assert.NoError(t, err, "legacy file should remain untouched on mismatch")
}

func TestCutoverLegacyVector_ArchivesAndWritesMarkerOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, LegacyVectorFileName), []byte("legacy"), 0o644))

	require.NoError(t, CutoverLegacyVector(dir, 5, 5))

	markerPath := filepath.Join(dir, "migrations", doneMarkerName)
	_, err := os.Stat(markerPath)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, LegacyVectorFileName))
	assert.True(t, os.IsNotExist(err), "legacy file should have been moved")

	// Second call is a no-op because the marker already exists.
	require.NoError(t, CutoverLegacyVector(dir, 5, 5))
}
