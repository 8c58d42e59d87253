package diagnostics

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeLogFile(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var content string
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIndexLogFiles_IndexesValidJSONLines(t *testing.T) {
	dir := t.TempDir()
	path := writeLogFile(t, dir, "server.log", []string{
		`{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"server started listening on :8420"}`,
		`{"time":"2026-01-01T00:00:01Z","level":"ERROR","msg":"vector store write failed"}`,
		"not json, should be skipped",
	})

	ix, err := Open("")
	require.NoError(t, err)
	defer ix.Close()

	n, err := ix.IndexLogFiles([]string{path})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	count, err := ix.DocCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)
}

func TestSearch_MatchesMessageText(t *testing.T) {
	dir := t.TempDir()
	path := writeLogFile(t, dir, "server.log", []string{
		`{"time":"2026-01-01T00:00:00Z","level":"INFO","msg":"server started listening on :8420"}`,
		`{"time":"2026-01-01T00:00:01Z","level":"ERROR","msg":"vector store write failed"}`,
	})

	ix, err := Open("")
	require.NoError(t, err)
	defer ix.Close()

	_, err = ix.IndexLogFiles([]string{path})
	require.NoError(t, err)

	results, err := ix.Search(context.Background(), "vector store", "", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Contains(t, results[0].Msg, "vector store")
}

func TestSearch_FiltersByLevel(t *testing.T) {
	dir := t.TempDir()
	path := writeLogFile(t, dir, "server.log", []string{
		`{"time":"2026-01-01T00:00:00Z","level":"info","msg":"routine heartbeat"}`,
		`{"time":"2026-01-01T00:00:01Z","level":"error","msg":"routine failure"}`,
	})

	ix, err := Open("")
	require.NoError(t, err)
	defer ix.Close()

	_, err = ix.IndexLogFiles([]string{path})
	require.NoError(t, err)

	results, err := ix.Search(context.Background(), "routine", "error", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "error", results[0].Level)
}
