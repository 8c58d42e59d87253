package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/divyekant/memoryd/internal/embedder"
	"github.com/divyekant/memoryd/internal/metadatastore"
	"github.com/divyekant/memoryd/internal/vectorstore"
)

// newTestEngine builds an engine over the static hash embedder and an
// empty in-memory-backed vector/metadata pair, matching the dimension
// the static embedder produces.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()

	dataDir := t.TempDir()
	store, err := metadatastore.Open(dataDir)
	require.NoError(t, err)

	vec, err := vectorstore.New(vectorstore.Config{Dimensions: embedder.StaticDimensions})
	require.NoError(t, err)

	cfg := Config{
		DataDir:          dataDir,
		VectorDimensions: embedder.StaticDimensions,
		ChunkMaxSize:     1500,
		ChunkOverlap:     200,
		EmbedProvider:    "static",
	}
	return New(cfg, store, vec, embedder.NewStatic(), nil, nil)
}

func TestNew_ComputesNextIDFromExistingRecords(t *testing.T) {
	e := newTestEngine(t)
	require.Equal(t, int64(0), e.nextID)

	ids, err := e.Add(context.Background(), []string{"alpha"}, []string{"doc.md"}, nil, false, 0)
	require.NoError(t, err)
	require.Equal(t, []int64{0}, ids)
	require.Equal(t, int64(1), e.nextID)
}

func TestStatsLight_ReportsEmbedderAndCount(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Add(context.Background(), []string{"one", "two"}, []string{"a", "b"}, nil, false, 0)
	require.NoError(t, err)

	stats := e.StatsLight()
	require.Equal(t, 2, stats.TotalMemories)
	require.Equal(t, embedder.StaticDimensions, stats.Dimension)
	require.Equal(t, "static-hash-256", stats.Model)
}

func TestStats_WiresQueueDepthAndGovernorCounters(t *testing.T) {
	e := newTestEngine(t)
	e.SetQueueDepthFunc(func() int { return 7 })
	e.SetGovernorStatsFunc(func() (TrimCounters, ReloadCounters) {
		return TrimCounters{Triggered: 2, Skipped: 1}, ReloadCounters{Triggered: 3, Succeeded: 3}
	})

	stats := e.Stats()
	require.Equal(t, 7, stats.ExtractionQueue)
	require.Equal(t, int64(2), stats.Trim.Triggered)
	require.Equal(t, int64(3), stats.Reload.Succeeded)
}

func TestIsReady_TrueWhenVectorAndMetadataCountsAgree(t *testing.T) {
	e := newTestEngine(t)
	require.True(t, e.IsReady().Ready)

	_, err := e.Add(context.Background(), []string{"alpha"}, []string{"doc.md"}, nil, false, 0)
	require.NoError(t, err)
	require.True(t, e.IsReady().Ready)
}
