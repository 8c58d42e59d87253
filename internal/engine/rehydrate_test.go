package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/divyekant/memoryd/internal/memory"
)

func TestRehydrateVectors_RepopulatesEmptyVectorStoreFromMetadata(t *testing.T) {
	e := newTestEngine(t)

	e.store.Put(&memory.Record{ID: 0, Text: "we chose postgres for storage", Source: "decisions.md", CreatedAt: time.Now(), UpdatedAt: time.Now()})
	e.store.Put(&memory.Record{ID: 1, Text: "the api uses bearer tokens", Source: "decisions.md", CreatedAt: time.Now(), UpdatedAt: time.Now()})
	e.nextID = e.computeNextID()

	require.Equal(t, 0, e.vector.Count())

	n, err := e.RehydrateVectors(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 2, e.vector.Count())

	hits, err := e.HybridSearch(context.Background(), "postgres storage", 5, nil, 0, "")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
}

func TestRehydrateVectors_NoRecordsIsNoop(t *testing.T) {
	e := newTestEngine(t)
	n, err := e.RehydrateVectors(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, n)
}
