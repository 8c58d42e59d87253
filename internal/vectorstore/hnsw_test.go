package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_UpsertAndSearch(t *testing.T) {
	s, err := New(Config{Dimensions: 4})
	require.NoError(t, err)
	defer s.Close()

	points := []Point{
		{ID: 1, Vector: []float32{1, 0, 0, 0}},
		{ID: 2, Vector: []float32{0, 1, 0, 0}},
		{ID: 3, Vector: []float32{0.9, 0.1, 0, 0}},
	}
	require.NoError(t, s.UpsertPoints(context.Background(), points))

	hits, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].ID)
	assert.Equal(t, int64(3), hits[1].ID)
	assert.Greater(t, hits[0].Score, float32(0.99))
}

func TestStore_DeletePointsIsLazyAndDropsFromCount(t *testing.T) {
	s, err := New(Config{Dimensions: 4})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertPoints(context.Background(), []Point{
		{ID: 1, Vector: []float32{1, 0, 0, 0}},
		{ID: 2, Vector: []float32{0, 1, 0, 0}},
	}))

	require.NoError(t, s.DeletePoints([]int64{1}))

	assert.Equal(t, 1, s.Count())

	stats := s.Stats()
	assert.Equal(t, 1, stats.ValidIDs)
	assert.Equal(t, 1, stats.Orphans)
}

func TestStore_UpsertSameIDReplacesVector(t *testing.T) {
	s, err := New(Config{Dimensions: 4})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertPoints(context.Background(), []Point{{ID: 1, Vector: []float32{1, 0, 0, 0}}}))
	require.NoError(t, s.UpsertPoints(context.Background(), []Point{{ID: 1, Vector: []float32{0, 1, 0, 0}}}))

	assert.Equal(t, 1, s.Count())

	hits, err := s.Search(context.Background(), []float32{0, 1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Greater(t, hits[0].Score, float32(0.99))
}

func TestStore_SearchRejectsDimensionMismatch(t *testing.T) {
	s, err := New(Config{Dimensions: 4})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Search(context.Background(), []float32{1, 0}, 1, nil)
	assert.ErrorAs(t, err, new(ErrDimensionMismatch))
}

func TestStore_SearchAppliesThreshold(t *testing.T) {
	s, err := New(Config{Dimensions: 4})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertPoints(context.Background(), []Point{
		{ID: 1, Vector: []float32{1, 0, 0, 0}},
		{ID: 2, Vector: []float32{0, 0, 1, 0}},
	}))

	high := float32(0.9)
	hits, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 10, &high)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1), hits[0].ID)
}

func TestStore_ScrollAllPaginatesInIDOrder(t *testing.T) {
	s, err := New(Config{Dimensions: 2})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertPoints(context.Background(), []Point{
		{ID: 3, Vector: []float32{1, 0}},
		{ID: 1, Vector: []float32{0, 1}},
		{ID: 2, Vector: []float32{1, 1}},
	}))

	page1, next := s.ScrollAll(0, 2)
	require.Len(t, page1, 2)
	assert.Equal(t, int64(1), page1[0].ID)
	assert.Equal(t, int64(2), page1[1].ID)
	assert.Equal(t, 2, next)

	page2, next2 := s.ScrollAll(next, 2)
	require.Len(t, page2, 1)
	assert.Equal(t, int64(3), page2[0].ID)
	assert.Equal(t, 0, next2)
}

func TestStore_RecreateCollectionClearsPoints(t *testing.T) {
	s, err := New(Config{Dimensions: 4})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertPoints(context.Background(), []Point{{ID: 1, Vector: []float32{1, 0, 0, 0}}}))
	require.NoError(t, s.RecreateCollection(8))

	assert.Equal(t, 0, s.Count())
	assert.Equal(t, 8, s.Dimension())
}

func TestStore_EnsureCollectionIsIdempotent(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.EnsureCollection(16))
	require.NoError(t, s.EnsureCollection(32)) // second call must not override
	assert.Equal(t, 16, s.Dimension())
}
