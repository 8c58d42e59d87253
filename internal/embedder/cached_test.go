package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	*Static
	calls int
}

func (c *countingEmbedder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return c.Static.Encode(ctx, texts)
}

func TestCached_RepeatedTextHitsCacheNotBackend(t *testing.T) {
	inner := &countingEmbedder{Static: NewStatic()}
	c := NewCached(inner, 10)

	_, err := c.Encode(context.Background(), []string{"hello"})
	require.NoError(t, err)
	_, err = c.Encode(context.Background(), []string{"hello"})
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
}

func TestCached_MixOfHitAndMissOnlyCallsBackendForMisses(t *testing.T) {
	inner := &countingEmbedder{Static: NewStatic()}
	c := NewCached(inner, 10)

	_, err := c.Encode(context.Background(), []string{"a"})
	require.NoError(t, err)

	out, err := c.Encode(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 2, inner.calls)
}

func TestCached_PassesThroughMetadata(t *testing.T) {
	inner := NewStatic()
	c := NewCached(inner, 10)

	assert.Equal(t, inner.Dimensions(), c.Dimensions())
	assert.Equal(t, inner.ModelName(), c.ModelName())
	assert.True(t, c.Available(context.Background()))
}
