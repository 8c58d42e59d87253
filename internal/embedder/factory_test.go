package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider_DefaultsToStatic(t *testing.T) {
	assert.Equal(t, ProviderStatic, ParseProvider(""))
	assert.Equal(t, ProviderStatic, ParseProvider("nonsense"))
	assert.Equal(t, ProviderOllama, ParseProvider("Ollama"))
	assert.Equal(t, ProviderOpenAI, ParseProvider("OPENAI"))
}

func TestNew_StaticProviderIsAlwaysAvailable(t *testing.T) {
	e, err := New(context.Background(), Settings{Provider: ProviderStatic})
	require.NoError(t, err)
	defer e.Close()

	assert.True(t, e.Available(context.Background()))
}

func TestNew_NegativeCacheSizeSkipsWrapping(t *testing.T) {
	e, err := New(context.Background(), Settings{Provider: ProviderStatic, CacheSize: -1})
	require.NoError(t, err)
	defer e.Close()

	_, ok := e.(*Cached)
	assert.False(t, ok)
}

func TestNew_DefaultCachesStaticBackend(t *testing.T) {
	e, err := New(context.Background(), Settings{Provider: ProviderStatic})
	require.NoError(t, err)
	defer e.Close()

	_, ok := e.(*Cached)
	assert.True(t, ok)
}
