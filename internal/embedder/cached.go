package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the query-embedding cache.
const DefaultCacheSize = 1000

// Cached wraps an Embedder with an LRU cache keyed by text+model, so
// repeated queries (common for search traffic) skip the backend call.
type Cached struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

var _ Embedder = (*Cached)(nil)

// NewCached wraps inner with an LRU cache of the given size (falls back
// to DefaultCacheSize if size<=0).
func NewCached(inner Embedder, size int) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &Cached{inner: inner, cache: cache}
}

func (c *Cached) key(text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + c.inner.ModelName()))
	return hex.EncodeToString(sum[:])
}

func (c *Cached) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, t := range texts {
		if v, ok := c.cache.Get(c.key(t)); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := c.inner.Encode(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	for j, idx := range missIdx {
		out[idx] = fresh[j]
		c.cache.Add(c.key(missTexts[j]), fresh[j])
	}

	return out, nil
}

func (c *Cached) Dimensions() int                    { return c.inner.Dimensions() }
func (c *Cached) ModelName() string                  { return c.inner.ModelName() }
func (c *Cached) Available(ctx context.Context) bool { return c.inner.Available(ctx) }
func (c *Cached) Close() error                       { return c.inner.Close() }

// Inner exposes the wrapped backend for callers that need to check its
// concrete type (e.g. the background governor deciding whether a
// provider is hot-reloadable).
func (c *Cached) Inner() Embedder { return c.inner }
