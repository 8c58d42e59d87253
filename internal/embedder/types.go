// Package embedder provides pluggable text-to-vector backends for the
// memory engine. Every backend is stateless with respect to the engine
// and may be hot-swapped at runtime (see the governor package);
// concurrent Encode calls must be safe since the engine serializes them
// behind a single mutex only to protect backends that are not
// thread-safe themselves, not to rate-limit thread-safe ones.
package embedder

import (
	"context"
	"math"
)

// DefaultBatchSize bounds how many texts a single backend call embeds
// at once when the caller doesn't impose its own chunking.
const DefaultBatchSize = 32

// DefaultMaxRetries is the default number of retry attempts for
// network-backed embedding backends.
const DefaultMaxRetries = 3

// Embedder turns text into fixed-dimension, L2-normalized vectors.
type Embedder interface {
	// Dimensions returns the output vector width D.
	Dimensions() int

	// Encode returns one unit-norm vector per input text, in order.
	Encode(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName identifies the backing model, for logging and stats.
	ModelName() string

	// Available reports whether the backend can currently serve requests.
	Available(ctx context.Context) bool

	// Close releases backend resources.
	Close() error
}

func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
