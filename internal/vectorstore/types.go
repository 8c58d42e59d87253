// Package vectorstore adapts a pure-Go HNSW graph to the memory engine's
// id-keyed, collection-oriented vector store contract.
package vectorstore

import "fmt"

// Config controls the underlying HNSW graph.
type Config struct {
	Dimensions int
	Metric     string // "cos" (default) or "l2"
	M          int
	EfSearch   int
}

// Point is one vector plus its engine-assigned id, ready for upsert.
type Point struct {
	ID     int64
	Vector []float32
}

// Hit is one search result: a point's id, its stored vector (payload),
// and a similarity score in roughly [-1, 1] (practically [0,1] for unit
// vectors under cosine distance).
type Hit struct {
	ID      int64
	Payload []float32
	Score   float32
}

// ErrDimensionMismatch is returned when a vector's length doesn't match
// the collection's configured dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vectorstore: dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Stats describes the graph's orphan count; the engine reports it in
// its stats.
type Stats struct {
	ValidIDs   int
	GraphNodes int
	Orphans    int
}
