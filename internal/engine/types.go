// Package engine implements the memory engine: the CRUD, search, dedup,
// supersede and rebuild operations that bind the vector store, sparse
// index, metadata log, embedder, lock manager, and snapshot/sync layer
// into one consistent unit, per the write discipline in types.go/engine.go.
package engine

import (
	"time"

	"github.com/divyekant/memoryd/internal/memory"
)

// Config controls the engine's tunables. Zero values take the package
// defaults applied in New.
type Config struct {
	DataDir string

	VectorDimensions int
	VectorMetric     string
	VectorM          int
	VectorEfSearch   int

	DedupThreshold    float64
	NoveltyThreshold  float64
	VectorWeight      float64
	RRFConstant       int
	AddBatchSize      int
	EncodeChunkSize   int
	AddSnapshotAbove  int
	ChunkMaxSize      int
	ChunkOverlap      int

	EmbedProvider  string
	EmbedModel     string
	StorageBackend string
}

const (
	defaultDedupThreshold   = 0.90
	defaultNoveltyThreshold = 0.88
	defaultVectorWeight     = 0.7
	defaultEncodeChunkSize  = 100
	defaultUpsertBatchSize  = 256
	defaultAddSnapshotAbove = 10
)

func (c Config) withDefaults() Config {
	if c.DedupThreshold == 0 {
		c.DedupThreshold = defaultDedupThreshold
	}
	if c.NoveltyThreshold == 0 {
		c.NoveltyThreshold = defaultNoveltyThreshold
	}
	if c.VectorWeight == 0 {
		c.VectorWeight = defaultVectorWeight
	}
	if c.EncodeChunkSize <= 0 {
		c.EncodeChunkSize = defaultEncodeChunkSize
	}
	if c.AddBatchSize <= 0 {
		c.AddBatchSize = defaultUpsertBatchSize
	}
	if c.AddSnapshotAbove <= 0 {
		c.AddSnapshotAbove = defaultAddSnapshotAbove
	}
	return c
}

// SearchHit is one scored result from a vector-only search.
type SearchHit struct {
	Record     *memory.Record
	Similarity float64
}

// HybridHit is one scored result from hybridSearch, carrying both legs'
// contributions for callers that want to explain a ranking.
type HybridHit struct {
	Record      *memory.Record
	RRFScore    float64
	SparseScore float64
	DenseScore  float64
	InBothLegs  bool
}

// DedupPair is one candidate duplicate pair discovered by Deduplicate.
type DedupPair struct {
	KeepID   int64
	RemoveID int64
	Score    float64
}

// DedupResult is the outcome of a Deduplicate call.
type DedupResult struct {
	Pairs        []DedupPair
	RemovedCount int
	DryRun       bool
}

// UpsertOutcome reports whether upsert created a new record or updated
// an existing one.
type UpsertOutcome struct {
	ID     int64
	Action string // "created" | "updated"
}

// ReloadCounters mirrors governor.ReloadCounters, reported by Stats.
type ReloadCounters struct {
	Triggered int64
	Succeeded int64
	Failed    int64
}

// TrimCounters mirrors governor.TrimCounters, reported by Stats.
type TrimCounters struct {
	Triggered int64
	Skipped   int64
}

// Stats is the full /stats payload.
type Stats struct {
	TotalMemories    int
	EmbedderModel    string
	EmbedderProvider string
	Dimension        int
	StorageBackend   string
	ExtractionQueue  int
	VectorOrphans    int
	Trim             TrimCounters
	Reload           ReloadCounters
	GeneratedAt      time.Time
}

// StatsLight is the cheap /health payload.
type StatsLight struct {
	TotalMemories int
	Dimension     int
	Model         string
}

// ReadyStatus is the /health/ready payload.
type ReadyStatus struct {
	Ready          bool
	VectorCount    int
	MetadataCount  int
}
