package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/divyekant/memoryd/internal/apperr"
	"github.com/divyekant/memoryd/internal/embedder"
	"github.com/divyekant/memoryd/internal/fusion"
	"github.com/divyekant/memoryd/internal/lockmanager"
	"github.com/divyekant/memoryd/internal/metadatastore"
	"github.com/divyekant/memoryd/internal/snapshot"
	"github.com/divyekant/memoryd/internal/sparseindex"
	"github.com/divyekant/memoryd/internal/vectorstore"
)

// QueueDepthFunc reports the extraction pipeline's current queue depth,
// wired in after the extraction pool is constructed (it depends on the
// engine as its EngineClient, so the engine cannot import it back).
type QueueDepthFunc func() int

// GovernorStatsFunc reports the background governor's trim/reload
// counters, wired in the same way as QueueDepthFunc.
type GovernorStatsFunc func() (TrimCounters, ReloadCounters)

// Engine is the memory engine: the single mutable owner of the metadata
// log, the vector store, the sparse index, and the embedder, coordinated
// through a global write lock plus a keyed per-entity lock manager.
type Engine struct {
	cfg Config

	store  *metadatastore.Store
	vector *vectorstore.Store
	fuser  *fusion.Fuser
	locks  *lockmanager.Manager
	snap   *snapshot.Manager
	logger *slog.Logger

	embedMu sync.Mutex
	embed   embedder.Embedder

	writeMu sync.Mutex // the global write mutex (§5)

	sparseMu sync.RWMutex
	sparse   *sparseindex.Index

	nextID int64

	queueDepth    QueueDepthFunc
	governorStats GovernorStatsFunc

	activeRequests int64 // atomic-free; only read racily for /stats, never gates correctness
}

// New constructs an engine over an already-open metadata store and
// vector store, with a freshly built sparse index from the store's
// current contents.
func New(cfg Config, store *metadatastore.Store, vector *vectorstore.Store, embed embedder.Embedder, snap *snapshot.Manager, logger *slog.Logger) *Engine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:    cfg,
		store:  store,
		vector: vector,
		embed:  embed,
		fuser:  fusion.NewWithK(orDefault(cfg.RRFConstant, fusion.DefaultK)),
		locks:  lockmanager.New(),
		snap:   snap,
		logger: logger,
	}
	e.rebuildSparseLocked()
	e.nextID = e.computeNextID()
	return e
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// SetQueueDepthFunc wires in the extraction pipeline's queue depth
// reporter, once the pool has been constructed with this engine as its
// EngineClient.
func (e *Engine) SetQueueDepthFunc(f QueueDepthFunc) { e.queueDepth = f }

// SetGovernorStatsFunc wires in the background governor's counters,
// once the governor has been constructed with this engine as its
// EmbedderReloader.
func (e *Engine) SetGovernorStatsFunc(f GovernorStatsFunc) { e.governorStats = f }

func (e *Engine) computeNextID() int64 {
	var max int64 = -1
	for _, r := range e.store.All() {
		if r.ID > max {
			max = r.ID
		}
	}
	return max + 1
}

// rebuildSparseLocked rebuilds the sparse index from the current
// metadata contents. Callers must hold writeMu (or be in New, before
// any other goroutine has a reference to e).
func (e *Engine) rebuildSparseLocked() {
	records := e.store.All()
	docs := make([]sparseindex.Document, len(records))
	for i, r := range records {
		docs[i] = sparseindex.Document{ID: r.ID, Text: r.Text}
	}
	idx := sparseindex.New(docs)

	e.sparseMu.Lock()
	e.sparse = idx
	e.sparseMu.Unlock()
}

func (e *Engine) encode(ctx context.Context, texts []string) ([][]float32, error) {
	e.embedMu.Lock()
	defer e.embedMu.Unlock()

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.EncodeChunkSize {
		end := start + e.cfg.EncodeChunkSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embed.Encode(ctx, texts[start:end])
		if err != nil {
			return nil, apperr.NewUnavailable("embedder encode failed", err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *Engine) currentEmbedder() embedder.Embedder {
	e.embedMu.Lock()
	defer e.embedMu.Unlock()
	return e.embed
}

// snapshotBestEffort takes a prefixed snapshot and logs (never returns)
// a failure, matching §4.10's "cloud upload failure never fails a
// write" policy extended to local pre-* snapshots taken before a
// mutation has begun.
func (e *Engine) snapshotBestEffort(ctx context.Context, prefix string) {
	if e.snap == nil {
		return
	}
	if _, err := e.snap.Snapshot(ctx, prefix); err != nil {
		e.logger.Warn("snapshot failed", slog.String("prefix", prefix), slog.String("error", err.Error()))
	}
}

// persistLocked saves metadata.json after a mutation; config.json is
// not written here. Callers must hold writeMu.
func (e *Engine) persistLocked() error {
	if err := e.store.Save(); err != nil {
		return apperr.NewInternal("persist metadata", err)
	}
	return nil
}

func roundTo(v float64, places int) float64 {
	mult := 1.0
	for i := 0; i < places; i++ {
		mult *= 10
	}
	return float64(int64(v*mult+0.5)) / mult
}
