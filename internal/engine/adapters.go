package engine

import (
	"context"
	"fmt"

	"github.com/divyekant/memoryd/internal/apperr"
	"github.com/divyekant/memoryd/internal/embedder"
	"github.com/divyekant/memoryd/internal/extraction"
	"github.com/divyekant/memoryd/internal/governor"
	"github.com/divyekant/memoryd/internal/metadatastore"
	"github.com/divyekant/memoryd/internal/snapshot"
)

var (
	_ governor.EmbedderReloader = (*Engine)(nil)
	_ snapshot.StateReloader    = (*Engine)(nil)
)

// ExtractionClient wraps an Engine to present the narrow, differently-
// shaped EngineClient the extraction pipeline depends on. A wrapper
// type (rather than methods on Engine itself) is needed because the
// extraction contract's HybridSearch has a different signature than
// the engine's own richer HybridSearch, used directly by the HTTP
// surface's /search endpoints.
type ExtractionClient struct {
	*Engine
}

var _ extraction.EngineClient = ExtractionClient{}

// HybridSearch adapts the engine's richer HybridSearch to the shape
// the extraction pipeline's AUDN prompt construction needs.
func (c ExtractionClient) HybridSearch(ctx context.Context, query string, k int) ([]extraction.SimilarMemory, error) {
	hits, err := c.Engine.HybridSearch(ctx, query, k, nil, 0, "")
	if err != nil {
		return nil, err
	}
	out := make([]extraction.SimilarMemory, len(hits))
	for i, h := range hits {
		out[i] = extraction.SimilarMemory{ID: h.Record.ID, Text: h.Record.Text, Similarity: h.RRFScore}
	}
	return out, nil
}

// AddMemory adapts Add to the single-text shape extraction.EngineClient
// needs.
func (c ExtractionClient) AddMemory(ctx context.Context, text, source string, metadata map[string]any, deduplicate bool) (int64, error) {
	ids, err := c.Engine.Add(ctx, []string{text}, []string{source}, []map[string]any{metadata}, deduplicate, 0)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, apperr.NewFailedPrecondition("add filtered by deduplication")
	}
	return ids[0], nil
}

// DeleteMemory adapts Delete to extraction.EngineClient.
func (c ExtractionClient) DeleteMemory(ctx context.Context, id int64) error {
	return c.Engine.Delete(ctx, id)
}

// ReloadEmbedder constructs a replacement embedder, verifies its
// dimension matches the current one, and swaps it in under the global
// write lock and embedder mutex. The background governor calls this
// after its RSS-driven decision gates pass, then runs the trimmer on
// success.
func (e *Engine) ReloadEmbedder(ctx context.Context) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.embedMu.Lock()
	current := e.embed
	e.embedMu.Unlock()

	settings := embedder.Settings{
		Provider:  embedder.ParseProvider(e.cfg.EmbedProvider),
		Model:     e.cfg.EmbedModel,
		CacheSize: -1,
	}
	fresh, err := embedder.New(ctx, settings)
	if err != nil {
		return apperr.NewUnavailable("construct replacement embedder", err)
	}

	if current != nil && fresh.Dimensions() != current.Dimensions() {
		_ = fresh.Close()
		return apperr.NewFailedPrecondition(fmt.Sprintf(
			"embedder dimension mismatch: current %d, replacement %d", current.Dimensions(), fresh.Dimensions()))
	}

	e.embedMu.Lock()
	e.embed = fresh
	e.embedMu.Unlock()

	cfg := metadatastore.StoreConfig{
		Model:          fresh.ModelName(),
		EmbedProvider:  string(settings.Provider),
		Dimension:      fresh.Dimensions(),
		StorageBackend: e.cfg.StorageBackend,
	}
	if err := metadatastore.SaveConfig(e.cfg.DataDir, cfg); err != nil {
		e.logger.Warn("reload: save config failed", "error", err.Error())
	}

	if current != nil {
		_ = current.Close()
	}
	return nil
}

// ReloadFromDisk re-reads metadata.json and config.json, rebuilds the
// sparse index, then recreates the vector store collection and
// re-embeds every record from the text just loaded. Snapshots cover
// metadata.json/config.json, not the HNSW index, so a restore always
// leaves the vector store stale; rebuilding it here means both the HTTP
// restore endpoint and the CLI restore command get a consistent,
// reindexed result instead of only one of them compensating.
func (e *Engine) ReloadFromDisk(ctx context.Context) error {
	fresh, err := metadatastore.Open(e.cfg.DataDir)
	if err != nil {
		return apperr.NewInternal("reload metadata from disk", err)
	}

	e.writeMu.Lock()
	for _, r := range e.store.All() {
		e.store.Delete(r.ID)
	}
	for _, r := range fresh.All() {
		e.store.Put(r)
	}
	e.nextID = e.computeNextID()
	e.rebuildSparseLocked()
	e.writeMu.Unlock()

	dim := e.vector.Dimension()
	if dim == 0 {
		if emb := e.currentEmbedder(); emb != nil {
			dim = emb.Dimensions()
		}
	}
	if dim > 0 {
		if err := e.vector.RecreateCollection(dim); err != nil {
			return apperr.NewInternal("recreate vector collection after reload", err)
		}
		if _, err := e.RehydrateVectors(ctx); err != nil {
			return apperr.NewInternal("rehydrate vectors after reload", err)
		}
	}
	return nil
}
