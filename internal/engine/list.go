package engine

import (
	"strings"
	"time"

	"github.com/divyekant/memoryd/internal/memory"
)

// ListMemories returns a page of records ordered by id, optionally
// restricted to sources starting with sourceFilterPrefix.
func (e *Engine) ListMemories(offset, limit int, sourceFilterPrefix string) []*memory.Record {
	all := e.store.All()
	var filtered []*memory.Record
	if sourceFilterPrefix == "" {
		filtered = all
	} else {
		filtered = make([]*memory.Record, 0, len(all))
		for _, r := range all {
			if strings.HasPrefix(r.Source, sourceFilterPrefix) {
				filtered = append(filtered, r)
			}
		}
	}

	if offset >= len(filtered) {
		return []*memory.Record{}
	}
	end := offset + limit
	if end > len(filtered) || limit <= 0 {
		end = len(filtered)
	}
	return filtered[offset:end]
}

// CountMemories returns the number of records, optionally restricted to
// a source prefix.
func (e *Engine) CountMemories(prefix string) int {
	if prefix == "" {
		return e.store.Len()
	}
	count := 0
	for _, r := range e.store.All() {
		if strings.HasPrefix(r.Source, prefix) {
			count++
		}
	}
	return count
}

// IsReady reports whether the vector store and metadata log agree on
// count, the precondition every other read assumes holds.
func (e *Engine) IsReady() ReadyStatus {
	vc := e.vector.Count()
	mc := e.store.Len()
	return ReadyStatus{Ready: vc == mc, VectorCount: vc, MetadataCount: mc}
}

// StatsLight is the cheap payload for /health: no governor counters, no
// extraction queue depth.
func (e *Engine) StatsLight() StatsLight {
	emb := e.currentEmbedder()
	model := ""
	dim := 0
	if emb != nil {
		model = emb.ModelName()
		dim = emb.Dimensions()
	}
	return StatsLight{TotalMemories: e.store.Len(), Dimension: dim, Model: model}
}

// Stats is the full payload for /stats: adds embedder provider,
// extraction queue depth, vector orphan count, and the background
// governor's trim/reload counters (wired in via SetGovernorStatsFunc).
func (e *Engine) Stats() Stats {
	emb := e.currentEmbedder()
	model, provider, dim := "", e.cfg.EmbedProvider, 0
	if emb != nil {
		model = emb.ModelName()
		dim = emb.Dimensions()
	}

	queueDepth := 0
	if e.queueDepth != nil {
		queueDepth = e.queueDepth()
	}

	var trim TrimCounters
	var reload ReloadCounters
	if e.governorStats != nil {
		trim, reload = e.governorStats()
	}

	return Stats{
		TotalMemories:    e.store.Len(),
		EmbedderModel:    model,
		EmbedderProvider: provider,
		Dimension:        dim,
		StorageBackend:   e.cfg.StorageBackend,
		ExtractionQueue:  queueDepth,
		VectorOrphans:    e.vector.Stats().Orphans,
		Trim:             trim,
		Reload:           reload,
		GeneratedAt:      time.Now().UTC(),
	}
}
