package engine

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/divyekant/memoryd/internal/apperr"
	"github.com/divyekant/memoryd/internal/chunk"
	"github.com/divyekant/memoryd/internal/memory"
	"github.com/divyekant/memoryd/internal/vectorstore"
)

type dedupCandidate struct {
	a, b  int64
	score float64
}

// Deduplicate encodes every record, finds each row's top-5 cosine
// neighbours, and emits candidate pairs at or above threshold. In
// dry-run mode it reports up to 20 pairs plus the total would-remove
// count; otherwise it removes the higher id of every pair, preserving
// the lowest id. Pair chains are not transitively resolved: if a≈b and
// b≈c but a and c were never compared as neighbours of each other, c
// can survive even though it duplicates a through b. This mirrors an
// intentional limitation, not a bug to fix here.
func (e *Engine) Deduplicate(ctx context.Context, threshold float64, dryRun bool) (DedupResult, error) {
	if threshold == 0 {
		threshold = e.cfg.DedupThreshold
	}

	records := e.store.All()
	if len(records) < 2 {
		return DedupResult{DryRun: dryRun}, nil
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}
	vecs, err := e.encode(ctx, texts)
	if err != nil {
		return DedupResult{}, err
	}

	seen := make(map[[2]int64]struct{})
	var candidates []dedupCandidate

	for i := range records {
		type neighbor struct {
			idx   int
			score float64
		}
		var neighbors []neighbor
		for j := range records {
			if i == j {
				continue
			}
			neighbors = append(neighbors, neighbor{idx: j, score: cosine(vecs[i], vecs[j])})
		}
		sort.Slice(neighbors, func(a, b int) bool { return neighbors[a].score > neighbors[b].score })
		if len(neighbors) > 5 {
			neighbors = neighbors[:5]
		}
		for _, nb := range neighbors {
			if nb.score < threshold {
				continue
			}
			lo, hi := records[i].ID, records[nb.idx].ID
			if lo > hi {
				lo, hi = hi, lo
			}
			key := [2]int64{lo, hi}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			candidates = append(candidates, dedupCandidate{a: lo, b: hi, score: nb.score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	result := DedupResult{DryRun: dryRun}
	for _, c := range candidates {
		result.Pairs = append(result.Pairs, DedupPair{KeepID: c.a, RemoveID: c.b, Score: roundTo(c.score, 6)})
	}

	if dryRun {
		result.RemovedCount = len(candidates)
		if len(result.Pairs) > 20 {
			result.Pairs = result.Pairs[:20]
		}
		return result, nil
	}

	removeSet := make(map[int64]struct{}, len(candidates))
	for _, c := range candidates {
		removeSet[c.b] = struct{}{}
	}
	ids := make([]int64, 0, len(removeSet))
	for id := range removeSet {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return result, nil
	}

	removed, _, err := e.DeleteBatch(ctx, ids)
	if err != nil {
		return result, err
	}
	result.RemovedCount = len(removed)
	return result, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// RebuildFromFiles clears all existing memories and rebuilds the store
// from a fresh chunking pass over the given markdown files. ids are
// assigned starting at 0 rather than continuing from nextId, which
// breaks strict id monotonicity across a rebuild boundary; this is a
// known, preserved limitation (see DESIGN.md), not fixed here.
func (e *Engine) RebuildFromFiles(ctx context.Context, files map[string]string) (int, error) {
	e.snapshotBestEffort(ctx, "pre_rebuild")

	var allChunks []chunk.Chunk
	for source, content := range files {
		allChunks = append(allChunks, chunk.Split(content, source, e.cfg.ChunkMaxSize, e.cfg.ChunkOverlap)...)
	}
	sort.Slice(allChunks, func(i, j int) bool { return allChunks[i].Source < allChunks[j].Source })

	texts := make([]string, len(allChunks))
	for i, c := range allChunks {
		texts[i] = c.Text
	}

	var vecs [][]float32
	var err error
	if len(texts) > 0 {
		vecs, err = e.encode(ctx, texts)
		if err != nil {
			return 0, err
		}
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	for _, r := range e.store.All() {
		e.store.Delete(r.ID)
	}

	dim := e.vector.Dimension()
	if err := e.vector.RecreateCollection(dim); err != nil {
		return 0, apperr.NewInternal("recreate vector collection failed", err)
	}

	points := make([]vectorstore.Point, len(allChunks))
	now := time.Now().UTC()
	for i, c := range allChunks {
		id := int64(i)
		points[i] = vectorstore.Point{ID: id, Vector: vecs[i]}
		e.store.Put(&memory.Record{
			ID:        id,
			Text:      c.Text,
			Source:    c.Source,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if len(points) > 0 {
		if err := e.vector.UpsertPoints(ctx, points); err != nil {
			return 0, apperr.NewInternal("vector store write failed", err)
		}
	}

	if err := e.persistLocked(); err != nil {
		return 0, err
	}
	e.nextID = int64(len(allChunks))
	e.rebuildSparseLocked()
	return len(allChunks), nil
}
