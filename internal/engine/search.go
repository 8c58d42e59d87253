package engine

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/divyekant/memoryd/internal/apperr"
	"github.com/divyekant/memoryd/internal/fusion"
	"github.com/divyekant/memoryd/internal/memory"
	"github.com/divyekant/memoryd/internal/sparseindex"
)

// Search runs a vector-only nearest-neighbour query.
func (e *Engine) Search(ctx context.Context, query string, k int, threshold *float32, sourcePrefix string) ([]SearchHit, error) {
	n := e.store.Len()
	if n == 0 {
		return []SearchHit{}, nil
	}

	limit := k
	if limit > n {
		limit = n
	}
	if limit > 100 {
		limit = 100
	}
	if limit <= 0 {
		return []SearchHit{}, nil
	}

	vecs, err := e.encode(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	hits, err := e.vector.Search(ctx, vecs[0], limit, threshold)
	if err != nil {
		return nil, apperr.NewInternal("vector search failed", err)
	}

	out := make([]SearchHit, 0, limit)
	for _, h := range hits {
		r, ok := e.store.Get(h.ID)
		if !ok {
			continue
		}
		if sourcePrefix != "" && !strings.HasPrefix(r.Source, sourcePrefix) {
			continue
		}
		out = append(out, SearchHit{Record: r, Similarity: roundTo(float64(h.Score), 6)})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// HybridSearch fuses a vector leg and a BM25 leg via Reciprocal Rank
// Fusion, both legs running concurrently since each is an independent
// suspension point.
func (e *Engine) HybridSearch(ctx context.Context, query string, k int, threshold *float32, vectorWeight float64, sourcePrefix string) ([]HybridHit, error) {
	n := e.store.Len()
	if n == 0 {
		return []HybridHit{}, nil
	}
	if vectorWeight == 0 {
		vectorWeight = e.cfg.VectorWeight
	}
	oversample := k * 3
	if oversample > n {
		oversample = n
	}
	if oversample <= 0 {
		return []HybridHit{}, nil
	}

	var (
		denseHits  []SearchHit
		sparseHits []fusion.SparseHit
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := e.Search(gctx, query, oversample, threshold, sourcePrefix)
		if err != nil {
			return err
		}
		denseHits = hits
		return nil
	})
	g.Go(func() error {
		sparseHits = e.sparseLegScores(query, oversample, sourcePrefix)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dense := make([]fusion.DenseHit, len(denseHits))
	byID := make(map[int64]*memory.Record, len(denseHits))
	for i, h := range denseHits {
		dense[i] = fusion.DenseHit{ID: h.Record.ID, Score: float32(h.Similarity)}
		byID[h.Record.ID] = h.Record
	}

	fused := e.fuser.Fuse(dense, sparseHits, vectorWeight)

	out := make([]HybridHit, 0, k)
	for _, f := range fused {
		r, ok := byID[f.ID]
		if !ok {
			r, ok = e.store.Get(f.ID)
			if !ok {
				continue
			}
		}
		if threshold != nil && f.DenseRank > 0 && f.DenseScore < *threshold {
			continue
		}
		out = append(out, HybridHit{
			Record:      r,
			RRFScore:    roundTo(f.RRFScore, 6),
			SparseScore: f.SparseScore,
			DenseScore:  float64(f.DenseScore),
			InBothLegs:  f.InBothLegs,
		})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// sparseLegScores scores the BM25 corpus against query, optionally
// restricted to records under sourcePrefix, and returns the top n hits
// sorted by descending score.
func (e *Engine) sparseLegScores(query string, n int, sourcePrefix string) []fusion.SparseHit {
	e.sparseMu.RLock()
	idx := e.sparse
	e.sparseMu.RUnlock()
	if idx == nil {
		return nil
	}

	tokens := sparseindex.Tokenize(query)
	scores := idx.Scores(tokens)

	hits := make([]fusion.SparseHit, 0, len(scores))
	for pos, score := range scores {
		if score <= 0 {
			continue
		}
		id, ok := idx.PositionToID(pos)
		if !ok {
			continue
		}
		if sourcePrefix != "" {
			r, ok := e.store.Get(id)
			if !ok || !strings.HasPrefix(r.Source, sourcePrefix) {
				continue
			}
		}
		hits = append(hits, fusion.SparseHit{ID: id, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > n {
		hits = hits[:n]
	}
	return hits
}

// IsNovel reports whether text's closest existing match falls below
// threshold.
func (e *Engine) IsNovel(ctx context.Context, text string, threshold float64) (bool, error) {
	novel, _, err := e.isNovelLocked(ctx, text, threshold)
	return novel, err
}

// IsNovelWithMatch behaves like IsNovel but also returns the closest
// existing match, if any, for callers that need to surface it (e.g. the
// HTTP /memory/is-novel endpoint).
func (e *Engine) IsNovelWithMatch(ctx context.Context, text string, threshold float64) (bool, *SearchHit, error) {
	return e.isNovelLocked(ctx, text, threshold)
}

func (e *Engine) isNovelLocked(ctx context.Context, text string, threshold float64) (bool, *SearchHit, error) {
	hits, err := e.Search(ctx, text, 1, nil, "")
	if err != nil {
		return false, nil, err
	}
	if len(hits) == 0 {
		return true, nil, nil
	}
	top := hits[0]
	return top.Similarity < threshold, &top, nil
}
