package engine

import (
	"context"
	"sort"

	"github.com/divyekant/memoryd/internal/apperr"
	"github.com/divyekant/memoryd/internal/vectorstore"
)

// RehydrateVectors re-embeds every stored record and upserts it into the
// vector store, in batches of cfg.AddBatchSize/EncodeChunkSize the same
// way Add does. The vector store is never persisted to disk on its own
// (unlike metadata.json and the sparse index, which are rebuilt in New
// from the store's text), so a fresh process needs this once at startup
// whenever the vector store is empty but metadata is not. Called from
// the serving process's startup path and from ReloadFromDisk after a
// snapshot restore.
func (e *Engine) RehydrateVectors(ctx context.Context) (int, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	records := e.store.All()
	if len(records) == 0 {
		return 0, nil
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Text
	}

	vectors, err := e.encode(ctx, texts)
	if err != nil {
		return 0, err
	}

	points := make([]vectorstore.Point, len(records))
	for i, r := range records {
		points[i] = vectorstore.Point{ID: r.ID, Vector: vectors[i]}
	}

	if err := e.upsertPointsBatched(ctx, points); err != nil {
		return 0, apperr.NewInternal("rehydrate vectors failed", err)
	}
	return len(points), nil
}
