package engine

import (
	"context"
	"strings"
	"time"

	"github.com/divyekant/memoryd/internal/apperr"
	"github.com/divyekant/memoryd/internal/memory"
	"github.com/divyekant/memoryd/internal/vectorstore"
)

func entityKeyFor(source string) string {
	return "default:" + source
}

// asInt64 extracts an int64 out of the numeric types a metadata value for
// "supersedes" can arrive as: int64 from Go call sites, float64 if it ever
// round-trips through JSON.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// Add stores one or more texts, returning the ids actually allocated
// (fewer than len(texts) if deduplicate filtered some out).
func (e *Engine) Add(ctx context.Context, texts, sources []string, metadatas []map[string]any, deduplicate bool, dedupThreshold float64) ([]int64, error) {
	return e.add(ctx, texts, sources, metadatas, deduplicate, dedupThreshold, nil)
}

// add is Add's implementation plus an optional per-text entity_key,
// indexed the same as texts (nil or short means no key for that text).
// entity_key is reserved against caller-supplied metadata, so this is
// the one path allowed to set it: Upsert uses it to tag a record for
// future lookup without going through the strip. entityKeys indices are
// only meaningful when deduplicate is false, since deduplication can
// drop texts and shift indices; Upsert always calls with one text and
// deduplicate=false.
func (e *Engine) add(ctx context.Context, texts, sources []string, metadatas []map[string]any, deduplicate bool, dedupThreshold float64, entityKeys []string) ([]int64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(sources) != len(texts) {
		return nil, apperr.NewInvalidArgument("sources must align with texts")
	}
	if metadatas == nil {
		metadatas = make([]map[string]any, len(texts))
	}
	if dedupThreshold == 0 {
		dedupThreshold = e.cfg.DedupThreshold
	}

	if deduplicate && e.store.Len() > 0 {
		keepTexts := texts[:0:0]
		keepSources := sources[:0:0]
		keepMeta := metadatas[:0:0]
		for i, t := range texts {
			novel, _, err := e.isNovelLocked(ctx, t, dedupThreshold)
			if err != nil {
				return nil, err
			}
			if !novel {
				continue
			}
			keepTexts = append(keepTexts, t)
			keepSources = append(keepSources, sources[i])
			keepMeta = append(keepMeta, metadatas[i])
		}
		texts, sources, metadatas = keepTexts, keepSources, keepMeta
	}
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(sources))
	for i, s := range sources {
		keys[i] = entityKeyFor(s)
	}
	release := e.locks.AcquireMany(keys)
	defer release()

	if len(texts) > e.cfg.AddSnapshotAbove {
		e.snapshotBestEffort(ctx, "pre_add")
	}

	vectors, err := e.encode(ctx, texts)
	if err != nil {
		return nil, err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	startID := e.nextID
	ids := make([]int64, len(texts))
	points := make([]vectorstore.Point, len(texts))
	records := make([]*memory.Record, len(texts))
	now := time.Now().UTC()

	for i := range texts {
		id := startID + int64(i)
		ids[i] = id
		points[i] = vectorstore.Point{ID: id, Vector: vectors[i]}
		records[i] = &memory.Record{
			ID:        id,
			Text:      texts[i],
			Source:    sources[i],
			CreatedAt: now,
			UpdatedAt: now,
			Metadata:  memory.StripReserved(metadatas[i]),
		}
		if cat, ok := records[i].Metadata["category"].(string); ok {
			records[i].Category = memory.ValidCategory(cat)
		}
		if sup, ok := asInt64(records[i].Metadata["supersedes"]); ok {
			records[i].Supersedes = &sup
		}
		if prev, ok := records[i].Metadata["previous_text"].(string); ok {
			records[i].PreviousText = prev
		}
		if from, ok := records[i].Metadata["consolidated_from"].([]int64); ok {
			records[i].ConsolidatedFrom = from
		}
		if i < len(entityKeys) && entityKeys[i] != "" {
			if records[i].Metadata == nil {
				records[i].Metadata = make(map[string]any, 1)
			}
			records[i].Metadata["entity_key"] = entityKeys[i]
		}
	}

	if err := e.upsertPointsBatched(ctx, points); err != nil {
		return nil, err
	}

	for _, r := range records {
		e.store.Put(r)
	}
	if err := e.persistLocked(); err != nil {
		// compensate: vector store succeeded, metadata did not. Undo both.
		_ = e.vector.DeletePoints(ids)
		for _, id := range ids {
			e.store.Delete(id)
		}
		return nil, err
	}

	e.nextID = startID + int64(len(texts))
	e.rebuildSparseLocked()
	return ids, nil
}

// upsertPointsBatched upserts in chunks of AddBatchSize, compensating
// (deleting whatever already landed) if a later batch fails, so a
// caller either sees all-or-nothing from the vector store's point of
// view. Callers must hold writeMu.
func (e *Engine) upsertPointsBatched(ctx context.Context, points []vectorstore.Point) error {
	var upserted []int64
	for start := 0; start < len(points); start += e.cfg.AddBatchSize {
		end := start + e.cfg.AddBatchSize
		if end > len(points) {
			end = len(points)
		}
		batch := points[start:end]
		if err := e.vector.UpsertPoints(ctx, batch); err != nil {
			if len(upserted) > 0 {
				_ = e.vector.DeletePoints(upserted)
			}
			return apperr.NewInternal("vector store write failed", err)
		}
		for _, p := range batch {
			upserted = append(upserted, p.ID)
		}
	}
	return nil
}

// Delete removes one record by id.
func (e *Engine) Delete(ctx context.Context, id int64) error {
	e.snapshotBestEffort(ctx, "pre_delete")

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if _, ok := e.store.Get(id); !ok {
		return apperr.NewNotFound("memory not found")
	}
	return e.deleteLocked(ctx, []int64{id})
}

// deleteLocked performs the actual point+metadata removal and sparse
// rebuild. Callers must hold writeMu and have already verified
// existence where that matters for caller-visible semantics.
func (e *Engine) deleteLocked(ctx context.Context, ids []int64) error {
	if err := e.vector.DeletePoints(ids); err != nil {
		return apperr.NewInternal("vector store delete failed", err)
	}
	for _, id := range ids {
		e.store.Delete(id)
	}
	if err := e.persistLocked(); err != nil {
		return err
	}
	e.rebuildSparseLocked()
	return nil
}

// DeleteBatch deletes many ids in one snapshot+lock cycle. Missing ids
// are reported, not treated as an error.
func (e *Engine) DeleteBatch(ctx context.Context, ids []int64) (deleted []int64, missing []int64, err error) {
	e.snapshotBestEffort(ctx, "pre_delete")

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	var present []int64
	for _, id := range ids {
		if _, ok := e.store.Get(id); ok {
			present = append(present, id)
		} else {
			missing = append(missing, id)
		}
	}
	if len(present) == 0 {
		return nil, missing, nil
	}
	if err := e.deleteLocked(ctx, present); err != nil {
		return nil, missing, err
	}
	return present, missing, nil
}

// DeleteBySource deletes every record whose source contains substr.
func (e *Engine) DeleteBySource(ctx context.Context, substr string) ([]int64, error) {
	e.snapshotBestEffort(ctx, "pre_delete")

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	var ids []int64
	for _, r := range e.store.All() {
		if strings.Contains(r.Source, substr) {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := e.deleteLocked(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteByPrefix deletes every record whose source starts with prefix.
func (e *Engine) DeleteByPrefix(ctx context.Context, prefix string) ([]int64, error) {
	e.snapshotBestEffort(ctx, "pre_delete")

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	var ids []int64
	for _, r := range e.store.All() {
		if strings.HasPrefix(r.Source, prefix) {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if err := e.deleteLocked(ctx, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Get returns one record by id.
func (e *Engine) Get(id int64) (*memory.Record, error) {
	r, ok := e.store.Get(id)
	if !ok {
		return nil, apperr.NewNotFound("memory not found")
	}
	return r, nil
}

// GetBatch returns every record found among ids; missing ids are
// silently omitted.
func (e *Engine) GetBatch(ids []int64) []*memory.Record {
	out := make([]*memory.Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := e.store.Get(id); ok {
			out = append(out, r)
		}
	}
	return out
}

// Update applies a partial change to an existing record. A source-only
// change takes the fast path: no snapshot, no re-embedding.
func (e *Engine) Update(ctx context.Context, id int64, text *string, source *string, metadataPatch map[string]any) (*memory.Record, error) {
	current, ok := e.store.Get(id)
	if !ok {
		return nil, apperr.NewNotFound("memory not found")
	}
	release := e.locks.AcquireMany([]string{entityKeyFor(current.Source)})
	defer release()

	textChanged := text != nil
	fastPath := !textChanged && len(metadataPatch) == 0

	if !fastPath {
		e.snapshotBestEffort(ctx, "pre_update")
	}

	var vec []float32
	if textChanged {
		vecs, err := e.encode(ctx, []string{*text})
		if err != nil {
			return nil, err
		}
		vec = vecs[0]
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	existing, ok := e.store.Get(id)
	if !ok {
		return nil, apperr.NewNotFound("memory not found")
	}
	updated := existing.Clone()
	updated.UpdatedAt = time.Now().UTC()

	if source != nil {
		updated.Source = *source
	}
	if textChanged {
		updated.Text = *text
	}
	if len(metadataPatch) > 0 {
		patch := memory.StripReserved(metadataPatch)
		if updated.Metadata == nil {
			updated.Metadata = make(map[string]any, len(patch))
		}
		for k, v := range patch {
			updated.Metadata[k] = v
		}
	}

	if textChanged {
		if err := e.vector.UpsertPoints(ctx, []vectorstore.Point{{ID: id, Vector: vec}}); err != nil {
			return nil, apperr.NewInternal("vector store write failed", err)
		}
	}

	e.store.Put(updated)
	if err := e.persistLocked(); err != nil {
		e.store.Put(existing)
		return nil, err
	}
	if textChanged {
		e.rebuildSparseLocked()
	}
	return updated, nil
}

// Upsert finds a record with the same source and entity_key == key; if
// absent it adds one, else it updates it.
func (e *Engine) Upsert(ctx context.Context, text, source, key string, metadata map[string]any) (UpsertOutcome, error) {
	var existingID *int64
	for _, r := range e.store.All() {
		if r.Source == source && r.EntityKey() == key {
			id := r.ID
			existingID = &id
			break
		}
	}

	if existingID == nil {
		ids, err := e.add(ctx, []string{text}, []string{source}, []map[string]any{metadata}, false, 0, []string{key})
		if err != nil {
			return UpsertOutcome{}, err
		}
		if len(ids) == 0 {
			return UpsertOutcome{}, apperr.NewInternal("upsert add produced no id", nil)
		}
		return UpsertOutcome{ID: ids[0], Action: "created"}, nil
	}

	if _, err := e.Update(ctx, *existingID, &text, &source, metadata); err != nil {
		return UpsertOutcome{}, err
	}
	return UpsertOutcome{ID: *existingID, Action: "updated"}, nil
}

// Supersede deletes oldId and adds a new record carrying supersedes and
// previous_text, returning the new record's id. The new id always
// exceeds every existing id since it comes from the normal id
// allocator, run after the delete.
func (e *Engine) Supersede(ctx context.Context, oldID int64, newText, source string) (int64, error) {
	old, err := e.Get(oldID)
	if err != nil {
		return 0, err
	}

	if err := e.Delete(ctx, oldID); err != nil {
		return 0, err
	}

	meta := map[string]any{
		"supersedes":    oldID,
		"previous_text": old.Text,
	}
	ids, err := e.Add(ctx, []string{newText}, []string{source}, []map[string]any{meta}, false, 0)
	if err != nil {
		return 0, err
	}

	return ids[0], nil
}
