// Package diagnostics provides a local full-text index over memoryd's
// own log files, backing the `memoryd logs search` subcommand. It is a
// CLI convenience, not part of the memory corpus's search path.
package diagnostics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/divyekant/memoryd/internal/logging"
)

// Entry is one indexed log line, addressable by a stable document id so
// re-indexing the same file is idempotent.
type Entry struct {
	ID     string
	Time   string
	Level  string
	Source string
	Msg    string
}

// bleveDoc is the shape actually handed to Bleve for indexing/scoring;
// kept separate from Entry so the document id never leaks into the
// indexed fields.
type bleveDoc struct {
	Time   string `json:"time"`
	Level  string `json:"level"`
	Source string `json:"source"`
	Msg    string `json:"msg"`
}

// Index wraps a Bleve index over log entries. One Index is built per
// `memoryd logs` invocation; there is no long-lived daemon-side index.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
	path  string
}

// Open creates or opens a Bleve index at path. An empty path builds an
// in-memory index, used by ad hoc one-shot searches that don't want to
// leave index files behind.
func Open(path string) (*Index, error) {
	mapping := bleve.NewIndexMapping()

	if path == "" {
		idx, err := bleve.NewMemOnly(mapping)
		if err != nil {
			return nil, fmt.Errorf("diagnostics: create in-memory index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("diagnostics: create index dir: %w", err)
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, mapping)
	}
	if err != nil {
		return nil, fmt.Errorf("diagnostics: open index: %w", err)
	}
	return &Index{index: idx, path: path}, nil
}

// Close releases the underlying Bleve index.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.index.Close()
}

// IndexEntries batches entries into the index, keyed by Entry.ID.
func (ix *Index) IndexEntries(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	batch := ix.index.NewBatch()
	for _, e := range entries {
		doc := bleveDoc{Time: e.Time, Level: e.Level, Source: e.Source, Msg: e.Msg}
		if err := batch.Index(e.ID, doc); err != nil {
			return fmt.Errorf("diagnostics: batch entry %s: %w", e.ID, err)
		}
	}
	return ix.index.Batch(batch)
}

// IndexLogFiles reads every path with the log viewer's parser and
// indexes each parsed line, skipping ones that failed to parse as JSON.
func (ix *Index) IndexLogFiles(paths []string) (int, error) {
	viewer := logging.NewViewer(logging.ViewerConfig{}, nil)

	// TailMultiple's n caps lines kept per file; there is no "all lines"
	// sentinel, so pass a ceiling far past any realistic log file length.
	const allLines = 1_000_000
	entries, err := viewer.TailMultiple(paths, allLines)
	if err != nil {
		return 0, fmt.Errorf("diagnostics: read log files: %w", err)
	}

	toIndex := make([]Entry, 0, len(entries))
	for i, e := range entries {
		if !e.IsValid {
			continue
		}
		toIndex = append(toIndex, Entry{
			ID:     fmt.Sprintf("%d-%s", i, e.Time.Format("20060102T150405.000000000Z")),
			Time:   e.Time.UTC().Format("2006-01-02T15:04:05Z07:00"),
			Level:  e.Level,
			Source: e.Source,
			Msg:    e.Msg,
		})
	}

	if err := ix.IndexEntries(toIndex); err != nil {
		return 0, err
	}
	return len(toIndex), nil
}

// Result is one search hit, carrying the score Bleve assigned and the
// fields needed to print a line without a second file read.
type Result struct {
	Score  float64
	Time   string
	Level  string
	Source string
	Msg    string
}

// Search runs a BM25-scored match query against indexed messages,
// optionally restricted to a level and/or source.
func (ix *Index) Search(ctx context.Context, query string, level, source string, limit int) ([]Result, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	var q bleve.Query
	if query == "" {
		q = bleve.NewMatchAllQuery()
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField("msg")
		q = mq
	}

	conjuncts := []bleve.Query{q}
	if level != "" {
		lq := bleve.NewTermQuery(level)
		lq.SetField("level")
		conjuncts = append(conjuncts, lq)
	}
	if source != "" {
		sq := bleve.NewTermQuery(source)
		sq.SetField("source")
		conjuncts = append(conjuncts, sq)
	}
	if len(conjuncts) > 1 {
		q = bleve.NewConjunctionQuery(conjuncts...)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"time", "level", "source", "msg"}
	req.SortBy([]string{"-_score"})

	res, err := ix.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: search: %w", err)
	}

	out := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, Result{
			Score:  hit.Score,
			Time:   fieldString(hit.Fields, "time"),
			Level:  fieldString(hit.Fields, "level"),
			Source: fieldString(hit.Fields, "source"),
			Msg:    fieldString(hit.Fields, "msg"),
		})
	}
	return out, nil
}

// DocCount reports how many entries are currently indexed.
func (ix *Index) DocCount() (uint64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.index.DocCount()
}

func fieldString(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
