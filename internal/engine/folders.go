package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/divyekant/memoryd/internal/apperr"
)

// ListFolders returns the distinct top-level directory components of
// every record's source, sorted lexically. A source with no "/" is its
// own folder, matching how flat sources like "lang.md" are treated by
// ListMemories' prefix filter.
func (e *Engine) ListFolders() []string {
	seen := make(map[string]struct{})
	for _, r := range e.store.All() {
		seen[folderOf(r.Source)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func folderOf(source string) string {
	if idx := strings.Index(source, "/"); idx >= 0 {
		return source[:idx]
	}
	return source
}

// RenameFolder rewrites the source of every record whose source starts
// with oldPrefix, replacing that prefix with newPrefix. Each record is
// updated through the ordinary source-only fast path, so no re-embedding
// or snapshot is triggered.
func (e *Engine) RenameFolder(ctx context.Context, oldPrefix, newPrefix string) (int, error) {
	if oldPrefix == "" {
		return 0, apperr.NewInvalidArgument("old folder prefix must not be empty")
	}

	renamed := 0
	for _, r := range e.store.All() {
		if !strings.HasPrefix(r.Source, oldPrefix) {
			continue
		}
		newSource := newPrefix + strings.TrimPrefix(r.Source, oldPrefix)
		if _, err := e.Update(ctx, r.ID, nil, &newSource, nil); err != nil {
			return renamed, err
		}
		renamed++
	}
	return renamed, nil
}
