package extraction

import "context"

// SimilarMemory is the shape of a hybridSearch hit as needed by AUDN
// prompt construction.
type SimilarMemory struct {
	ID         int64
	Text       string
	Similarity float64
}

// EngineClient is the narrow slice of the memory engine the extraction
// pipeline depends on. Defined here (not in internal/engine) so this
// package has no import-time dependency on the engine's concrete type.
type EngineClient interface {
	HybridSearch(ctx context.Context, query string, k int) ([]SimilarMemory, error)
	IsNovel(ctx context.Context, text string, threshold float64) (bool, error)
	AddMemory(ctx context.Context, text, source string, metadata map[string]any, deduplicate bool) (int64, error)
	DeleteMemory(ctx context.Context, id int64) error
}
