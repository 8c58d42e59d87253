package httpapi

import (
	"net/http"
)

type searchRequest struct {
	Query        string   `json:"query"`
	K            int      `json:"k"`
	Threshold    *float32 `json:"threshold,omitempty"`
	SourcePrefix string   `json:"source_prefix,omitempty"`
	Hybrid       bool     `json:"hybrid,omitempty"`
	VectorWeight float64  `json:"vector_weight,omitempty"`
}

func (req *searchRequest) normalize() {
	if req.K <= 0 {
		req.K = 10
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Query == "" {
		writeBadRequest(w, "query must not be empty")
		return
	}
	req.normalize()

	if req.Hybrid {
		hits, err := s.engine.HybridSearch(r.Context(), req.Query, req.K, req.Threshold, req.VectorWeight, req.SourcePrefix)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": hits})
		return
	}

	hits, err := s.engine.Search(r.Context(), req.Query, req.K, req.Threshold, req.SourcePrefix)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

type searchBatchRequest struct {
	Queries []searchRequest `json:"queries"`
}

func (s *Server) handleSearchBatch(w http.ResponseWriter, r *http.Request) {
	var req searchBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Queries) == 0 {
		writeBadRequest(w, "queries must not be empty")
		return
	}

	results := make([]map[string]any, len(req.Queries))
	for i := range req.Queries {
		q := req.Queries[i]
		q.normalize()
		if q.Query == "" {
			results[i] = map[string]any{"error": "query must not be empty"}
			continue
		}

		if q.Hybrid {
			hits, err := s.engine.HybridSearch(r.Context(), q.Query, q.K, q.Threshold, q.VectorWeight, q.SourcePrefix)
			if err != nil {
				results[i] = map[string]any{"error": err.Error()}
				continue
			}
			results[i] = map[string]any{"results": hits}
			continue
		}

		hits, err := s.engine.Search(r.Context(), q.Query, q.K, q.Threshold, q.SourcePrefix)
		if err != nil {
			results[i] = map[string]any{"error": err.Error()}
			continue
		}
		results[i] = map[string]any{"results": hits}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
