package httpapi

import (
	"net/http"

	"github.com/divyekant/memoryd/internal/apperr"
)

type indexBuildRequest struct {
	// Files maps a source label to the markdown content to chunk and
	// embed. The index is cleared and rebuilt entirely from Files.
	Files map[string]string `json:"files"`
}

func (s *Server) handleIndexBuild(w http.ResponseWriter, r *http.Request) {
	var req indexBuildRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	count, err := s.engine.RebuildFromFiles(r.Context(), req.Files)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record_count": count})
}

type deduplicateRequest struct {
	Threshold float64 `json:"threshold,omitempty"`
	DryRun    bool    `json:"dry_run,omitempty"`
}

func (s *Server) handleDeduplicate(w http.ResponseWriter, r *http.Request) {
	var req deduplicateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := s.engine.Deduplicate(r.Context(), req.Threshold, req.DryRun)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type supersedeRequest struct {
	OldID   int64  `json:"old_id"`
	NewText string `json:"new_text"`
	Source  string `json:"source"`
}

func (s *Server) handleSupersede(w http.ResponseWriter, r *http.Request) {
	var req supersedeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.NewText == "" || req.Source == "" {
		writeBadRequest(w, "new_text and source are required")
		return
	}
	newID, err := s.engine.Supersede(r.Context(), req.OldID, req.NewText, req.Source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"new_id": newID})
}

type consolidateRequest struct {
	SourcePrefix   string  `json:"source_prefix,omitempty"`
	Threshold      float64 `json:"threshold,omitempty"`
	MinClusterSize int     `json:"min_cluster_size,omitempty"`
	DryRun         bool    `json:"dry_run,omitempty"`
}

type consolidateCluster struct {
	MemberIDs   []int64  `json:"member_ids"`
	MergedCount int      `json:"merged_count"`
	NewCount    int      `json:"new_count"`
	NewTexts    []string `json:"new_texts,omitempty"`
}

// handleConsolidate finds clusters of near-duplicate memories under an
// optional source prefix and LLM-merges each one into one or two
// concise replacements. A nil provider (extraction disabled) fails the
// whole request, since there is no cluster-merging strategy that
// doesn't call the LLM.
func (s *Server) handleConsolidate(w http.ResponseWriter, r *http.Request) {
	if s.pool == nil {
		writeError(w, apperr.NewFailedPrecondition("consolidation requires extraction to be configured"))
		return
	}

	var req consolidateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	provider := s.pool.Provider()
	if provider == nil {
		writeError(w, apperr.NewUnavailable("consolidation requires extraction to be enabled", nil))
		return
	}

	clusters, err := s.engine.FindClusters(r.Context(), req.SourcePrefix, req.Threshold, req.MinClusterSize)
	if err != nil {
		writeError(w, err)
		return
	}

	results := make([]consolidateCluster, 0, len(clusters))
	for _, cluster := range clusters {
		outcome, err := s.engine.ConsolidateCluster(r.Context(), provider, cluster, req.DryRun)
		if err != nil {
			writeError(w, err)
			return
		}
		results = append(results, consolidateCluster{
			MemberIDs:   outcome.OldIDs,
			MergedCount: outcome.MergedCount,
			NewCount:    outcome.NewCount,
			NewTexts:    outcome.NewTexts,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"clusters": results,
		"dry_run":  req.DryRun,
	})
}

func (s *Server) handleEmbedderReload(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ReloadEmbedder(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reloaded": true})
}
