package httpapi

import (
	"net/http"
	"strconv"

	"github.com/divyekant/memoryd/internal/apperr"
)

type addRequest struct {
	Texts       []string         `json:"texts"`
	Sources     []string         `json:"sources"`
	Metadatas   []map[string]any `json:"metadatas,omitempty"`
	Deduplicate bool             `json:"deduplicate,omitempty"`
	DedupThresh float64          `json:"dedup_threshold,omitempty"`
}

func (s *Server) handleMemoryAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Texts) != 1 {
		writeBadRequest(w, "use /memory/add-batch for more than one text")
		return
	}
	ids, err := s.addCommon(r, req)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(ids) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"id": nil, "deduplicated": true})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": ids[0]})
}

func (s *Server) handleMemoryAddBatch(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ids, err := s.addCommon(r, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ids": ids})
}

func (s *Server) addCommon(r *http.Request, req addRequest) ([]int64, error) {
	if len(req.Texts) == 0 {
		return nil, apperr.NewInvalidArgument("texts must not be empty")
	}
	return s.engine.Add(r.Context(), req.Texts, req.Sources, req.Metadatas, req.Deduplicate, req.DedupThresh)
}

type upsertRequest struct {
	Text     string         `json:"text"`
	Source   string         `json:"source"`
	Key      string         `json:"key"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleMemoryUpsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Text == "" || req.Source == "" || req.Key == "" {
		writeBadRequest(w, "text, source, and key are required")
		return
	}
	outcome, err := s.engine.Upsert(r.Context(), req.Text, req.Source, req.Key, req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleMemoryUpsertBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []upsertRequest `json:"items"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Items) == 0 {
		writeBadRequest(w, "items must not be empty")
		return
	}

	results := make([]map[string]any, len(req.Items))
	for i, it := range req.Items {
		if it.Text == "" || it.Source == "" || it.Key == "" {
			results[i] = map[string]any{"error": "text, source, and key are required"}
			continue
		}
		outcome, err := s.engine.Upsert(r.Context(), it.Text, it.Source, it.Key, it.Metadata)
		if err != nil {
			results[i] = map[string]any{"error": err.Error()}
			continue
		}
		results[i] = map[string]any{"id": outcome.ID, "action": outcome.Action}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type isNovelRequest struct {
	Text      string  `json:"text"`
	Threshold float64 `json:"threshold"`
}

func (s *Server) handleMemoryIsNovel(w http.ResponseWriter, r *http.Request) {
	var req isNovelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Text == "" {
		writeBadRequest(w, "text must not be empty")
		return
	}
	if req.Threshold == 0 {
		req.Threshold = 0.9
	}

	novel, match, err := s.engine.IsNovelWithMatch(r.Context(), req.Text, req.Threshold)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"novel": novel}
	if match != nil {
		resp["closest_match"] = match
	}
	writeJSON(w, http.StatusOK, resp)
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.NewInvalidArgument("id must be an integer")
	}
	return id, nil
}

func (s *Server) handleMemoryGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.engine.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleMemoryGetBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": s.engine.GetBatch(req.IDs)})
}

type updateRequest struct {
	Text          *string        `json:"text,omitempty"`
	Source        *string        `json:"source,omitempty"`
	MetadataPatch map[string]any `json:"metadata_patch,omitempty"`
}

func (s *Server) handleMemoryUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.engine.Update(r.Context(), id, req.Text, req.Source, req.MetadataPatch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleMemoryDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.engine.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) handleMemoryDeleteBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	deleted, missing, err := s.engine.DeleteBatch(r.Context(), req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted, "missing": missing})
}

func (s *Server) handleMemoryDeleteBySource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contains string `json:"contains"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Contains == "" {
		writeBadRequest(w, "contains must not be empty")
		return
	}
	ids, err := s.engine.DeleteBySource(r.Context(), req.Contains)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": ids})
}

func (s *Server) handleMemoryDeleteByPrefix(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prefix string `json:"prefix"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Prefix == "" {
		writeBadRequest(w, "prefix must not be empty")
		return
	}
	ids, err := s.engine.DeleteByPrefix(r.Context(), req.Prefix)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": ids})
}
