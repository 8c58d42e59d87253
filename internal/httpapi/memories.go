package httpapi

import (
	"net/http"
	"strconv"

	"github.com/divyekant/memoryd/internal/apperr"
)

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.NewInvalidArgument(key + " must be an integer")
	}
	return v, nil
}

func (s *Server) handleMemoriesList(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, err)
		return
	}
	prefix := r.URL.Query().Get("source_prefix")

	records := s.engine.ListMemories(offset, limit, prefix)
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"total":   s.engine.CountMemories(prefix),
	})
}

func (s *Server) handleFoldersList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"folders": s.engine.ListFolders()})
}

type folderRenameRequest struct {
	OldPrefix string `json:"old_prefix"`
	NewPrefix string `json:"new_prefix"`
}

func (s *Server) handleFoldersRename(w http.ResponseWriter, r *http.Request) {
	var req folderRenameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.OldPrefix == "" {
		writeBadRequest(w, "old_prefix must not be empty")
		return
	}
	renamed, err := s.engine.RenameFolder(r.Context(), req.OldPrefix, req.NewPrefix)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"renamed": renamed})
}
