package httpapi

import "net/http"

func (s *Server) handleBackupsList(w http.ResponseWriter, r *http.Request) {
	if s.local == nil {
		writeJSON(w, http.StatusOK, map[string]any{"backups": []string{}})
		return
	}
	names, err := s.local.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": names})
}

type backupCreateRequest struct {
	Prefix string `json:"prefix,omitempty"`
}

func (s *Server) handleBackupCreate(w http.ResponseWriter, r *http.Request) {
	var req backupCreateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Prefix == "" {
		req.Prefix = "manual"
	}

	name, err := s.snapMgr.Snapshot(r.Context(), req.Prefix)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"backup": name})
}

type restoreRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeBadRequest(w, "name must not be empty")
		return
	}
	if err := s.snapMgr.Restore(r.Context(), req.Name, s.engine); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restored": req.Name})
}
