package httpapi

import (
	"net/http"

	"github.com/divyekant/memoryd/internal/snapshot"
)

// syncUnavailable writes the standard 200 {"enabled": false} response
// used by every /sync/* handler when s.cloud is nil.
func (s *Server) syncUnavailable(w http.ResponseWriter) bool {
	if s.cloud != nil {
		return false
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
	return true
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if s.syncUnavailable(w) {
		return
	}
	names, err := s.cloud.ListRemoteSnapshots(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":          true,
		"remote_snapshots": len(names),
	})
}

func (s *Server) handleSyncUpload(w http.ResponseWriter, r *http.Request) {
	if s.syncUnavailable(w) {
		return
	}
	name, err := s.snapMgr.Snapshot(r.Context(), "sync")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"uploaded": name})
}

func (s *Server) handleSyncDownload(w http.ResponseWriter, r *http.Request) {
	if s.syncUnavailable(w) {
		return
	}
	name, ok, err := s.cloud.GetLatestSnapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"downloaded": false})
		return
	}
	if s.local == nil {
		writeBadRequest(w, "local backup storage is not configured")
		return
	}
	if err := s.cloud.DownloadBackup(r.Context(), name, s.local.BackupsDir); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"downloaded": true, "backup": name})
}

func (s *Server) handleSyncSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.syncUnavailable(w) {
		return
	}
	names, err := s.cloud.ListRemoteSnapshots(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": names})
}

func (s *Server) handleSyncRestore(w http.ResponseWriter, r *http.Request) {
	if s.syncUnavailable(w) {
		return
	}
	name := r.PathValue("name")
	if err := snapshot.ValidateName(name); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if s.local == nil {
		writeBadRequest(w, "local backup storage is not configured")
		return
	}
	if err := s.cloud.DownloadBackup(r.Context(), name, s.local.BackupsDir); err != nil {
		writeError(w, err)
		return
	}
	if err := s.snapMgr.Restore(r.Context(), name, s.engine); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"restored": name})
}
