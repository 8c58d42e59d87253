package httpapi

import (
	"errors"
	"net/http"

	"github.com/divyekant/memoryd/internal/apperr"
	"github.com/divyekant/memoryd/internal/extraction"
)

type extractRequest struct {
	Messages string `json:"messages"`
	Source   string `json:"source"`
	Context  string `json:"context,omitempty"`
}

func (s *Server) handleExtractSubmit(w http.ResponseWriter, r *http.Request) {
	if s.pool == nil {
		writeError(w, apperr.NewFailedPrecondition("extraction is not configured"))
		return
	}

	var req extractRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Messages == "" || req.Source == "" {
		writeBadRequest(w, "messages and source are required")
		return
	}

	jobID, retryAfterSec, err := s.pool.Submit(extraction.Request{
		Messages: req.Messages,
		Source:   req.Source,
		Context:  req.Context,
	})
	if err != nil {
		if errors.Is(err, extraction.ErrQueueFull) {
			writeError(w, apperr.NewResourceExhausted("extraction queue is full", retryAfterSec))
			return
		}
		writeError(w, apperr.NewInternal("submit extraction job", err))
		return
	}

	w.Header().Set("Location", "/memory/extract/"+jobID)
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": jobID, "status_url": "/memory/extract/" + jobID})
}

func (s *Server) handleExtractStatus(w http.ResponseWriter, r *http.Request) {
	if s.pool == nil {
		writeError(w, apperr.NewFailedPrecondition("extraction is not configured"))
		return
	}
	jobID := r.PathValue("jobId")
	job, ok := s.pool.Get(jobID)
	if !ok {
		writeError(w, apperr.NewNotFound("extraction job not found"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleExtractQueueStatus(w http.ResponseWriter, r *http.Request) {
	if s.pool == nil {
		writeJSON(w, http.StatusOK, map[string]any{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":     true,
		"queue_depth": s.pool.QueueDepth(),
	})
}
