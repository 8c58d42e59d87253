package httpapi

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime_seconds,omitempty"`
	Records int    `json:"record_count,omitempty"`
}

// handleHealth is unauthenticated and deliberately terse so a load
// balancer can probe it without a key. Authenticated callers get the
// richer payload.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.authorized(r) {
		resp.Version = Version
		resp.Uptime = time.Since(s.startedAt).Round(time.Second).String()
		resp.Records = s.engine.CountMemories("")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	ready := s.engine.IsReady()
	status := http.StatusOK
	if !ready.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, ready)
}
