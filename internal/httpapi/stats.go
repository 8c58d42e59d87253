package httpapi

import (
	"net/http"

	"github.com/divyekant/memoryd/internal/usage"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	light := s.engine.StatsLight()
	stats := s.engine.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"total_memories":  light.TotalMemories,
		"dimension":       light.Dimension,
		"model":           light.Model,
		"active_requests": s.ActiveRequests(),
		"trim":            stats.Trim,
		"reload":          stats.Reload,
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		writeJSON(w, http.StatusOK, usage.Summary{Period: "all"})
		return
	}

	period := usage.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = usage.PeriodAll
	}

	summary, err := s.usage.Summary(r.Context(), period)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
