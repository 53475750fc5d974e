package server

import (
	"net/http"
	"time"
)

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.db.GetAnalytics(r.Context()))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	visitors := s.db.GetVisitorCount(r.Context())
	s.metrics.SetVisitorCount(visitors)
	writeJSON(w, http.StatusOK, map[string]any{
		"visitor_count":     visitors,
		"timestamp":         isoTimestamp(time.Now()),
		"enhanced_features": true,
	})
}
