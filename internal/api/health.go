package api

import (
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
	Layers int    `json:"layers"`
	Error  string `json:"error,omitempty"`
}

// handleHealthz reports whether the request store answers queries, with 503
// when it does not.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Layers: len(s.registry.List())}
	if _, err := s.store.GetRequestStats(r.Context()); err != nil {
		s.logger.Warn("health check: request store unavailable", "error", err)
		resp.Status = "unavailable"
		resp.Error = "request store unavailable"
		s.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}
