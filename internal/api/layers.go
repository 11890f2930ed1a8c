package api

import "net/http"

type listLayersResponse struct {
	Layers []string `json:"layers"`
}

func (s *Server) handleListLayers(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, listLayersResponse{Layers: s.registry.List()})
}
