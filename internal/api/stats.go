package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/health"
)

type systemHealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Version  string `json:"version"`
}

// handleSystemHealth reports database connectivity; 503 when unreachable.
func (s *Server) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	resp := systemHealthResponse{Status: "healthy", Database: "connected", Version: s.version}
	status := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Printf("Warning: database ping failed: %v", err)
		resp.Status = "unhealthy"
		resp.Database = "disconnected"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	docs, err := s.store.Documents(r.Context(), p.ID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, health.Check(docs, p.Slug, s.now()))
}

func (s *Server) handleProjectStats(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	stats, err := s.store.ProjectStats(r.Context(), p)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAggregateStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.AggregateStats(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
