package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
)

const maxNameLength = 200

// projectResponse is a project as served by the API. The access token is
// replaced by its masked form.
type projectResponse struct {
	Slug          string              `json:"slug"`
	Name          string              `json:"name"`
	SourceType    document.SourceType `json:"source_type"`
	SDLCPath      *string             `json:"sdlc_path"`
	RepoURL       *string             `json:"repo_url"`
	RepoBranch    string              `json:"repo_branch"`
	RepoPath      string              `json:"repo_path"`
	MaskedToken   *string             `json:"masked_token"`
	SyncStatus    document.SyncStatus `json:"sync_status"`
	SyncError     *string             `json:"sync_error"`
	LastSyncedAt  *time.Time          `json:"last_synced_at"`
	DocumentCount int                 `json:"document_count"`
	CreatedAt     time.Time           `json:"created_at"`
}

type projectCreateRequest struct {
	Name        string `json:"name"`
	SourceType  string `json:"source_type"`
	SDLCPath    string `json:"sdlc_path"`
	RepoURL     string `json:"repo_url"`
	RepoBranch  string `json:"repo_branch"`
	RepoPath    string `json:"repo_path"`
	AccessToken string `json:"access_token"`
}

type projectUpdateRequest struct {
	Name        *string `json:"name"`
	SDLCPath    *string `json:"sdlc_path"`
	RepoURL     *string `json:"repo_url"`
	RepoBranch  *string `json:"repo_branch"`
	RepoPath    *string `json:"repo_path"`
	AccessToken *string `json:"access_token"`
}

type syncTriggerResponse struct {
	Slug       string              `json:"slug"`
	SyncStatus document.SyncStatus `json:"sync_status"`
	Message    string              `json:"message"`
}

func (s *Server) projectResponse(r *http.Request, p *document.Project) (projectResponse, error) {
	count, err := s.store.DocumentCount(r.Context(), p.ID)
	if err != nil {
		return projectResponse{}, err
	}
	resp := projectResponse{
		Slug:          p.Slug,
		Name:          p.Name,
		SourceType:    p.SourceType,
		RepoBranch:    p.RepoBranch,
		RepoPath:      p.RepoPath,
		MaskedToken:   p.MaskedToken(),
		SyncStatus:    p.SyncStatus,
		SyncError:     p.SyncError,
		LastSyncedAt:  p.LastSyncedAt,
		DocumentCount: count,
		CreatedAt:     p.CreatedAt,
	}
	if p.SDLCPath != "" {
		resp.SDLCPath = document.Ref(p.SDLCPath)
	}
	if p.RepoURL != "" {
		resp.RepoURL = document.Ref(p.RepoURL)
	}
	return resp, nil
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		resp, err := s.projectResponse(r, p)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectCreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "Invalid request body: "+err.Error())
		return
	}

	sourceType := document.SourceType(req.SourceType)
	if sourceType == "" {
		sourceType = document.SourceLocal
	}
	if msg := validateCreate(req, sourceType); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, msg)
		return
	}

	p, err := s.store.CreateProject(r.Context(), store.NewProject{
		Name:        req.Name,
		SourceType:  sourceType,
		SDLCPath:    req.SDLCPath,
		RepoURL:     req.RepoURL,
		RepoBranch:  req.RepoBranch,
		RepoPath:    req.RepoPath,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp, err := s.projectResponse(r, p)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// validateCreate returns a message describing the first invalid field, or "".
func validateCreate(req projectCreateRequest, sourceType document.SourceType) string {
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return "name is required"
	case len(name) > maxNameLength:
		return "name must be 200 characters or less"
	case !sourceType.IsValid():
		return "source_type must be 'local' or 'github'"
	case sourceType == document.SourceGitHub && strings.TrimSpace(req.RepoURL) == "":
		return "repo_url is required for github projects"
	}
	return ""
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	resp, err := s.projectResponse(r, p)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var req projectUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "Invalid request body: "+err.Error())
		return
	}
	if req == (projectUpdateRequest{}) {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "At least one field must be provided")
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > maxNameLength {
			writeError(w, http.StatusUnprocessableEntity, CodeValidation, "name must be between 1 and 200 characters")
			return
		}
	}

	p, err := s.store.UpdateProject(r.Context(), chi.URLParam(r, "slug"), store.ProjectUpdate{
		Name:        req.Name,
		SDLCPath:    req.SDLCPath,
		RepoURL:     req.RepoURL,
		RepoBranch:  req.RepoBranch,
		RepoPath:    req.RepoPath,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	resp, err := s.projectResponse(r, p)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProject(r.Context(), chi.URLParam(r, "slug")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTriggerSync marks the project as syncing and returns 202 while the
// sync runs in the background.
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	p, err := s.syncer.TriggerSync(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.syncer.Dispatch(p.Slug)

	writeJSON(w, http.StatusAccepted, syncTriggerResponse{
		Slug:       p.Slug,
		SyncStatus: document.StatusSyncing,
		Message:    "Sync started",
	})
}
