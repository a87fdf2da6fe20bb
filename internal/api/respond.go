package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/source"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
)

// Error codes in the {"error":{"code","message"}} envelope.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeValidation      = "VALIDATION_ERROR"
	CodePathNotFound    = "PATH_NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeSyncInProgress  = "SYNC_IN_PROGRESS"
	CodeInternal        = "INTERNAL_ERROR"
	CodeBadRequest      = "BAD_REQUEST"
	internalErrorDetail = "Internal server error"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorDetail{Code: code, Message: message}})
}

// writeStoreError maps a store or source error onto a status and code.
// Unrecognised errors are logged and reported as 500 without detail.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "Project not found")
	case errors.Is(err, store.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, "Document not found")
	case errors.Is(err, store.ErrSlugConflict):
		writeError(w, http.StatusConflict, CodeConflict, "Project slug already exists")
	case errors.Is(err, store.ErrSyncInProgress):
		writeError(w, http.StatusConflict, CodeSyncInProgress, "Sync already running for this project")
	case errors.Is(err, store.ErrEmptySlug):
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, err.Error())
	case errors.Is(err, source.ErrPathNotFound):
		writeError(w, http.StatusBadRequest, CodePathNotFound, "Project sdlc-studio path does not exist on filesystem")
	case errors.Is(err, source.ErrInvalidRepoURL):
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, err.Error())
	default:
		s.logger.Printf("Request failed: %v", err)
		writeError(w, http.StatusInternalServerError, CodeInternal, internalErrorDetail)
	}
}

// decodeBody decodes a JSON request body, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
