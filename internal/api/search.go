package api

import (
	"net/http"
	"unicode/utf8"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
)

// maxQueryLength bounds the search query, in characters.
const maxQueryLength = 500

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if n := utf8.RuneCountInString(query); n < 1 || n > maxQueryLength {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "q must be between 1 and 500 characters")
		return
	}

	page, err := positiveInt(q.Get("page"), 1)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "page must be a positive integer")
		return
	}
	perPage, err := positiveInt(q.Get("per_page"), store.DefaultSearchPerPage)
	if err != nil || perPage > store.MaxSearchPerPage {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "per_page must be between 1 and 50")
		return
	}

	result, err := s.store.Search(r.Context(), store.SearchOptions{
		Query:       query,
		ProjectSlug: q.Get("project"),
		DocType:     q.Get("type"),
		Page:        page,
		PerPage:     perPage,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
