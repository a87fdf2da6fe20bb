package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
)

// documentListItem omits content and metadata; updated_at is synced_at.
type documentListItem struct {
	DocID       string           `json:"doc_id"`
	Type        document.DocType `json:"type"`
	Title       string           `json:"title"`
	Status      *string          `json:"status"`
	Owner       *string          `json:"owner"`
	Priority    *string          `json:"priority"`
	StoryPoints *int             `json:"story_points"`
	Epic        *string          `json:"epic"`
	Story       *string          `json:"story"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

type documentListResponse struct {
	Items   []documentListItem `json:"items"`
	Total   int                `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
	Pages   int                `json:"pages"`
}

type relatedItem struct {
	DocID  string           `json:"doc_id"`
	Type   document.DocType `json:"type"`
	Title  string           `json:"title"`
	Status *string          `json:"status"`
}

type relationshipsResponse struct {
	DocID    string           `json:"doc_id"`
	Type     document.DocType `json:"type"`
	Title    string           `json:"title"`
	Parents  []relatedItem    `json:"parents"`
	Children []relatedItem    `json:"children"`
}

var sortFields = map[string]bool{"title": true, "type": true, "status": true, "updated_at": true}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	q := r.URL.Query()
	filter := store.DocumentFilter{
		Type:   q.Get("type"),
		Status: q.Get("status"),
		Sort:   q.Get("sort"),
		Order:  q.Get("order"),
	}
	if filter.Sort != "" && !sortFields[filter.Sort] {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "sort must be one of title, type, status, updated_at")
		return
	}
	if filter.Order != "" && filter.Order != "asc" && filter.Order != "desc" {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "order must be asc or desc")
		return
	}
	if filter.Page, err = positiveInt(q.Get("page"), 1); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "page must be a positive integer")
		return
	}
	if filter.PerPage, err = positiveInt(q.Get("per_page"), store.DefaultPerPage); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "per_page must be a positive integer")
		return
	}

	page, err := s.store.ListDocuments(r.Context(), p.ID, filter)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	resp := documentListResponse{
		Items:   make([]documentListItem, 0, len(page.Items)),
		Total:   page.Total,
		Page:    page.Page,
		PerPage: page.PerPage,
		Pages:   page.Pages,
	}
	for _, d := range page.Items {
		resp.Items = append(resp.Items, documentListItem{
			DocID:       d.DocID,
			Type:        d.DocType,
			Title:       d.Title,
			Status:      d.Status,
			Owner:       d.Owner,
			Priority:    d.Priority,
			StoryPoints: d.StoryPoints,
			Epic:        d.Epic,
			Story:       d.Story,
			UpdatedAt:   d.SyncedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// lookupDocument resolves {slug}/{type}/{docID}, writing a 404 on failure.
func (s *Server) lookupDocument(w http.ResponseWriter, r *http.Request) (*document.Document, bool) {
	p, err := s.store.GetProject(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.writeStoreError(w, err)
		return nil, false
	}
	docType := chi.URLParam(r, "type")
	docID := chi.URLParam(r, "docID")
	doc, err := s.store.GetDocument(r.Context(), p.ID, document.DocType(docType), docID)
	if err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, CodeNotFound, "Document not found: "+docType+"/"+docID)
			return nil, false
		}
		s.writeStoreError(w, err)
		return nil, false
	}
	return doc, true
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookupDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleRelatedDocuments(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookupDocument(w, r)
	if !ok {
		return
	}
	parents, children, err := s.store.RelatedDocuments(r.Context(), doc)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, relationshipsResponse{
		DocID:    doc.DocID,
		Type:     doc.DocType,
		Title:    doc.Title,
		Parents:  toRelated(parents),
		Children: toRelated(children),
	})
}

func toRelated(docs []*document.Document) []relatedItem {
	out := make([]relatedItem, 0, len(docs))
	for _, d := range docs {
		out = append(out, relatedItem{DocID: d.DocID, Type: d.DocType, Title: d.Title, Status: d.Status})
	}
	return out
}

// positiveInt parses raw, returning def when raw is empty.
func positiveInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
