package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
)

// documentRow is the documents table as scanned by sqlx.
type documentRow struct {
	ID          int64          `db:"id"`
	ProjectID   int64          `db:"project_id"`
	DocType     string         `db:"doc_type"`
	DocID       string         `db:"doc_id"`
	Title       string         `db:"title"`
	Status      sql.NullString `db:"status"`
	Owner       sql.NullString `db:"owner"`
	Priority    sql.NullString `db:"priority"`
	StoryPoints sql.NullInt64  `db:"story_points"`
	Epic        sql.NullString `db:"epic"`
	Story       sql.NullString `db:"story"`
	Metadata    sql.NullString `db:"metadata"`
	Content     string         `db:"content"`
	FilePath    string         `db:"file_path"`
	FileHash    string         `db:"file_hash"`
	SyncedAt    string         `db:"synced_at"`
}

const documentColumns = `id, project_id, doc_type, doc_id, title, status, owner, priority,
	story_points, epic, story, metadata, content, file_path, file_hash, synced_at`

func (r *documentRow) toDocument() *document.Document {
	d := &document.Document{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		DocType:   document.DocType(r.DocType),
		DocID:     r.DocID,
		Title:     r.Title,
		Status:    nullString(r.Status),
		Owner:     nullString(r.Owner),
		Priority:  nullString(r.Priority),
		Epic:      nullString(r.Epic),
		Story:     nullString(r.Story),
		Content:   r.Content,
		FilePath:  r.FilePath,
		FileHash:  r.FileHash,
		SyncedAt:  parseTime(r.SyncedAt),
	}
	if r.StoryPoints.Valid {
		n := int(r.StoryPoints.Int64)
		d.StoryPoints = &n
	}
	if r.Metadata.Valid && r.Metadata.String != "" {
		d.Metadata = json.RawMessage(r.Metadata.String)
	}
	return d
}

func toDocuments(rows []documentRow) []*document.Document {
	docs := make([]*document.Document, 0, len(rows))
	for i := range rows {
		docs = append(docs, rows[i].toDocument())
	}
	return docs
}

// Documents returns every document in a project ordered by file path.
func (s *Store) Documents(ctx context.Context, projectID int64) ([]*document.Document, error) {
	var rows []documentRow
	query := `SELECT ` + documentColumns + ` FROM documents WHERE project_id = ? ORDER BY file_path`
	if err := s.db.SelectContext(ctx, &rows, query, projectID); err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	return toDocuments(rows), nil
}

// DocumentsByPath returns a project's documents keyed by file path.
func (s *Store) DocumentsByPath(ctx context.Context, projectID int64) (map[string]*document.Document, error) {
	docs, err := s.Documents(ctx, projectID)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]*document.Document, len(docs))
	for _, d := range docs {
		byPath[d.FilePath] = d
	}
	return byPath, nil
}

// Document list defaults.
const (
	DefaultPerPage = 50
	MaxPerPage     = 100
)

// sortColumns maps accepted sort keys to columns.
var sortColumns = map[string]string{
	"title":      "title",
	"type":       "doc_type",
	"status":     "status",
	"updated_at": "synced_at",
}

// DocumentFilter configures ListDocuments.
type DocumentFilter struct {
	// Type filters by document type (empty = all types)
	Type string
	// Status filters by exact status (empty = all statuses)
	Status string
	// Sort is one of title, type, status, updated_at (default updated_at)
	Sort string
	// Order is asc or desc (default desc)
	Order string
	// Page is 1-based
	Page int
	// PerPage defaults to 50 and is capped at 100
	PerPage int
}

// DocumentPage is one page of a document listing.
type DocumentPage struct {
	Items   []*document.Document `json:"items"`
	Total   int                  `json:"total"`
	Page    int                  `json:"page"`
	PerPage int                  `json:"per_page"`
	Pages   int                  `json:"pages"`
}

// ListDocuments returns a filtered, sorted page of a project's documents.
func (s *Store) ListDocuments(ctx context.Context, projectID int64, filter DocumentFilter) (*DocumentPage, error) {
	conditions := []string{"project_id = ?"}
	args := []any{projectID}

	if filter.Type != "" {
		conditions = append(conditions, "doc_type = ?")
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM documents`+where, args...); err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	column, ok := sortColumns[filter.Sort]
	if !ok {
		column = "synced_at"
	}
	direction := "DESC"
	if strings.EqualFold(filter.Order, "asc") {
		direction = "ASC"
	}

	query := `SELECT ` + documentColumns + ` FROM documents` + where +
		` ORDER BY ` + column + ` ` + direction + `, id ` + direction + ` LIMIT ? OFFSET ?`
	args = append(args, perPage, (page-1)*perPage)

	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	pages := 0
	if total > 0 {
		pages = (total + perPage - 1) / perPage
	}

	return &DocumentPage{
		Items:   toDocuments(rows),
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   pages,
	}, nil
}

// GetDocument returns the document with the given type and id.
func (s *Store) GetDocument(ctx context.Context, projectID int64, docType document.DocType, docID string) (*document.Document, error) {
	var row documentRow
	query := `SELECT ` + documentColumns + ` FROM documents
	WHERE project_id = ? AND doc_type = ? AND doc_id = ?
	ORDER BY file_path LIMIT 1`
	if err := s.db.GetContext(ctx, &row, query, projectID, string(docType), docID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document %s/%s: %w", docType, docID, err)
	}
	return row.toDocument(), nil
}

// RelatedDocuments returns the parent chain (epic first, then story) and
// the direct children of doc. Relationships are resolved by clean prefix.
func (s *Store) RelatedDocuments(ctx context.Context, doc *document.Document) (parents, children []*document.Document, err error) {
	storyRef := document.Deref(doc.Story)
	epicRef := document.Deref(doc.Epic)

	if storyRef != "" {
		story, err := s.findByPrefix(ctx, doc.ProjectID, document.TypeStory, storyRef)
		if err != nil {
			return nil, nil, err
		}
		if story != nil {
			parents = append(parents, story)
			if epicRef == "" {
				epicRef = document.Deref(story.Epic)
			}
		}
	}
	if epicRef != "" {
		epic, err := s.findByPrefix(ctx, doc.ProjectID, document.TypeEpic, epicRef)
		if err != nil {
			return nil, nil, err
		}
		if epic != nil {
			parents = append([]*document.Document{epic}, parents...)
		}
	}

	prefix := doc.CleanPrefix()
	var rows []documentRow
	query := `SELECT ` + documentColumns + ` FROM documents
	WHERE project_id = ? AND id != ? AND (
		(? = 'epic' AND epic = ?) OR (? = 'story' AND story = ?)
	)
	ORDER BY doc_type, doc_id`
	typ := string(doc.DocType)
	if err := s.db.SelectContext(ctx, &rows, query, doc.ProjectID, doc.ID, typ, prefix, typ, prefix); err != nil {
		return nil, nil, fmt.Errorf("failed to load children of %s: %w", doc.DocID, err)
	}

	return parents, toDocuments(rows), nil
}

// findByPrefix returns the first document of docType whose clean prefix is
// prefix, or nil.
func (s *Store) findByPrefix(ctx context.Context, projectID int64, docType document.DocType, prefix string) (*document.Document, error) {
	var rows []documentRow
	query := `SELECT ` + documentColumns + ` FROM documents
	WHERE project_id = ? AND doc_type = ? AND (doc_id = ? OR doc_id LIKE ?)
	ORDER BY doc_id`
	if err := s.db.SelectContext(ctx, &rows, query, projectID, string(docType), prefix, prefix+"%"); err != nil {
		return nil, fmt.Errorf("failed to resolve %s %s: %w", docType, prefix, err)
	}
	for i := range rows {
		if document.CleanPrefix(rows[i].DocID) == prefix {
			return rows[i].toDocument(), nil
		}
	}
	return nil, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
