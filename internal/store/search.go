package store

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Search pagination limits.
const (
	DefaultSearchPerPage = 20
	MaxSearchPerPage     = 50
)

// SearchOptions configures Search.
type SearchOptions struct {
	Query string
	// ProjectSlug restricts results to one project (empty = all)
	ProjectSlug string
	// DocType restricts results to one type (empty = all)
	DocType string
	Page    int
	PerPage int
}

// SearchHit is one ranked match.
type SearchHit struct {
	DocID       string  `json:"doc_id" db:"doc_id"`
	DocType     string  `json:"type" db:"doc_type"`
	Title       string  `json:"title" db:"title"`
	ProjectSlug string  `json:"project_slug" db:"project_slug"`
	ProjectName string  `json:"project_name" db:"project_name"`
	Status      *string `json:"status" db:"status"`
	Snippet     string  `json:"snippet" db:"snippet"`
	Score       float64 `json:"score" db:"score"`
}

// SearchResult is one page of hits.
type SearchResult struct {
	Items   []SearchHit `json:"items"`
	Total   int         `json:"total"`
	Query   string      `json:"query"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
}

// escapeQuery turns user input into a single FTS5 phrase so operators
// such as AND, OR, NEAR and * are matched literally.
func escapeQuery(q string) string {
	return `"` + strings.ReplaceAll(q, `"`, `""`) + `"`
}

// Search runs a full-text query over document titles and content, ranked
// by bm25. Scores are negated so that higher means more relevant.
func (s *Store) Search(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage < 1 {
		perPage = DefaultSearchPerPage
	}
	if perPage > MaxSearchPerPage {
		perPage = MaxSearchPerPage
	}

	result := &SearchResult{
		Items:   []SearchHit{},
		Query:   opts.Query,
		Page:    page,
		PerPage: perPage,
	}
	if strings.TrimSpace(opts.Query) == "" {
		return result, nil
	}

	conditions := []string{"documents_fts MATCH ?"}
	args := []any{escapeQuery(opts.Query)}
	if opts.ProjectSlug != "" {
		conditions = append(conditions, "p.slug = ?")
		args = append(args, opts.ProjectSlug)
	}
	if opts.DocType != "" {
		conditions = append(conditions, "d.doc_type = ?")
		args = append(args, opts.DocType)
	}
	from := `
	FROM documents_fts
	JOIN documents d ON documents_fts.rowid = d.id
	JOIN projects p ON d.project_id = p.id
	WHERE ` + strings.Join(conditions, " AND ")

	if err := s.db.GetContext(ctx, &result.Total, `SELECT COUNT(*)`+from, args...); err != nil {
		return nil, fmt.Errorf("failed to count search results: %w", err)
	}
	if result.Total == 0 {
		return result, nil
	}

	query := `
	SELECT
		d.doc_id,
		d.doc_type,
		d.title,
		p.slug AS project_slug,
		p.name AS project_name,
		d.status,
		snippet(documents_fts, 1, '<mark>', '</mark>', '...', 32) AS snippet,
		-bm25(documents_fts) AS score` + from + `
	ORDER BY bm25(documents_fts)
	LIMIT ? OFFSET ?`
	args = append(args, perPage, (page-1)*perPage)

	if err := s.db.SelectContext(ctx, &result.Items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	for i := range result.Items {
		result.Items[i].Score = math.Round(result.Items[i].Score*10000) / 10000
	}

	return result, nil
}

// RebuildSearchIndex repopulates the FTS index from the documents table.
func (s *Store) RebuildSearchIndex(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO documents_fts(documents_fts) VALUES('rebuild')`); err != nil {
		return fmt.Errorf("failed to rebuild search index: %w", err)
	}
	return nil
}
