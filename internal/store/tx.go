package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
)

// Writer is the set of mutations applied inside one reconciliation batch.
type Writer interface {
	// UpsertDocument inserts doc or replaces the row with the same
	// (project_id, file_path).
	UpsertDocument(ctx context.Context, doc *document.Document) error
	// DeleteDocument removes the document at filePath.
	DeleteDocument(ctx context.Context, projectID int64, filePath string) error
	// MarkSynced sets the project to synced, stamps last_synced_at and
	// clears any previous error.
	MarkSynced(ctx context.Context, projectID int64, at time.Time) error
}

// WithTx runs fn in a single transaction. If fn returns an error or
// panics, nothing it wrote is committed.
func (s *Store) WithTx(ctx context.Context, fn func(Writer) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&txWriter{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txWriter struct {
	tx *sqlx.Tx
}

func (w *txWriter) UpsertDocument(ctx context.Context, doc *document.Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid document %s: %w", doc.FilePath, err)
	}

	var metadata any
	if len(doc.Metadata) > 0 {
		metadata = string(doc.Metadata)
	}
	var storyPoints any
	if doc.StoryPoints != nil {
		storyPoints = *doc.StoryPoints
	}

	query := `
	INSERT INTO documents (
		project_id, doc_type, doc_id, title, status, owner, priority,
		story_points, epic, story, metadata, content, file_path, file_hash, synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(project_id, file_path) DO UPDATE SET
		doc_type = excluded.doc_type,
		doc_id = excluded.doc_id,
		title = excluded.title,
		status = excluded.status,
		owner = excluded.owner,
		priority = excluded.priority,
		story_points = excluded.story_points,
		epic = excluded.epic,
		story = excluded.story,
		metadata = excluded.metadata,
		content = excluded.content,
		file_hash = excluded.file_hash,
		synced_at = excluded.synced_at
	`
	_, err := w.tx.ExecContext(ctx, query,
		doc.ProjectID,
		string(doc.DocType),
		doc.DocID,
		doc.Title,
		stringOrNil(doc.Status),
		stringOrNil(doc.Owner),
		stringOrNil(doc.Priority),
		storyPoints,
		stringOrNil(doc.Epic),
		stringOrNil(doc.Story),
		metadata,
		doc.Content,
		doc.FilePath,
		doc.FileHash,
		formatTime(doc.SyncedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.FilePath, err)
	}
	return nil
}

func (w *txWriter) DeleteDocument(ctx context.Context, projectID int64, filePath string) error {
	if _, err := w.tx.ExecContext(ctx, `DELETE FROM documents WHERE project_id = ? AND file_path = ?`, projectID, filePath); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", filePath, err)
	}
	return nil
}

func (w *txWriter) MarkSynced(ctx context.Context, projectID int64, at time.Time) error {
	stamp := formatTime(at)
	_, err := w.tx.ExecContext(ctx, `
	UPDATE projects
	SET sync_status = ?, sync_error = NULL, last_synced_at = ?, updated_at = ?
	WHERE id = ?
	`, string(document.StatusSynced), stamp, stamp, projectID)
	if err != nil {
		return fmt.Errorf("failed to mark project synced: %w", err)
	}
	return nil
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
