package document

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/contenthash"
)

// Document is one ingested artefact, stored as a row in the documents table.
type Document struct {
	// ===== Identity =====
	ID        int64   `json:"-"`
	ProjectID int64   `json:"-"`
	DocType   DocType `json:"type"`
	DocID     string  `json:"doc_id"`
	Title     string  `json:"title"`

	// ===== Standard frontmatter fields =====
	Status      *string `json:"status"`
	Owner       *string `json:"owner"`
	Priority    *string `json:"priority"`
	StoryPoints *int    `json:"story_points"`

	// ===== Relationships (clean prefixes, e.g. "EP0007") =====
	Epic  *string `json:"epic"`
	Story *string `json:"story"`

	// ===== Residual frontmatter, JSON object or nil =====
	Metadata json.RawMessage `json:"metadata"`

	// ===== Source =====
	Content  string    `json:"content"`
	FilePath string    `json:"file_path"`
	FileHash string    `json:"file_hash"`
	SyncedAt time.Time `json:"synced_at"`
}

// Validate checks that the fields required for persistence are set.
func (d *Document) Validate() error {
	if d.ProjectID <= 0 {
		return fmt.Errorf("project_id is required")
	}
	if !d.DocType.IsValid() {
		return fmt.Errorf("invalid doc_type: %q", d.DocType)
	}
	if d.DocID == "" {
		return fmt.Errorf("doc_id is required")
	}
	if d.Title == "" {
		return fmt.Errorf("title is required")
	}
	if d.FilePath == "" {
		return fmt.Errorf("file_path is required")
	}
	if len(d.FileHash) != contenthash.Size {
		return fmt.Errorf("file_hash must be %d hex characters (got %d)", contenthash.Size, len(d.FileHash))
	}
	if len(d.Metadata) > 0 && !json.Valid(d.Metadata) {
		return fmt.Errorf("metadata is not valid JSON")
	}
	if d.SyncedAt.IsZero() {
		return fmt.Errorf("synced_at is required")
	}
	return nil
}

// IsArchive reports whether the document is an archived artefact.
func (d *Document) IsArchive() bool {
	return len(d.DocID) > 0 && d.DocID[0] == '_'
}

// CleanPrefix returns the document's canonical short identifier.
func (d *Document) CleanPrefix() string {
	return CleanPrefix(d.DocID)
}
