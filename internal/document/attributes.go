package document

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/frontmatter"
)

// standardFields map to dedicated Document columns and are excluded from
// the residual metadata blob.
var standardFields = map[string]bool{
	"status":                    true,
	"owner":                     true,
	"priority":                  true,
	frontmatter.StoryPointsKey: true,
	"epic":                      true,
	"story":                     true,
}

// Source identifies where a parsed document came from.
type Source struct {
	ProjectID int64
	DocType   DocType
	DocID     string
	FilePath  string
	FileHash  string
	SyncedAt  time.Time
}

// BuildAttributes assembles a Document from a parse result. Every derived
// field is replaced, so the result can overwrite an existing row in place.
func BuildAttributes(parsed frontmatter.Result, src Source) (*Document, error) {
	meta := parsed.Metadata

	title := parsed.Title
	if title == "" {
		title = src.DocID
	}

	doc := &Document{
		ProjectID:   src.ProjectID,
		DocType:     src.DocType,
		DocID:       src.DocID,
		Title:       title,
		Status:      stringField(meta, "status"),
		Owner:       stringField(meta, "owner"),
		Priority:    stringField(meta, "priority"),
		StoryPoints: meta.Int(frontmatter.StoryPointsKey),
		Epic:        ExtractDocID(meta.String("epic")),
		Story:       ExtractDocID(meta.String("story")),
		Content:     parsed.Body,
		FilePath:    src.FilePath,
		FileHash:    src.FileHash,
		SyncedAt:    src.SyncedAt,
	}

	if extra := meta.Without(standardFields); extra.Len() > 0 {
		blob, err := json.Marshal(extra)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata for %s: %w", src.FilePath, err)
		}
		doc.Metadata = blob
	}

	return doc, nil
}

// stringField returns the value for key when present, including an empty
// value, and nil when the key is absent.
func stringField(meta *frontmatter.Metadata, key string) *string {
	if !meta.Has(key) {
		return nil
	}
	v := meta.String(key)
	return &v
}
