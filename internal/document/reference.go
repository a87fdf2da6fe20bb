package document

import (
	"regexp"
	"strings"
)

var (
	// linkIDPattern captures the id at the start of a markdown link's text,
	// e.g. "[EP0007: Git Sync](../epics/EP0007-git-sync.md)".
	linkIDPattern = regexp.MustCompile(`^\[([A-Z]{2}\d{4})`)

	// plainIDPattern captures a leading id in plain text, e.g. "US0163: Title".
	plainIDPattern = regexp.MustCompile(`^([A-Z]{2}\d{4})\b`)

	// prefixPattern is the two-letter, four-digit canonical identifier.
	prefixPattern = regexp.MustCompile(`^([A-Z]{2}\d{4})`)
)

// ExtractDocID normalises an epic or story reference to its clean prefix.
// Markdown links and "ID: Title" forms yield the id; any other text is
// returned trimmed but otherwise unchanged. Empty input yields nil.
func ExtractDocID(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	if m := linkIDPattern.FindStringSubmatch(trimmed); m != nil {
		return &m[1]
	}
	if m := plainIDPattern.FindStringSubmatch(trimmed); m != nil {
		return &m[1]
	}
	return &trimmed
}

// CleanPrefix returns the leading two-letter, four-digit token of docID,
// or docID itself when it has none.
func CleanPrefix(docID string) string {
	if m := prefixPattern.FindStringSubmatch(docID); m != nil {
		return m[1]
	}
	return docID
}
