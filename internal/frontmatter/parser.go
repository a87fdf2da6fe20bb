// Package frontmatter parses the blockquote metadata header used by
// sdlc-studio markdown artefacts:
//
//	# US0001: Register a project
//
//	> **Status:** In Progress
//	> **Owner:** Dana
//	> **Story Points:** 5
//
//	## Description
//	...
//
// Parsing is total. Malformed input degrades to partial or empty metadata
// and never returns an error.
package frontmatter

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// kvPattern matches "> **Key:** Value"; the colon may sit inside or
	// outside the bold markers.
	kvPattern = regexp.MustCompile(`^>\s+\*\*(.+?)\*\*:?\s*(.*?)\s*$`)

	// plainKVPattern matches "**Key:** Value" without the quote prefix.
	plainKVPattern = regexp.MustCompile(`^\*\*(.+?)\*\*:?\s*(.*?)\s*$`)

	quotePrefix = regexp.MustCompile(`^>\s?`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// StoryPointsKey is coerced to an int (or nil) after parsing.
const StoryPointsKey = "story_points"

// Result is the outcome of parsing one document.
type Result struct {
	// Title is the text of the first "# " heading, or "" when absent.
	Title string
	// Metadata holds normalised frontmatter keys in document order.
	Metadata *Metadata
	// Body is every line after the frontmatter block, or the whole
	// document when no block was found.
	Body string
}

// lineKind classifies a line inside the frontmatter block.
type lineKind int

const (
	kindKV lineKind = iota
	kindContinuation
	kindMalformed
)

// Parse extracts title, frontmatter metadata and body from content.
// Line endings are normalised to "\n" before parsing.
func Parse(content string) Result {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")

	start, end := findBlock(lines)

	metadata := NewMetadata()
	if start >= 0 {
		parseBlock(lines[start:end], metadata)
	}

	// Documents without quoted frontmatter may still carry bare bold
	// key/value lines near the top.
	if metadata.Len() == 0 {
		parsePlain(lines, metadata)
	}

	coerceStoryPoints(metadata)

	bodyStart := 0
	if start >= 0 {
		bodyStart = end
	}

	return Result{
		Title:    findTitle(lines),
		Metadata: metadata,
		Body:     strings.Join(lines[bodyStart:], "\n"),
	}
}

// NormaliseKey converts a display key such as "Story Points:" to
// "story_points".
func NormaliseKey(key string) string {
	cleaned := strings.TrimRight(strings.TrimSpace(key), ":")
	return strings.ToLower(whitespace.ReplaceAllString(cleaned, "_"))
}

// isQuoteLine reports whether a line belongs to a frontmatter block.
// Nested quotes (">>") never do.
func isQuoteLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, ">") && !strings.HasPrefix(trimmed, ">>")
}

// findBlock returns the half-open range of the first contiguous run of
// quote lines, or (-1, 0) when the document has none. A heading or prose
// may precede the block.
func findBlock(lines []string) (start, end int) {
	start = -1
	for i, line := range lines {
		if isQuoteLine(line) {
			start = i
			break
		}
	}
	if start < 0 {
		return -1, 0
	}

	end = len(lines)
	for i := start; i < len(lines); i++ {
		if !isQuoteLine(lines[i]) {
			end = i
			break
		}
	}
	return start, end
}

// classify is the first pass over the block. A single non key/value line
// followed by a key/value line is malformed; a run of two or more, or a run
// reaching the end of the block, is continuation text.
func classify(block []string) []lineKind {
	kinds := make([]lineKind, len(block))
	i := 0
	for i < len(block) {
		if kvPattern.MatchString(block[i]) {
			kinds[i] = kindKV
			i++
			continue
		}

		runStart := i
		for i < len(block) && !kvPattern.MatchString(block[i]) {
			i++
		}

		kind := kindMalformed
		if i-runStart > 1 || i >= len(block) {
			kind = kindContinuation
		}
		for j := runStart; j < i; j++ {
			kinds[j] = kind
		}
	}
	return kinds
}

// parseBlock is the second pass: assign key/value pairs and fold
// continuation lines onto the current key.
func parseBlock(block []string, metadata *Metadata) {
	kinds := classify(block)

	currentKey := ""
	for i, line := range block {
		switch kinds[i] {
		case kindKV:
			match := kvPattern.FindStringSubmatch(line)
			currentKey = NormaliseKey(match[1])
			metadata.Set(currentKey, strings.TrimSpace(match[2]))

		case kindContinuation:
			if currentKey == "" {
				continue
			}
			text := strings.TrimSpace(quotePrefix.ReplaceAllString(line, ""))
			if text == "" {
				continue
			}
			if existing := metadata.String(currentKey); existing != "" {
				metadata.Set(currentKey, existing+" "+text)
			} else {
				metadata.Set(currentKey, text)
			}
		}
	}
}

// parsePlain scans from the top of the document for "**Key:** Value"
// lines. Blank lines, headings and horizontal rules are passed over; the
// first other line that does not match ends the scan.
func parsePlain(lines []string, metadata *Metadata) {
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || trimmed == "---" {
			continue
		}
		match := plainKVPattern.FindStringSubmatch(trimmed)
		if match == nil {
			return
		}
		metadata.Set(NormaliseKey(match[1]), strings.TrimSpace(match[2]))
	}
}

// coerceStoryPoints converts story_points to an int, or nil when the value
// is not a whole number.
func coerceStoryPoints(metadata *Metadata) {
	raw, ok := metadata.Get(StoryPointsKey)
	if !ok {
		return
	}
	s, isString := raw.(string)
	if !isString {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		metadata.Set(StoryPointsKey, nil)
		return
	}
	metadata.Set(StoryPointsKey, n)
}

func findTitle(lines []string) string {
	for _, line := range lines {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}
