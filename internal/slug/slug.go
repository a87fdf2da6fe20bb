// Package slug derives URL-safe project identifiers from display names.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	separators = regexp.MustCompile(`[\s_]+`)
	disallowed = regexp.MustCompile(`[^a-z0-9-]`)
	hyphenRuns = regexp.MustCompile(`-{2,}`)
)

// Generate converts name to a slug: accents are folded to ASCII, the
// result is lowercased, whitespace and underscores become hyphens, other
// characters outside [a-z0-9-] are dropped, and hyphen runs are collapsed
// and trimmed. The result may be empty.
func Generate(name string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.Predicate(isNonASCII))),
		name,
	)
	if err != nil {
		folded = name
	}

	s := strings.ToLower(folded)
	s = separators.ReplaceAllString(s, "-")
	s = disallowed.ReplaceAllString(s, "")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func isNonASCII(r rune) bool {
	return r > unicode.MaxASCII
}
