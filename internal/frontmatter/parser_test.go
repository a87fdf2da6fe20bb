package frontmatter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_StandardFields(t *testing.T) {
	content := "# US0001: Register a New Project\n\n" +
		"> **Status:** Done\n" +
		"> **Owner:** Darren\n" +
		"> **Priority:** P0\n" +
		"> **Story Points:** 5\n" +
		"> **Epic:** [EP0001: Project Management](../epics/EP0001-project-management.md)\n" +
		"> **Created:** 2026-02-17\n" +
		"> **Type:** story\n" +
		"\n## Section\n\nBody."

	result := Parse(content)

	tests := []struct {
		key  string
		want string
	}{
		{"status", "Done"},
		{"owner", "Darren"},
		{"priority", "P0"},
		{"created", "2026-02-17"},
		{"type", "story"},
	}
	for _, tt := range tests {
		if got := result.Metadata.String(tt.key); got != tt.want {
			t.Errorf("metadata[%q] = %q, want %q", tt.key, got, tt.want)
		}
	}

	points := result.Metadata.Int(StoryPointsKey)
	if points == nil || *points != 5 {
		t.Errorf("story_points = %v, want 5", points)
	}
	if !strings.Contains(result.Metadata.String("epic"), "EP0001") {
		t.Errorf("epic = %q, want link containing EP0001", result.Metadata.String("epic"))
	}
	if result.Title != "US0001: Register a New Project" {
		t.Errorf("Title = %q", result.Title)
	}
	if strings.Contains(result.Body, "> **Status:**") {
		t.Error("body should not contain frontmatter lines")
	}
	if !strings.Contains(result.Body, "## Section") || !strings.Contains(result.Body, "Body.") {
		t.Errorf("body missing content: %q", result.Body)
	}

	wantKeys := []string{"status", "owner", "priority", "story_points", "epic", "created", "type"}
	if diff := cmp.Diff(wantKeys, result.Metadata.Keys()); diff != "" {
		t.Errorf("key order mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_ColonOutsideBold(t *testing.T) {
	result := Parse("> **Status**: Ready\n\nBody.")
	if got := result.Metadata.String("status"); got != "Ready" {
		t.Errorf("status = %q, want Ready", got)
	}
}

func TestParse_ContinuationLines(t *testing.T) {
	content := "> **Description:** This is a long description\n" +
		"> that spans multiple lines\n" +
		"> and continues here\n" +
		"> **Status:** Draft\n" +
		"\n# Title\n\nBody."

	result := Parse(content)

	want := "This is a long description that spans multiple lines and continues here"
	if got := result.Metadata.String("description"); got != want {
		t.Errorf("description = %q, want %q", got, want)
	}
	if got := result.Metadata.String("status"); got != "Draft" {
		t.Errorf("status = %q, want Draft", got)
	}
}

func TestParse_ContinuationAtEndOfBlock(t *testing.T) {
	content := "> **Status:** Draft\n> **Notes:** first\n> trailing line\n\nBody."

	result := Parse(content)

	if got := result.Metadata.String("notes"); got != "first trailing line" {
		t.Errorf("notes = %q, want %q", got, "first trailing line")
	}
}

func TestParse_ContinuationOntoEmptyValue(t *testing.T) {
	content := "> **Summary:**\n> line one\n> line two\n\nBody."

	result := Parse(content)

	if got := result.Metadata.String("summary"); got != "line one line two" {
		t.Errorf("summary = %q", got)
	}
}

func TestParse_MalformedLineSkipped(t *testing.T) {
	content := "> **Status:** Done\n> This is not a key-value pair\n> **Owner:** Darren\n\nBody."

	result := Parse(content)

	if got := result.Metadata.String("status"); got != "Done" {
		t.Errorf("status = %q, want Done", got)
	}
	if got := result.Metadata.String("owner"); got != "Darren" {
		t.Errorf("owner = %q, want Darren", got)
	}
	for _, k := range result.Metadata.Keys() {
		if strings.Contains(result.Metadata.String(k), "not a key-value") {
			t.Errorf("malformed line leaked into %q", k)
		}
	}
}

func TestParse_LeadingNonKVLinesWithoutKey(t *testing.T) {
	content := "> just a quote\n> another quote line\n\nBody."

	result := Parse(content)

	if result.Metadata.Len() != 0 {
		t.Errorf("metadata = %v, want empty", result.Metadata.Keys())
	}
	if strings.Contains(result.Body, "just a quote") {
		t.Error("quote block should be excluded from body")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		block []string
		want  []lineKind
	}{
		{
			name:  "single non-kv between keys is malformed",
			block: []string{"> **A:** 1", "> stray", "> **B:** 2"},
			want:  []lineKind{kindKV, kindMalformed, kindKV},
		},
		{
			name:  "run of two is continuation",
			block: []string{"> **A:** 1", "> x", "> y", "> **B:** 2"},
			want:  []lineKind{kindKV, kindContinuation, kindContinuation, kindKV},
		},
		{
			name:  "single non-kv at end is continuation",
			block: []string{"> **A:** 1", "> tail"},
			want:  []lineKind{kindKV, kindContinuation},
		},
		{
			name:  "all key values",
			block: []string{"> **A:** 1", "> **B:** 2"},
			want:  []lineKind{kindKV, kindKV},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, classify(tt.block)); diff != "" {
				t.Errorf("classify mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	content := "# Just a Title\n\nBody content with no metadata."

	result := Parse(content)

	if result.Metadata.Len() != 0 {
		t.Errorf("metadata keys = %v, want none", result.Metadata.Keys())
	}
	if result.Title != "Just a Title" {
		t.Errorf("Title = %q", result.Title)
	}
	if result.Body != content {
		t.Errorf("Body = %q, want whole document", result.Body)
	}
}

func TestParse_PlainBoldFallback(t *testing.T) {
	content := "# PL0001: Plan\n\n---\n\n**Status:** Draft\n**Story:** US0001: Register\n\nFirst paragraph.\n**Owner:** ignored"

	result := Parse(content)

	if got := result.Metadata.String("status"); got != "Draft" {
		t.Errorf("status = %q, want Draft", got)
	}
	if got := result.Metadata.String("story"); got != "US0001: Register" {
		t.Errorf("story = %q", got)
	}
	if result.Metadata.Has("owner") {
		t.Error("scan should stop at the first non-matching line")
	}
	if result.Body != content {
		t.Error("body should be the whole document when no quote block exists")
	}
}

func TestParse_ColonInValue(t *testing.T) {
	result := Parse("> **URL:** http://example.com:8080/path\n\nBody.")
	if got := result.Metadata.String("url"); got != "http://example.com:8080/path" {
		t.Errorf("url = %q", got)
	}
}

func TestParse_EmptyValues(t *testing.T) {
	for _, content := range []string{"> **Owner:**\n\nBody.", "> **Owner:** \n\nBody."} {
		result := Parse(content)
		if !result.Metadata.Has("owner") {
			t.Errorf("%q: owner missing", content)
		}
		if got := result.Metadata.String("owner"); got != "" {
			t.Errorf("%q: owner = %q, want empty", content, got)
		}
	}
}

func TestParse_NonNumericStoryPoints(t *testing.T) {
	result := Parse("> **Story Points:** TBD\n\nBody.")

	v, ok := result.Metadata.Get(StoryPointsKey)
	if !ok {
		t.Fatal("story_points missing")
	}
	if v != nil {
		t.Errorf("story_points = %v, want nil", v)
	}
}

func TestParse_CRLF(t *testing.T) {
	result := Parse("> **Status:** Done\r\n> **Owner:** Darren\r\n\r\nBody.")

	if got := result.Metadata.String("status"); got != "Done" {
		t.Errorf("status = %q", got)
	}
	if got := result.Metadata.String("owner"); got != "Darren" {
		t.Errorf("owner = %q", got)
	}
	if strings.Contains(result.Body, "\r") {
		t.Error("body still contains carriage returns")
	}
}

func TestParse_EdgeCases(t *testing.T) {
	t.Run("only frontmatter", func(t *testing.T) {
		result := Parse("> **Status:** Done\n> **Owner:** Darren")
		if result.Metadata.String("status") != "Done" {
			t.Error("status not parsed")
		}
		if strings.TrimSpace(result.Body) != "" {
			t.Errorf("Body = %q, want empty", result.Body)
		}
	})

	t.Run("nested quote is not frontmatter", func(t *testing.T) {
		result := Parse(">> **Status:** Done\n\n# Title\n\nBody.")
		if result.Metadata.Has("status") {
			t.Error("nested quote parsed as frontmatter")
		}
	})

	t.Run("only first block counts", func(t *testing.T) {
		result := Parse("> **Status:** Done\n\n# Title\n\nBody.\n\n> **Other:** Value")
		if result.Metadata.String("status") != "Done" {
			t.Error("status not parsed")
		}
		if result.Metadata.Has("other") {
			t.Error("second block should be body text")
		}
		if !strings.Contains(result.Body, "> **Other:** Value") {
			t.Error("second block missing from body")
		}
	})

	t.Run("leading blank lines", func(t *testing.T) {
		result := Parse("\n\n> **Status:** Done\n\n# Title\n\nBody.")
		if result.Metadata.String("status") != "Done" {
			t.Error("status not parsed")
		}
	})

	t.Run("title after frontmatter", func(t *testing.T) {
		result := Parse("> **Status:** Done\n\n# Late Title\n")
		if result.Title != "Late Title" {
			t.Errorf("Title = %q", result.Title)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		result := Parse("")
		if result.Title != "" || result.Metadata.Len() != 0 || result.Body != "" {
			t.Errorf("unexpected result: %+v", result)
		}
	})
}

func TestNormaliseKey(t *testing.T) {
	tests := map[string]string{
		"Story Points":     "story_points",
		"Status:":          "status",
		"  Test  Spec  ":   "test_spec",
		"Acceptance\tDate": "acceptance_date",
	}
	for in, want := range tests {
		if got := NormaliseKey(in); got != want {
			t.Errorf("NormaliseKey(%q) = %q, want %q", in, got, want)
		}
	}
}

// render serialises a title, metadata and body back into document form.
func render(title string, fields [][2]string, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	for _, f := range fields {
		fmt.Fprintf(&b, "> **%s:** %s\n", f[0], f[1])
	}
	b.WriteString("\n")
	b.WriteString(body)
	return b.String()
}

func TestParse_RoundTrip(t *testing.T) {
	fields := [][2]string{
		{"Status", "In Progress"},
		{"Owner", "Dana"},
		{"Priority", "P1"},
		{"Epic", "EP0003"},
		{"Reviewer", "Alice"},
	}
	body := "## Description\n\nSome text.\n"

	first := Parse(render("US0009: Round trip", fields, body))

	var rebuilt [][2]string
	for _, k := range first.Metadata.Keys() {
		rebuilt = append(rebuilt, [2]string{k, first.Metadata.String(k)})
	}
	second := Parse(render(first.Title, rebuilt, strings.TrimPrefix(first.Body, "\n")))

	if diff := cmp.Diff(first.Metadata.Keys(), second.Metadata.Keys()); diff != "" {
		t.Errorf("keys changed (-first +second):\n%s", diff)
	}
	for _, k := range first.Metadata.Keys() {
		if first.Metadata.String(k) != second.Metadata.String(k) {
			t.Errorf("%s: %q != %q", k, first.Metadata.String(k), second.Metadata.String(k))
		}
	}
	if first.Title != second.Title {
		t.Errorf("title changed: %q != %q", first.Title, second.Title)
	}
}

func TestMetadata_MarshalJSON(t *testing.T) {
	m := NewMetadata()
	m.Set("zeta", "last")
	m.Set("alpha", 3)
	m.Set("points", nil)

	got, err := m.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() failed: %v", err)
	}
	want := `{"zeta":"last","alpha":3,"points":null}`
	if string(got) != want {
		t.Errorf("MarshalJSON() = %s, want %s", got, want)
	}
}
