package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/health"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/source"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/syncer"
)

// ===== Test helpers =====

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "db", "test.db"), quietLogger())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestSyncer(st *store.Store) *syncer.Syncer {
	return syncer.New(st, source.NewCollector(source.Options{}, quietLogger()), nil, quietLogger())
}

// createProject registers a local project containing one story.
func createProject(t *testing.T, st *store.Store, name string) *document.Project {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "stories"), 0o755); err != nil {
		t.Fatal(err)
	}
	story := "# US0001: Login\n\n> **Status:** Draft\n\nUsers sign in with oauth.\n"
	if err := os.WriteFile(filepath.Join(root, "stories", "US0001-login.md"), []byte(story), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := st.CreateProject(context.Background(), store.NewProject{Name: name, SourceType: document.SourceLocal, SDLCPath: root})
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	return p
}

func makeReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func mustNotError(t *testing.T, r *mcp.CallToolResult, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	if r.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(r))
	}
}

func mustBeToolError(t *testing.T, r *mcp.CallToolResult, err error, wantSubstr string) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	if !r.IsError {
		t.Fatalf("expected tool error, got: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), wantSubstr) {
		t.Errorf("error %q does not contain %q", resultText(r), wantSubstr)
	}
}

// ===== Definitions =====

func TestDefinitions(t *testing.T) {
	st := newTestStore(t)
	tests := []struct {
		def      mcp.Tool
		name     string
		required []string
	}{
		{NewListProjectsTool(st).Definition(), "sdlc_list_projects", nil},
		{NewHealthCheckTool(st).Definition(), "sdlc_health_check", []string{"project"}},
		{NewSyncTool(newTestSyncer(st)).Definition(), "sdlc_sync", []string{"project"}},
		{NewSearchTool(st).Definition(), "sdlc_search", []string{"query"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.def.Name != tt.name {
				t.Errorf("name = %q, want %q", tt.def.Name, tt.name)
			}
			for _, req := range tt.required {
				if _, ok := tt.def.InputSchema.Properties[req]; !ok {
					t.Errorf("missing %q parameter", req)
				}
				found := false
				for _, r := range tt.def.InputSchema.Required {
					found = found || r == req
				}
				if !found {
					t.Errorf("%q should be required", req)
				}
			}
		})
	}
}

// TestNew verifies the server builds with every tool.
func TestNew(t *testing.T) {
	st := newTestStore(t)
	if s := New(st, newTestSyncer(st), "test"); s == nil {
		t.Fatal("New() returned nil")
	}
}

// ===== sdlc_list_projects =====

func TestListProjects(t *testing.T) {
	st := newTestStore(t)
	tool := NewListProjectsTool(st)

	result, err := tool.Handle(context.Background(), makeReq(nil))
	mustNotError(t, result, err)
	if resultText(result) != "No projects registered." {
		t.Errorf("empty result = %q", resultText(result))
	}

	createProject(t, st, "Alpha")
	result, err = tool.Handle(context.Background(), makeReq(nil))
	mustNotError(t, result, err)
	text := resultText(result)
	for _, want := range []string{"Found 1 projects", "alpha (Alpha)", "never_synced", "0 documents", "last synced never"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in %q", want, text)
		}
	}
}

// ===== sdlc_sync =====

func TestSync(t *testing.T) {
	st := newTestStore(t)
	createProject(t, st, "Alpha")
	tool := NewSyncTool(newTestSyncer(st))

	result, err := tool.Handle(context.Background(), makeReq(map[string]any{"project": "alpha"}))
	mustNotError(t, result, err)
	if want := "Sync completed for 'alpha': added=1 updated=0 skipped=0 deleted=0 errors=0"; resultText(result) != want {
		t.Errorf("result = %q, want %q", resultText(result), want)
	}

	result, err = tool.Handle(context.Background(), makeReq(map[string]any{"project": "alpha"}))
	mustNotError(t, result, err)
	if !strings.Contains(resultText(result), "skipped=1") {
		t.Errorf("second sync = %q", resultText(result))
	}
}

func TestSync_Errors(t *testing.T) {
	st := newTestStore(t)
	p := createProject(t, st, "Alpha")
	tool := NewSyncTool(newTestSyncer(st))

	result, err := tool.Handle(context.Background(), makeReq(map[string]any{}))
	mustBeToolError(t, result, err, "'project' is required")

	result, err = tool.Handle(context.Background(), makeReq(map[string]any{"project": "ghost"}))
	mustBeToolError(t, result, err, "project 'ghost' not found")

	if _, err := st.StartSync(context.Background(), p.Slug); err != nil {
		t.Fatal(err)
	}
	result, err = tool.Handle(context.Background(), makeReq(map[string]any{"project": "alpha"}))
	mustBeToolError(t, result, err, "already running")
}

// TestSync_SourceFailure verifies a failed sync is a tool error with the message.
func TestSync_SourceFailure(t *testing.T) {
	st := newTestStore(t)
	p := createProject(t, st, "Alpha")
	if err := os.RemoveAll(p.SDLCPath); err != nil {
		t.Fatal(err)
	}

	result, err := NewSyncTool(newTestSyncer(st)).Handle(context.Background(), makeReq(map[string]any{"project": "alpha"}))
	mustBeToolError(t, result, err, "Path not found")
}

// ===== sdlc_health_check =====

func TestHealthCheck(t *testing.T) {
	st := newTestStore(t)
	createProject(t, st, "Alpha")
	if _, err := newTestSyncer(st).TriggerAndRun(context.Background(), "alpha"); err != nil {
		t.Fatal(err)
	}
	tool := NewHealthCheckTool(st)

	result, err := tool.Handle(context.Background(), makeReq(map[string]any{"project": "alpha"}))
	mustNotError(t, result, err)

	var got health.Result
	if err := json.Unmarshal([]byte(resultText(result)), &got); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if got.ProjectSlug != "alpha" || got.TotalDocuments != 1 || len(got.Findings) == 0 || got.Score >= 100 {
		t.Errorf("health = %+v", got)
	}

	result, err = tool.Handle(context.Background(), makeReq(map[string]any{"project": "ghost"}))
	mustBeToolError(t, result, err, "not found")
}

// ===== sdlc_search =====

func TestSearch(t *testing.T) {
	st := newTestStore(t)
	createProject(t, st, "Alpha")
	if _, err := newTestSyncer(st).TriggerAndRun(context.Background(), "alpha"); err != nil {
		t.Fatal(err)
	}
	tool := NewSearchTool(st)

	result, err := tool.Handle(context.Background(), makeReq(map[string]any{"query": "oauth", "project": "alpha", "limit": float64(500)}))
	mustNotError(t, result, err)
	text := resultText(result)
	if !strings.Contains(text, "Found 1 documents") || !strings.Contains(text, "alpha/story US0001-login (Draft)") {
		t.Errorf("result = %q", text)
	}

	result, err = tool.Handle(context.Background(), makeReq(map[string]any{"query": "nothing-matches"}))
	mustNotError(t, result, err)
	if resultText(result) != "No documents found matching your query." {
		t.Errorf("empty result = %q", resultText(result))
	}

	result, err = tool.Handle(context.Background(), makeReq(map[string]any{"query": " "}))
	mustBeToolError(t, result, err, "'query' is required")

	result, err = tool.Handle(context.Background(), makeReq(map[string]any{"query": "oauth", "project": "ghost"}))
	mustBeToolError(t, result, err, "project 'ghost' not found")
}
