package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/health"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/syncer"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = store.MaxSearchPerPage
)

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// projectError turns a lookup failure into a tool error.
func projectError(slug string, err error) *mcp.CallToolResult {
	if errors.Is(err, store.ErrProjectNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("project '%s' not found; call sdlc_list_projects for valid slugs", slug))
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to load project '%s': %v", slug, err))
}

// ===== sdlc_list_projects =====

// ListProjectsTool handles the sdlc_list_projects MCP tool.
type ListProjectsTool struct {
	store Store
}

// NewListProjectsTool creates a ListProjectsTool.
func NewListProjectsTool(st Store) *ListProjectsTool {
	return &ListProjectsTool{store: st}
}

func (t *ListProjectsTool) Definition() mcp.Tool {
	return mcp.NewTool("sdlc_list_projects",
		mcp.WithDescription("List registered projects with their sync status and document counts."),
	)
}

func (t *ListProjectsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := t.store.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list projects: %v", err)), nil
	}
	if len(projects) == 0 {
		return mcp.NewToolResultText("No projects registered."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d projects:\n\n", len(projects))
	for _, p := range projects {
		count, err := t.store.DocumentCount(ctx, p.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to count documents for '%s': %v", p.Slug, err)), nil
		}
		synced := "never"
		if p.LastSyncedAt != nil {
			synced = p.LastSyncedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "- %s (%s): %s, %d documents, %s source, last synced %s\n",
			p.Slug, p.Name, p.SyncStatus, count, p.SourceType, synced)
		if p.SyncError != nil {
			fmt.Fprintf(&b, "    error: %s\n", *p.SyncError)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ===== sdlc_health_check =====

// HealthCheckTool handles the sdlc_health_check MCP tool.
type HealthCheckTool struct {
	store Store
	now   func() time.Time
}

// NewHealthCheckTool creates a HealthCheckTool.
func NewHealthCheckTool(st Store) *HealthCheckTool {
	return &HealthCheckTool{store: st, now: time.Now}
}

func (t *HealthCheckTool) Definition() mcp.Tool {
	return mcp.NewTool("sdlc_health_check",
		mcp.WithDescription(
			"Run documentation health rules against a project and return findings, "+
				"a severity summary and a 0-100 score as JSON.",
		),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project slug"),
		),
	)
}

func (t *HealthCheckTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug := req.GetString("project", "")
	if slug == "" {
		return mcp.NewToolResultError("'project' is required"), nil
	}

	p, err := t.store.GetProject(ctx, slug)
	if err != nil {
		return projectError(slug, err), nil
	}
	docs, err := t.store.Documents(ctx, p.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load documents: %v", err)), nil
	}

	data, err := json.MarshalIndent(health.Check(docs, p.Slug, t.now()), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode health result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ===== sdlc_sync =====

// SyncTool handles the sdlc_sync MCP tool.
type SyncTool struct {
	syncer Syncer
}

// NewSyncTool creates a SyncTool.
func NewSyncTool(sy Syncer) *SyncTool {
	return &SyncTool{syncer: sy}
}

func (t *SyncTool) Definition() mcp.Tool {
	return mcp.NewTool("sdlc_sync",
		mcp.WithDescription("Sync a project from its source and return added/updated/skipped/deleted/error counts."),
		mcp.WithString("project",
			mcp.Required(),
			mcp.Description("Project slug"),
		),
	)
}

func (t *SyncTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug := req.GetString("project", "")
	if slug == "" {
		return mcp.NewToolResultError("'project' is required"), nil
	}

	result, err := t.syncer.TriggerAndRun(ctx, slug)
	switch {
	case errors.Is(err, store.ErrProjectNotFound):
		return projectError(slug, err), nil
	case errors.Is(err, syncer.ErrSyncInProgress):
		return mcp.NewToolResultError(fmt.Sprintf("a sync is already running for '%s'", slug)), nil
	case err != nil:
		return mcp.NewToolResultError(fmt.Sprintf("sync failed for '%s': %v (%s)", slug, err, result)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Sync completed for '%s': %s", slug, result)), nil
}

// ===== sdlc_search =====

// SearchTool handles the sdlc_search MCP tool.
type SearchTool struct {
	store Store
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(st Store) *SearchTool {
	return &SearchTool{store: st}
}

func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("sdlc_search",
		mcp.WithDescription("Full-text search over document titles and content, ranked by relevance."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search text; matched as a phrase"),
		),
		mcp.WithString("project",
			mcp.Description("Restrict to one project slug"),
		),
		mcp.WithString("type",
			mcp.Description("Restrict to one document type: epic, story, bug, plan, test-spec, workflow, prd, trd, tsd, personas, other"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10, max: 50)"),
		),
	)
}

func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.TrimSpace(req.GetString("query", ""))
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	limit := intArg(req, "limit", defaultSearchLimit)
	if limit < 1 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	project := req.GetString("project", "")
	if project != "" {
		if _, err := t.store.GetProject(ctx, project); err != nil {
			return projectError(project, err), nil
		}
	}

	result, err := t.store.Search(ctx, store.SearchOptions{
		Query:       query,
		ProjectSlug: project,
		DocType:     req.GetString("type", ""),
		PerPage:     limit,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(result.Items) == 0 {
		return mcp.NewToolResultText("No documents found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d documents (showing %d):\n\n", result.Total, len(result.Items))
	for i, hit := range result.Items {
		status := "no status"
		if hit.Status != nil {
			status = *hit.Status
		}
		fmt.Fprintf(&b, "[%d] %s/%s %s (%s) - %s\n    %s\n\n",
			i+1, hit.ProjectSlug, hit.DocType, hit.DocID, status, hit.Title, hit.Snippet)
	}
	return mcp.NewToolResultText(b.String()), nil
}
