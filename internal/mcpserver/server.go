// Package mcpserver exposes projects, health checks, sync and search as MCP
// tools over stdio.
//
// Each tool is a struct with its dependencies injected via constructor;
// Definition returns the mcp.Tool schema and Handle processes a call.
// Failures a caller can act on (unknown project, sync already running) are
// tool errors, not protocol errors.
package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/syncer"
)

// Syncer runs a foreground sync. Implemented by *syncer.Syncer.
type Syncer interface {
	TriggerAndRun(ctx context.Context, slug string) (syncer.Result, error)
}

// Store is the read side used by the tools. Implemented by *store.Store.
type Store interface {
	ListProjects(ctx context.Context) ([]*document.Project, error)
	GetProject(ctx context.Context, slug string) (*document.Project, error)
	DocumentCount(ctx context.Context, projectID int64) (int, error)
	Documents(ctx context.Context, projectID int64) ([]*document.Document, error)
	Search(ctx context.Context, opts store.SearchOptions) (*store.SearchResult, error)
}

// New creates the MCP server with every tool registered.
func New(st Store, sy Syncer, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"sdlc-lens",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	listTool := NewListProjectsTool(st)
	s.AddTool(listTool.Definition(), listTool.Handle)

	healthTool := NewHealthCheckTool(st)
	s.AddTool(healthTool.Definition(), healthTool.Handle)

	syncTool := NewSyncTool(sy)
	s.AddTool(syncTool.Definition(), syncTool.Handle)

	searchTool := NewSearchTool(st)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	return s
}

// Serve runs s on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

const instructions = `sdlc-lens indexes SDLC documentation (PRDs, epics, stories, plans, test specs)
from registered projects. Call sdlc_list_projects first to discover project slugs,
sdlc_sync to refresh a project's index, sdlc_health_check to find documentation gaps
and sdlc_search for full-text search across documents.`
