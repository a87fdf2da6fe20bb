package main

import (
	"github.com/spf13/cobra"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:     "mcp",
	GroupID: "server",
	Short:   "Serve MCP tools over stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout.

Tools: sdlc_list_projects, sdlc_health_check, sdlc_sync and sdlc_search.
Logs go to stderr (or log.file) so stdout carries only protocol messages.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		return mcpserver.Serve(mcpserver.New(a.store, a.syncer, Version))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
