package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/ui"
)

var searchCmd = &cobra.Command{
	Use:     "search <query>",
	GroupID: "docs",
	Short:   "Full-text search across synced documents",
	Long: `Search document titles and content. The query is matched as a phrase,
so operators such as AND, OR and * are treated literally.

Example usage:
  sdlc-lens search "password reset"
  sdlc-lens search oauth --project my-project --type story`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, _ := cmd.Flags().GetString("project")
		docType, _ := cmd.Flags().GetString("type")
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")

		query := strings.Join(args, " ")
		if n := len([]rune(query)); n > 500 {
			return fmt.Errorf("query must be 500 characters or less (got %d)", n)
		}

		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.store.Search(cmd.Context(), store.SearchOptions{
			Query:       query,
			ProjectSlug: project,
			DocType:     docType,
			Page:        page,
			PerPage:     limit,
		})
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.Search(result))
		return nil
	},
}

func init() {
	searchCmd.Flags().String("project", "", "Restrict to one project slug")
	searchCmd.Flags().String("type", "", "Restrict to one document type")
	searchCmd.Flags().Int("page", 1, "Result page")
	searchCmd.Flags().IntP("limit", "n", store.DefaultSearchPerPage, "Results per page (max 50)")
	rootCmd.AddCommand(searchCmd)
}
