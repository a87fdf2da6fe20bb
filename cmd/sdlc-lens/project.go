package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/ui"
)

var projectCmd = &cobra.Command{
	Use:     "project",
	GroupID: "projects",
	Short:   "Register, list, show and remove projects",
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a local or GitHub project",
	Long: `Register a project. The slug is derived from the name.

Example usage:
  sdlc-lens project add "My Project" --path ./sdlc-studio
  sdlc-lens project add Widgets --repo https://github.com/acme/widgets --branch main --repo-path sdlc-studio`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		repo, _ := cmd.Flags().GetString("repo")
		branch, _ := cmd.Flags().GetString("branch")
		repoPath, _ := cmd.Flags().GetString("repo-path")
		token, _ := cmd.Flags().GetString("token")

		in := store.NewProject{Name: args[0]}
		switch {
		case path != "" && repo != "":
			return fmt.Errorf("--path and --repo are mutually exclusive")
		case repo != "":
			in.SourceType = document.SourceGitHub
			in.RepoURL = repo
			in.RepoBranch = branch
			in.RepoPath = repoPath
			in.AccessToken = token
		case path != "":
			in.SourceType = document.SourceLocal
			in.SDLCPath = path
		default:
			return fmt.Errorf("one of --path or --repo is required")
		}

		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.store.CreateProject(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered project '%s'\n", p.Slug)
		fmt.Fprintf(cmd.OutOrStdout(), "Run 'sdlc-lens sync %s' to index it\n", p.Slug)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		projects, err := a.store.ListProjects(cmd.Context())
		if err != nil {
			return err
		}
		counts := make(map[string]int, len(projects))
		for _, p := range projects {
			n, err := a.store.DocumentCount(cmd.Context(), p.ID)
			if err != nil {
				return err
			}
			counts[p.Slug] = n
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.Projects(projects, counts))
		return nil
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <slug>",
	Short: "Show one project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.store.GetProject(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load project %s: %w", args[0], err)
		}
		n, err := a.store.DocumentCount(cmd.Context(), p.ID)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.Project(p, n))
		return nil
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:     "remove <slug>",
	Aliases: []string{"rm"},
	Short:   "Remove a project and its indexed documents",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.DeleteProject(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to remove project %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed project '%s'\n", args[0])
		return nil
	},
}

func init() {
	projectAddCmd.Flags().String("path", "", "Local sdlc-studio directory")
	projectAddCmd.Flags().String("repo", "", "GitHub repository URL")
	projectAddCmd.Flags().String("branch", document.DefaultBranch, "Repository branch")
	projectAddCmd.Flags().String("repo-path", document.DefaultRepoPath, "Directory inside the repository")
	projectAddCmd.Flags().String("token", "", "Access token for private repositories")

	projectCmd.AddCommand(projectAddCmd, projectListCmd, projectShowCmd, projectRemoveCmd)
	rootCmd.AddCommand(projectCmd)
}
