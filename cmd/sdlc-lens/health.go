package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/health"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/ui"
)

var healthCmd = &cobra.Command{
	Use:     "health <slug>",
	GroupID: "docs",
	Short:   "Check a project's documentation health",
	Long: `Run the documentation health rules against a synced project.

Findings cover missing artefacts (PRD, TRD, plans, test specs), broken or
inconsistent relationships, missing frontmatter fields, duplicate IDs,
empty content and stale documents. The score starts at 100 and drops by 15,
5, 2 and 1 per critical, high, medium and low finding.

Example usage:
  sdlc-lens health my-project
  sdlc-lens health my-project --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if format != "text" && format != "json" && format != "yaml" {
			return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
		}

		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.store.GetProject(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load project %s: %w", args[0], err)
		}
		docs, err := a.store.Documents(cmd.Context(), p.ID)
		if err != nil {
			return err
		}
		result := health.Check(docs, p.Slug, time.Now())

		out := cmd.OutOrStdout()
		switch format {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		case "yaml":
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(result)
		}
		fmt.Fprint(out, ui.Health(result))
		return nil
	},
}

func init() {
	healthCmd.Flags().StringP("format", "f", "text", "Output format: text, json or yaml")
	rootCmd.AddCommand(healthCmd)
}
