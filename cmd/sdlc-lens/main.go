// Command sdlc-lens indexes SDLC documentation from local directories and
// hosted repositories, and serves it over HTTP, MCP and the command line.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/config"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	configFile string
	envFile    string

	settings = config.New()
	cfg      *config.Config
	logs     *logging.Factory
)

var rootCmd = &cobra.Command{
	Use:   "sdlc-lens",
	Short: "Browse, search and health-check SDLC documentation",
	Long: `sdlc-lens reads the markdown artefacts an sdlc-studio workflow produces
(PRDs, epics, stories, plans, test specs) from registered projects, keeps a
searchable SQLite index of them and reports documentation health.

Projects are either a local directory or a subdirectory of a GitHub
repository branch. Run 'sdlc-lens project add' to register one, then
'sdlc-lens sync' or 'sdlc-lens serve'.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(settings, configFile, envFile)
		if err != nil {
			return err
		}
		cfg = loaded
		logs = logging.NewFactory(cfg.Log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			_ = logs.Close()
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "projects", Title: "Projects:"},
		&cobra.Group{ID: "docs", Title: "Documentation:"},
		&cobra.Group{ID: "server", Title: "Servers:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (YAML, TOML or JSON)")
	flags.StringVar(&envFile, "env-file", ".env", "Environment file loaded before SDLC_LENS_* variables")
	flags.String("db", "", "SQLite database path (default data/db/sdlc_lens.db)")
	mustBind(config.KeyDatabasePath, flags.Lookup("db"))
}

// mustBind binds a flag to a config key so an explicitly set flag wins
// over file and environment values.
func mustBind(key string, flag *pflag.Flag) {
	if err := settings.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("failed to bind flag for %s: %v", key, err))
	}
}

// errReported is returned by commands that already printed their failure.
var errReported = errors.New("failure already reported")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
