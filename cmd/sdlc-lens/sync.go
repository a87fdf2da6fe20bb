package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/syncer"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync <slug>",
	GroupID: "docs",
	Short:   "Sync a project from its source in the foreground",
	Long: `Sync one project and print the counters.

Files whose content hash is unchanged are skipped, new and changed files are
parsed and stored, and documents whose file disappeared are deleted. The
project ends in status synced, or error with the failure message recorded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.syncer.TriggerAndRun(cmd.Context(), args[0])
		if errors.Is(err, store.ErrProjectNotFound) || errors.Is(err, syncer.ErrSyncInProgress) {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.SyncResult(args[0], result, err))
		if err != nil {
			return errReported
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
