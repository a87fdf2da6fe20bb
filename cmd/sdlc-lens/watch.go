package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:     "watch <slug>",
	GroupID: "docs",
	Short:   "Re-sync a local project whenever its markdown files change",
	Long: `Watch a local project's directory tree and sync it after changes.

Changes are debounced (watch.debounce, default 500ms) so a burst of saves
produces a single sync. New directories are watched as they appear.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		a, err := openApp(nil)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.store.GetProject(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to load project %s: %w", args[0], err)
		}
		if p.SourceType != document.SourceLocal {
			return fmt.Errorf("project %s is a %s project; only local projects can be watched", p.Slug, p.SourceType)
		}

		w, err := watch.New(p.Slug, p.SDLCPath, a.syncer, &watch.Config{
			Debounce: cfg.Watch.Debounce,
			Logger:   logs.New("watch"),
		})
		if err != nil {
			return err
		}

		fmt.Printf("Watching %s (Ctrl+C to stop)\n", p.SDLCPath)
		return w.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
