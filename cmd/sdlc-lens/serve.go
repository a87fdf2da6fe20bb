package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/api"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/config"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/events"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "server",
	Short:   "Start the HTTP API and websocket event stream",
	Long: `Start the HTTP API server.

Endpoints live under /api/v1 (projects, sync, documents, search, stats and
health checks). Sync lifecycle events are broadcast on the websocket
endpoint /ws as sync_started, sync_complete and sync_error messages.

With --watch, every local project is also watched and re-synced shortly
after its markdown files change.

Example usage:
  sdlc-lens serve                       # Listen on 0.0.0.0:8000
  sdlc-lens serve --port 9000 --watch   # Custom port with watchers`,
	RunE: func(cmd *cobra.Command, args []string) error {
		withWatch, _ := cmd.Flags().GetBool("watch")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		hub := events.NewHub(logs.New("events"))
		hub.AllowOrigins(cfg.WebSocket.AllowedOrigins...)
		hub.Start()
		defer hub.Stop()

		a, err := openApp(hub)
		if err != nil {
			return err
		}
		defer a.Close()

		server := api.NewServer(a.store, a.syncer, &api.Config{
			Version: Version,
			Events:  hub,
			Logger:  logs.New("api"),
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return server.ListenAndServe(gctx, cfg.Addr())
		})

		if withWatch {
			watchers, err := startWatchers(gctx, g, a)
			if err != nil {
				return err
			}
			fmt.Printf("Watching %d local projects\n", watchers)
		}

		fmt.Printf("API: http://%s/api/v1\n", cfg.Addr())
		fmt.Printf("WebSocket endpoint: ws://%s/ws\n", cfg.Addr())
		fmt.Println("\nPress Ctrl+C to stop...")

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Println("\nServer stopped")
		return nil
	},
}

// startWatchers runs one watcher per local project inside g.
func startWatchers(ctx context.Context, g *errgroup.Group, a *app) (int, error) {
	projects, err := a.store.ListProjects(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, p := range projects {
		if p.SourceType != document.SourceLocal {
			continue
		}
		w, err := watch.New(p.Slug, p.SDLCPath, a.syncer, &watch.Config{
			Debounce: cfg.Watch.Debounce,
			Logger:   logs.New("watch"),
		})
		if err != nil {
			return count, fmt.Errorf("failed to watch %s: %w", p.Slug, err)
		}
		slug := p.Slug
		g.Go(func() error {
			if err := w.Start(ctx); err != nil {
				logs.New("watch").Printf("Warning: watcher for '%s' stopped: %v", slug, err)
			}
			return nil
		})
		count++
	}
	return count, nil
}

func init() {
	serveCmd.Flags().String("host", "", "Bind host (default 0.0.0.0)")
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default 8000)")
	serveCmd.Flags().Bool("watch", false, "Re-sync local projects when their files change")
	mustBind(config.KeyHost, serveCmd.Flags().Lookup("host"))
	mustBind(config.KeyPort, serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd)
}
