package main

import (
	"fmt"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/events"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/source"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/syncer"
)

// app holds the components shared by every command.
type app struct {
	store  *store.Store
	syncer *syncer.Syncer
}

// openApp opens the database and builds the syncer. hub may be nil when
// no websocket clients can be attached.
func openApp(hub *events.Hub) (*app, error) {
	st, err := store.Open(cfg.DatabasePath, logs.New("store"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DatabasePath, err)
	}

	var publisher syncer.Publisher
	if hub != nil {
		publisher = hub
	}
	collector := source.NewCollector(cfg.SourceOptions(), logs.New("source"))

	return &app{
		store:  st,
		syncer: syncer.New(st, collector, publisher, logs.New("sync")),
	}, nil
}

// Close waits for background syncs and closes the database.
func (a *app) Close() {
	a.syncer.Wait()
	if err := a.store.Close(); err != nil {
		logs.New("store").Printf("Warning: %v", err)
	}
}
