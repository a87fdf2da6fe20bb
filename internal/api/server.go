// Package api serves the HTTP JSON API and the websocket event stream.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
)

// SyncTrigger starts background syncs. Implemented by *syncer.Syncer.
type SyncTrigger interface {
	TriggerSync(ctx context.Context, slug string) (*document.Project, error)
	Dispatch(slug string)
}

// Server routes API requests to the store and the syncer.
type Server struct {
	router  chi.Router
	store   *store.Store
	syncer  SyncTrigger
	events  http.Handler
	version string
	now     func() time.Time
	logger  *log.Logger
}

// Config holds server configuration
type Config struct {
	// Version is reported by the system health endpoint
	Version string

	// Events serves /ws (nil disables the route)
	Events http.Handler

	// Logger for request activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{Version: "dev"}
}

// NewServer creates the API server and registers its routes.
func NewServer(st *store.Store, syncer SyncTrigger, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[api] ", log.LstdFlags)
	}

	s := &Server{
		router:  chi.NewRouter(),
		store:   st,
		syncer:  syncer,
		events:  config.Events,
		version: config.Version,
		now:     time.Now,
		logger:  logger,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.logRequests)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/system/health", s.handleSystemHealth)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", s.handleListProjects)
			r.Post("/", s.handleCreateProject)

			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/", s.handleGetProject)
				r.Put("/", s.handleUpdateProject)
				r.Delete("/", s.handleDeleteProject)
				r.Post("/sync", s.handleTriggerSync)
				r.Get("/health-check", s.handleHealthCheck)
				r.Get("/stats", s.handleProjectStats)

				r.Get("/documents", s.handleListDocuments)
				r.Get("/documents/{type}/{docID}", s.handleGetDocument)
				r.Get("/documents/{type}/{docID}/related", s.handleRelatedDocuments)
			})
		})

		r.Get("/stats", s.handleAggregateStats)
		r.Get("/search", s.handleSearch)
	})

	if s.events != nil {
		s.router.Handle("/ws", s.events)
	}
}

// logRequests logs each request with its status and duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if r.URL.Path == "/ws" {
			return
		}
		s.logger.Printf("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("API server listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.logger.Println("API server stopped")
	return nil
}
