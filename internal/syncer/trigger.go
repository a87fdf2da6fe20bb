package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
)

// TriggerSync claims project slug for a sync run by moving it to syncing.
// It fails with store.ErrProjectNotFound for an unknown slug and
// ErrSyncInProgress when a run already holds the project.
func (s *Syncer) TriggerSync(ctx context.Context, slug string) (*document.Project, error) {
	p, err := s.store.StartSync(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrSyncInProgress) || errors.Is(err, store.ErrProjectNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to trigger sync for %s: %w", slug, err)
	}
	return p, nil
}

// RunSyncTask re-reads the project and syncs it. It is the body of a
// background run, so it logs instead of returning errors.
func (s *Syncer) RunSyncTask(ctx context.Context, slug string) {
	p, err := s.store.GetProject(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrProjectNotFound) {
			s.logger.Printf("Warning: project '%s' deleted during sync", slug)
			return
		}
		s.logger.Printf("Warning: failed to load project '%s' for sync: %v", slug, err)
		return
	}

	result, err := s.Sync(ctx, p)
	if err != nil {
		// already recorded on the project
		return
	}
	s.logger.Printf("Sync completed for '%s': %s", slug, result)
}

// Dispatch runs RunSyncTask on its own goroutine with a background context
// and returns immediately. Call TriggerSync first.
func (s *Syncer) Dispatch(slug string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunSyncTask(context.Background(), slug)
	}()
}

// TriggerAndRun claims slug and syncs it in the foreground.
func (s *Syncer) TriggerAndRun(ctx context.Context, slug string) (Result, error) {
	p, err := s.TriggerSync(ctx, slug)
	if err != nil {
		return Result{}, err
	}
	result, err := s.Sync(ctx, p)
	if err != nil {
		return result, err
	}
	s.logger.Printf("Sync completed for '%s': %s", slug, result)
	return result, nil
}

// Wait blocks until every dispatched run has finished.
func (s *Syncer) Wait() {
	s.wg.Wait()
}

func newRunID() string {
	return uuid.NewString()
}
