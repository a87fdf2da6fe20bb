// Package loadtest exercises the store under concurrent access.
//
// It populates a database with a synthetic project (epics, stories and
// plans linked the way an sdlc-studio tree links them) and runs concurrent
// readers, optionally alongside a writer that keeps re-syncing the same
// documents, to check that readers always see a complete document set and
// to measure query latency.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/contenthash"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
)

// Fixture is a populated database for load testing.
type Fixture struct {
	Store     *store.Store
	Project   *document.Project
	Documents []*document.Document
}

// LatencyStats captures query latency from a load run.
type LatencyStats struct {
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration
	P95          time.Duration
	P99          time.Duration
	TotalQueries int
	Errors       int
}

// NewFixture creates a database at dbPath holding one local project rooted
// at root with numEpics epics, storiesPerEpic stories per epic and a plan
// for every other story.
func NewFixture(dbPath, root string, numEpics, storiesPerEpic int) (*Fixture, error) {
	st, err := store.Open(dbPath, log.New(io.Discard, "", 0))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx := context.Background()
	p, err := st.CreateProject(ctx, store.NewProject{
		Name:       "Load Test",
		SourceType: document.SourceLocal,
		SDLCPath:   root,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	docs := generateDocuments(p, numEpics, storiesPerEpic)
	err = st.WithTx(ctx, func(w store.Writer) error {
		for _, d := range docs {
			if err := w.UpsertDocument(ctx, d); err != nil {
				return err
			}
		}
		return w.MarkSynced(ctx, p.ID, time.Now().UTC())
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to insert documents: %w", err)
	}
	if err := st.RebuildSearchIndex(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to build search index: %w", err)
	}

	return &Fixture{Store: st, Project: p, Documents: docs}, nil
}

// Close closes the database.
func (f *Fixture) Close() error {
	return f.Store.Close()
}

// query is one read a simulated client performs.
func (f *Fixture) query(ctx context.Context, n int) error {
	switch n % 3 {
	case 0:
		_, err := f.Store.Search(ctx, store.SearchOptions{Query: "login", ProjectSlug: f.Project.Slug})
		return err
	case 1:
		_, err := f.Store.ListDocuments(ctx, f.Project.ID, store.DocumentFilter{Type: string(document.TypeStory)})
		return err
	default:
		_, err := f.Store.ProjectStats(ctx, f.Project)
		return err
	}
}

// RunConcurrentReads runs numReaders clients that each issue
// queriesPerReader mixed queries (search, listing, stats) and returns the
// aggregated latency.
func (f *Fixture) RunConcurrentReads(numReaders, queriesPerReader int) (*LatencyStats, error) {
	var wg sync.WaitGroup
	results := make(chan []time.Duration, numReaders)
	errs := make(chan error, numReaders)

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(reader int) {
			defer wg.Done()

			durations := make([]time.Duration, 0, queriesPerReader)
			ctx := context.Background()
			for j := 0; j < queriesPerReader; j++ {
				start := time.Now()
				err := f.query(ctx, reader+j)
				durations = append(durations, time.Since(start))
				if err != nil {
					errs <- fmt.Errorf("reader %d query %d failed: %w", reader, j, err)
					break
				}
			}
			results <- durations
		}(i)
	}

	wg.Wait()
	close(results)
	close(errs)

	var all []time.Duration
	for durations := range results {
		all = append(all, durations...)
	}
	var firstErr error
	errorCount := 0
	for err := range errs {
		errorCount++
		if firstErr == nil {
			firstErr = err
		}
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("no queries completed")
	}

	stats := computeLatencyStats(all)
	stats.Errors = errorCount
	return stats, firstErr
}

// VerifyReadsDuringWrites runs numReaders readers against a writer that
// rewrites every story in one transaction per pass, for duration. Readers
// must always see the full document set; a partial count means a batch
// was observed mid-commit.
func (f *Fixture) VerifyReadsDuringWrites(numReaders int, duration time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	want := len(f.Documents)
	var wg sync.WaitGroup
	errs := make(chan error, numReaders+1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for pass := 1; ctx.Err() == nil; pass++ {
			if err := f.rewriteStories(context.Background(), pass); err != nil {
				errs <- fmt.Errorf("writer pass %d failed: %w", pass, err)
				return
			}
		}
	}()

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(reader int) {
			defer wg.Done()
			for ctx.Err() == nil {
				docs, err := f.Store.Documents(context.Background(), f.Project.ID)
				if err != nil {
					errs <- fmt.Errorf("reader %d failed: %w", reader, err)
					return
				}
				if len(docs) != want {
					errs <- fmt.Errorf("reader %d saw %d documents, want %d", reader, len(docs), want)
					return
				}
				for _, d := range docs {
					if d.DocID == "" || d.FileHash == "" {
						errs <- fmt.Errorf("reader %d saw incomplete document at %s", reader, d.FilePath)
						return
					}
				}
				time.Sleep(time.Millisecond)
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		return err
	}
	return nil
}

// rewriteStories updates every story's content in one transaction.
func (f *Fixture) rewriteStories(ctx context.Context, pass int) error {
	return f.Store.WithTx(ctx, func(w store.Writer) error {
		for _, d := range f.Documents {
			if d.DocType != document.TypeStory {
				continue
			}
			updated := *d
			updated.Content = fmt.Sprintf("%s\nrevision %d\n", d.Content, pass)
			updated.FileHash = contenthash.Sum([]byte(updated.Content))
			if err := w.UpsertDocument(ctx, &updated); err != nil {
				return err
			}
		}
		return w.MarkSynced(ctx, f.Project.ID, time.Now().UTC())
	})
}

// generateDocuments builds a linked epic/story/plan tree for p.
func generateDocuments(p *document.Project, numEpics, storiesPerEpic int) []*document.Document {
	statuses := []string{"Draft", "Ready", "In Progress", "Done", "Done"}
	syncedAt := time.Now().UTC().Truncate(time.Second)
	docs := make([]*document.Document, 0, numEpics*(1+storiesPerEpic*3/2))

	add := func(docType document.DocType, docID, dir, title, content string, status string, epic, story *string) {
		docs = append(docs, &document.Document{
			ProjectID: p.ID,
			DocType:   docType,
			DocID:     docID,
			Title:     title,
			Status:    document.Ref(status),
			Epic:      epic,
			Story:     story,
			Content:   content,
			FilePath:  dir + "/" + docID + ".md",
			FileHash:  contenthash.Sum([]byte(content)),
			SyncedAt:  syncedAt,
		})
	}

	story := 0
	for e := 1; e <= numEpics; e++ {
		epicID := fmt.Sprintf("EP%04d", e)
		add(document.TypeEpic, epicID+"-area", "epics", epicID+": Area "+fmt.Sprint(e),
			"# "+epicID+"\n\nCapability area.\n", "In Progress", nil, nil)

		for s := 0; s < storiesPerEpic; s++ {
			story++
			storyID := fmt.Sprintf("US%04d", story)
			feature := []string{"login", "logout", "profile", "billing"}[story%4]
			content := fmt.Sprintf("# %s\n\nAs a user I want %s so that work continues.\n%s\n",
				storyID, feature, strings.Repeat("Acceptance criteria detail. ", 8))
			add(document.TypeStory, storyID+"-"+feature, "stories", storyID+": "+feature,
				content, statuses[story%len(statuses)], document.Ref(epicID), nil)

			if story%2 == 0 {
				planID := fmt.Sprintf("PL%04d", story)
				add(document.TypePlan, planID+"-"+feature, "plans", planID+": plan for "+feature,
					"# "+planID+"\n\nImplementation steps.\n", "Draft", nil, document.Ref(storyID))
			}
		}
	}
	return docs
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	return &LatencyStats{
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         sum / time.Duration(len(sorted)),
		P50:          sorted[len(sorted)*50/100],
		P95:          sorted[len(sorted)*95/100],
		P99:          sorted[len(sorted)*99/100],
		TotalQueries: len(sorted),
	}
}

// String formats the statistics for test logs.
func (s *LatencyStats) String() string {
	return fmt.Sprintf("queries=%d errors=%d min=%v p50=%v mean=%v p95=%v p99=%v max=%v",
		s.TotalQueries, s.Errors, s.Min, s.P50, s.Mean, s.P95, s.P99, s.Max)
}
