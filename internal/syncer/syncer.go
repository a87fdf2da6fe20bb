package syncer

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/events"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/frontmatter"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/inference"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/source"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
)

// ErrSyncInProgress is returned when a project is already syncing.
var ErrSyncInProgress = store.ErrSyncInProgress

// statusWriteTimeout bounds the error-status write made after a failed run.
const statusWriteTimeout = 5 * time.Second

// Store is the persistence the reconciler needs.
type Store interface {
	GetProject(ctx context.Context, slug string) (*document.Project, error)
	StartSync(ctx context.Context, slug string) (*document.Project, error)
	SetSyncStatus(ctx context.Context, projectID int64, status document.SyncStatus, message *string) error
	DocumentsByPath(ctx context.Context, projectID int64) (map[string]*document.Document, error)
	WithTx(ctx context.Context, fn func(store.Writer) error) error
	RebuildSearchIndex(ctx context.Context) error
}

// Collector gathers a source's markdown files.
type Collector interface {
	Collect(ctx context.Context, cfg source.Config) (*source.Collection, error)
}

// Publisher receives sync lifecycle events.
type Publisher interface {
	Publish(msg events.Message)
}

// Result counts what one sync run did.
type Result struct {
	Added   int `json:"added" yaml:"added"`
	Updated int `json:"updated" yaml:"updated"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Deleted int `json:"deleted" yaml:"deleted"`
	Errors  int `json:"errors" yaml:"errors"`
}

func (r Result) String() string {
	return fmt.Sprintf("added=%d updated=%d skipped=%d deleted=%d errors=%d",
		r.Added, r.Updated, r.Skipped, r.Deleted, r.Errors)
}

// Syncer runs sync passes against a store.
type Syncer struct {
	store     Store
	collector Collector
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time
	newRunID  func() string

	// background runs started by Dispatch
	wg sync.WaitGroup
}

// New creates a Syncer. publisher may be nil. If logger is nil, a default
// logger writing to stderr is used.
func New(st Store, collector Collector, publisher Publisher, logger *log.Logger) *Syncer {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Syncer{
		store:     st,
		collector: collector,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newRunID:  newRunID,
	}
}

// SourceConfig builds the collector configuration for a project.
func SourceConfig(p *document.Project) source.Config {
	if p.SourceType == document.SourceGitHub {
		branch := p.RepoBranch
		if branch == "" {
			branch = document.DefaultBranch
		}
		subpath := p.RepoPath
		if subpath == "" {
			subpath = document.DefaultRepoPath
		}
		return source.Remote{
			URL:     p.RepoURL,
			Branch:  branch,
			Subpath: subpath,
			Token:   p.AccessToken,
		}
	}
	return source.Local{Path: p.SDLCPath}
}

// Sync runs one full reconciliation for p.
//
// Failures are recorded on the project as status error with a message; the
// returned error is that same failure, for callers that want to report it.
// The Result holds whatever was counted before the failure.
func (s *Syncer) Sync(ctx context.Context, p *document.Project) (Result, error) {
	var result Result
	runID := s.newRunID()
	cfg := SourceConfig(p)

	if err := source.Validate(cfg); err != nil {
		s.fail(ctx, p, runID, result, err)
		return result, err
	}

	if err := s.store.SetSyncStatus(ctx, p.ID, document.StatusSyncing, nil); err != nil {
		err = fmt.Errorf("failed to mark %s syncing: %w", p.Slug, err)
		s.fail(ctx, p, runID, result, err)
		return result, err
	}
	s.publish(events.MessageTypeSyncStarted, events.SyncData{RunID: runID, Slug: p.Slug})

	result, err := s.reconcile(ctx, p, cfg)
	if err != nil {
		s.fail(ctx, p, runID, result, err)
		return result, err
	}

	if err := s.store.RebuildSearchIndex(ctx); err != nil {
		s.logger.Printf("Warning: search index rebuild failed after syncing %s: %v", p.Slug, err)
	}

	s.publish(events.MessageTypeSyncComplete, syncData(runID, p.Slug, result, nil))
	return result, nil
}

// reconcile collects the source and applies the add/update/skip/delete plan
// in one transaction that also marks the project synced.
func (s *Syncer) reconcile(ctx context.Context, p *document.Project, cfg source.Config) (Result, error) {
	var result Result

	collection, err := s.collector.Collect(ctx, cfg)
	if err != nil {
		return result, err
	}
	result.Errors += collection.Errors

	existing, err := s.store.DocumentsByPath(ctx, p.ID)
	if err != nil {
		return result, err
	}

	syncedAt := s.now()
	var counted Result
	err = s.store.WithTx(ctx, func(w store.Writer) error {
		counted = result
		for _, f := range collection.Files {
			prev, known := existing[f.Path]
			if known && prev.FileHash == f.Hash {
				counted.Skipped++
				continue
			}

			text, ok := decode(f.Raw)
			if !ok {
				s.logger.Printf("Warning: cannot decode %s as UTF-8, skipping", f.Path)
				counted.Errors++
				continue
			}

			inferred, ok := inference.Infer(path.Base(f.Path), f.Path)
			if !ok {
				continue
			}

			doc, err := document.BuildAttributes(frontmatter.Parse(text), document.Source{
				ProjectID: p.ID,
				DocType:   inferred.DocType,
				DocID:     inferred.DocID,
				FilePath:  f.Path,
				FileHash:  f.Hash,
				SyncedAt:  syncedAt,
			})
			if err != nil {
				return err
			}
			if err := w.UpsertDocument(ctx, doc); err != nil {
				return err
			}
			if known {
				counted.Updated++
			} else {
				counted.Added++
			}
		}

		for filePath := range existing {
			if collection.Has(filePath) {
				continue
			}
			if err := w.DeleteDocument(ctx, p.ID, filePath); err != nil {
				return err
			}
			counted.Deleted++
		}

		return w.MarkSynced(ctx, p.ID, syncedAt)
	})
	if err != nil {
		// nothing from the batch was committed
		return result, err
	}

	return counted, nil
}

// fail records err on the project and publishes a sync_error event.
//
// The status write detaches from ctx: a cancelled run must still release
// the project from syncing, or every later trigger is refused.
func (s *Syncer) fail(ctx context.Context, p *document.Project, runID string, result Result, err error) {
	msg := err.Error()
	s.logger.Printf("Sync failed for '%s': %s", p.Slug, msg)

	statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()
	if serr := s.store.SetSyncStatus(statusCtx, p.ID, document.StatusError, &msg); serr != nil {
		s.logger.Printf("Warning: failed to record sync error for %s: %v", p.Slug, serr)
	}
	s.publish(events.MessageTypeSyncError, syncData(runID, p.Slug, result, err))
}

func (s *Syncer) publish(typ events.MessageType, data events.SyncData) {
	if s.publisher == nil {
		return
	}
	msg, err := events.NewMessage(typ, data)
	if err != nil {
		s.logger.Printf("Warning: %v", err)
		return
	}
	s.publisher.Publish(msg)
}

func syncData(runID, slug string, r Result, err error) events.SyncData {
	data := events.SyncData{
		RunID:   runID,
		Slug:    slug,
		Added:   r.Added,
		Updated: r.Updated,
		Skipped: r.Skipped,
		Deleted: r.Deleted,
		Errors:  r.Errors,
	}
	if err != nil {
		data.Error = err.Error()
	}
	return data
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decode strips a leading byte order mark and reports whether the rest is
// valid UTF-8.
func decode(raw []byte) (string, bool) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}
