package syncer

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/events"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/source"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// setupTestStore opens a store in a temp dir.
func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "db", "test.db"), quietLogger())
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// createTestProject registers a local project rooted at a fresh temp dir.
func createTestProject(t *testing.T, st *store.Store, name string) (*document.Project, string) {
	t.Helper()
	root := t.TempDir()
	p, err := st.CreateProject(context.Background(), store.NewProject{
		Name:       name,
		SourceType: document.SourceLocal,
		SDLCPath:   root,
	})
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	return p, root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
}

func newTestSyncer(st Store, pub Publisher) *Syncer {
	return New(st, source.NewCollector(source.Options{}, quietLogger()), pub, quietLogger())
}

func reload(t *testing.T, st *store.Store, slug string) *document.Project {
	t.Helper()
	p, err := st.GetProject(context.Background(), slug)
	if err != nil {
		t.Fatalf("failed to reload project: %v", err)
	}
	return p
}

func storedPaths(t *testing.T, st *store.Store, projectID int64) []string {
	t.Helper()
	docs, err := st.Documents(context.Background(), projectID)
	if err != nil {
		t.Fatalf("failed to load documents: %v", err)
	}
	paths := []string{}
	for _, d := range docs {
		paths = append(paths, d.FilePath)
	}
	return paths
}

const storyFile = `# US0001: Login

> **Status:** Draft
> **Owner:** Alice
> **Epic:** [EP0001: Core](../epics/EP0001-core.md)
> **Story Points:** 3
> **Reviewer:** Bob

Users log in.
`

func TestSync_AddUpdateSkipDelete(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	p, root := createTestProject(t, st, "Recon")

	writeFile(t, root, "stories/US0001-login.md", storyFile)
	writeFile(t, root, "epics/EP0001-core.md", "# EP0001: Core\n\n> **Status:** Done\n")
	writeFile(t, root, "prd.md", "# Product\n")

	s := newTestSyncer(st, nil)
	res, err := s.Sync(ctx, p)
	if err != nil {
		t.Fatalf("first Sync() failed: %v", err)
	}
	if diff := cmp.Diff(Result{Added: 3}, res); diff != "" {
		t.Errorf("first sync mismatch (-want +got):\n%s", diff)
	}

	story, err := st.GetDocument(ctx, p.ID, document.TypeStory, "US0001-login")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if story.Title != "US0001: Login" || document.Deref(story.Epic) != "EP0001" || document.Deref(story.Status) != "Draft" {
		t.Errorf("story = %+v", story)
	}
	if story.StoryPoints == nil || *story.StoryPoints != 3 {
		t.Errorf("StoryPoints = %v, want 3", story.StoryPoints)
	}
	if string(story.Metadata) != `{"reviewer":"Bob"}` {
		t.Errorf("Metadata = %s", story.Metadata)
	}

	after := reload(t, st, p.Slug)
	if after.SyncStatus != document.StatusSynced || after.LastSyncedAt == nil || after.SyncError != nil {
		t.Errorf("project after sync = %+v", after)
	}

	// change one, remove one, add one
	writeFile(t, root, "stories/US0001-login.md", strings.Replace(storyFile, "Draft", "Done", 1))
	if err := os.Remove(filepath.Join(root, "prd.md")); err != nil {
		t.Fatal(err)
	}
	writeFile(t, root, "plans/PL0001-login.md", "# PL0001\n\n> **Story:** US0001\n")

	res, err = s.Sync(ctx, p)
	if err != nil {
		t.Fatalf("second Sync() failed: %v", err)
	}
	if diff := cmp.Diff(Result{Added: 1, Updated: 1, Skipped: 1, Deleted: 1}, res); diff != "" {
		t.Errorf("second sync mismatch (-want +got):\n%s", diff)
	}

	want := []string{"epics/EP0001-core.md", "plans/PL0001-login.md", "stories/US0001-login.md"}
	if diff := cmp.Diff(want, storedPaths(t, st, p.ID)); diff != "" {
		t.Errorf("stored paths mismatch (-want +got):\n%s", diff)
	}

	story, _ = st.GetDocument(ctx, p.ID, document.TypeStory, "US0001-login")
	if document.Deref(story.Status) != "Done" {
		t.Errorf("updated status = %v, want Done", story.Status)
	}
}

func TestSync_UnchangedSourceSkipsEverything(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	p, root := createTestProject(t, st, "Stable")

	for _, rel := range []string{"a.md", "b.md", "epics/EP0002-x.md", "stories/US0009-y.md"} {
		writeFile(t, root, rel, "# "+rel+"\n")
	}

	s := newTestSyncer(st, nil)
	if _, err := s.Sync(ctx, p); err != nil {
		t.Fatalf("first Sync() failed: %v", err)
	}
	res, err := s.Sync(ctx, p)
	if err != nil {
		t.Fatalf("second Sync() failed: %v", err)
	}
	if diff := cmp.Diff(Result{Skipped: 4}, res); diff != "" {
		t.Errorf("second sync mismatch (-want +got):\n%s", diff)
	}
}

func TestSync_DecodeFailuresCounted(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	p, root := createTestProject(t, st, "Encoding")

	writeFile(t, root, "bad.md", "# Bad \xff\xfe\n")
	writeFile(t, root, "bom.md", "\xef\xbb\xbf# With BOM\n\nbody\n")

	res, err := newTestSyncer(st, nil).Sync(ctx, p)
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if diff := cmp.Diff(Result{Added: 1, Errors: 1}, res); diff != "" {
		t.Errorf("sync mismatch (-want +got):\n%s", diff)
	}

	doc, err := st.GetDocument(ctx, p.ID, document.TypeOther, "bom")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if doc.Title != "With BOM" {
		t.Errorf("Title = %q, want %q", doc.Title, "With BOM")
	}
	if reload(t, st, p.Slug).SyncStatus != document.StatusSynced {
		t.Error("per-file errors must not fail the sync")
	}
}

func TestSync_MissingPathSetsError(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	p, root := createTestProject(t, st, "Vanished")

	writeFile(t, root, "keep.md", "# Keep\n")
	s := newTestSyncer(st, nil)
	if _, err := s.Sync(ctx, p); err != nil {
		t.Fatalf("first Sync() failed: %v", err)
	}

	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}
	_, err := s.Sync(ctx, p)
	if !errors.Is(err, source.ErrPathNotFound) {
		t.Fatalf("Sync() error = %v, want ErrPathNotFound", err)
	}

	after := reload(t, st, p.Slug)
	if after.SyncStatus != document.StatusError {
		t.Errorf("SyncStatus = %s, want error", after.SyncStatus)
	}
	if msg := document.Deref(after.SyncError); !strings.HasPrefix(msg, "Path not found: ") {
		t.Errorf("SyncError = %q", msg)
	}
	if diff := cmp.Diff([]string{"keep.md"}, storedPaths(t, st, p.ID)); diff != "" {
		t.Errorf("documents changed on source error (-want +got):\n%s", diff)
	}
}

// failingStore fails the Nth upsert inside a batch.
type failingStore struct {
	*store.Store
	okUpserts int
}

func (f *failingStore) WithTx(ctx context.Context, fn func(store.Writer) error) error {
	return f.Store.WithTx(ctx, func(w store.Writer) error {
		return fn(&failingWriter{Writer: w, remaining: f.okUpserts})
	})
}

type failingWriter struct {
	store.Writer
	remaining int
}

func (w *failingWriter) UpsertDocument(ctx context.Context, doc *document.Document) error {
	if w.remaining == 0 {
		return errors.New("disk I/O error")
	}
	w.remaining--
	return w.Writer.UpsertDocument(ctx, doc)
}

func TestSync_BatchFailureRollsBack(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	p, root := createTestProject(t, st, "Atomic")

	writeFile(t, root, "a.md", "# A\n")
	if _, err := newTestSyncer(st, nil).Sync(ctx, p); err != nil {
		t.Fatalf("first Sync() failed: %v", err)
	}

	writeFile(t, root, "a.md", "# A changed\n")
	writeFile(t, root, "b.md", "# B\n")
	writeFile(t, root, "c.md", "# C\n")

	s := newTestSyncer(&failingStore{Store: st, okUpserts: 2}, nil)
	if _, err := s.Sync(ctx, p); err == nil {
		t.Fatal("Sync() succeeded, want error")
	}

	if diff := cmp.Diff([]string{"a.md"}, storedPaths(t, st, p.ID)); diff != "" {
		t.Errorf("partial batch committed (-want +got):\n%s", diff)
	}
	a, err := st.GetDocument(ctx, p.ID, document.TypeOther, "a")
	if err != nil {
		t.Fatalf("GetDocument() failed: %v", err)
	}
	if a.Title != "A" {
		t.Errorf("Title = %q, want the pre-sync value", a.Title)
	}

	after := reload(t, st, p.Slug)
	if after.SyncStatus != document.StatusError || document.Deref(after.SyncError) != "disk I/O error" {
		t.Errorf("project after failed sync = %s / %v", after.SyncStatus, document.Deref(after.SyncError))
	}
}

func TestSync_RemoteNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	st := setupTestStore(t)
	ctx := context.Background()
	p, err := st.CreateProject(ctx, store.NewProject{
		Name:       "Remote",
		SourceType: document.SourceGitHub,
		RepoURL:    "https://github.com/owner/missing",
	})
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}

	s := New(st, source.NewCollector(source.Options{APIBase: srv.URL}, quietLogger()), nil, quietLogger())
	if _, err := s.Sync(ctx, p); !errors.Is(err, source.ErrRepoNotFound) {
		t.Fatalf("Sync() error = %v, want ErrRepoNotFound", err)
	}

	after := reload(t, st, p.Slug)
	if after.SyncStatus != document.StatusError || document.Deref(after.SyncError) != "Repository not found (HTTP 404)" {
		t.Errorf("project after failed sync = %s / %q", after.SyncStatus, document.Deref(after.SyncError))
	}
}

func TestTriggerSync(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	p, _ := createTestProject(t, st, "Trigger")
	s := newTestSyncer(st, nil)

	got, err := s.TriggerSync(ctx, p.Slug)
	if err != nil {
		t.Fatalf("TriggerSync() failed: %v", err)
	}
	if got.SyncStatus != document.StatusSyncing {
		t.Errorf("SyncStatus = %s, want syncing", got.SyncStatus)
	}

	if _, err := s.TriggerSync(ctx, p.Slug); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("second TriggerSync() error = %v, want ErrSyncInProgress", err)
	}
	if _, err := s.TriggerSync(ctx, "nope"); !errors.Is(err, store.ErrProjectNotFound) {
		t.Errorf("TriggerSync(nope) error = %v, want ErrProjectNotFound", err)
	}
}

// recorder collects published events.
type recorder struct {
	mu   sync.Mutex
	msgs []events.Message
}

func (r *recorder) Publish(msg events.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) types() []events.MessageType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.MessageType
	for _, m := range r.msgs {
		out = append(out, m.Type)
	}
	return out
}

func TestDispatch_RunsInBackground(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	p, root := createTestProject(t, st, "Background")
	writeFile(t, root, "epics/EP0001-a.md", "# EP0001\n")

	rec := &recorder{}
	s := newTestSyncer(st, rec)
	s.newRunID = func() string { return "run-1" }

	if _, err := s.TriggerSync(ctx, p.Slug); err != nil {
		t.Fatalf("TriggerSync() failed: %v", err)
	}
	s.Dispatch(p.Slug)
	s.Wait()

	if got := reload(t, st, p.Slug).SyncStatus; got != document.StatusSynced {
		t.Errorf("SyncStatus = %s, want synced", got)
	}
	want := []events.MessageType{events.MessageTypeSyncStarted, events.MessageTypeSyncComplete}
	if diff := cmp.Diff(want, rec.types()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(string(rec.msgs[1].Data), `"run_id":"run-1"`) || !strings.Contains(string(rec.msgs[1].Data), `"added":1`) {
		t.Errorf("complete data = %s", rec.msgs[1].Data)
	}
}

func TestSync_ErrorEventPublished(t *testing.T) {
	st := setupTestStore(t)
	p, root := createTestProject(t, st, "Broken")
	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	if _, err := newTestSyncer(st, rec).Sync(context.Background(), p); err == nil {
		t.Fatal("Sync() succeeded, want error")
	}
	if diff := cmp.Diff([]events.MessageType{events.MessageTypeSyncError}, rec.types()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestRunSyncTask_ProjectDeleted(t *testing.T) {
	st := setupTestStore(t)
	rec := &recorder{}
	s := newTestSyncer(st, rec)

	// logs and returns without publishing anything
	s.RunSyncTask(context.Background(), "gone")
	if len(rec.types()) != 0 {
		t.Errorf("events = %v, want none", rec.types())
	}
}

func TestTriggerAndRun(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	p, root := createTestProject(t, st, "Foreground")
	writeFile(t, root, "stories/US0001-a.md", "# US0001\n")

	res, err := newTestSyncer(st, nil).TriggerAndRun(ctx, p.Slug)
	if err != nil {
		t.Fatalf("TriggerAndRun() failed: %v", err)
	}
	if res.Added != 1 {
		t.Errorf("Added = %d, want 1", res.Added)
	}
}

// TestSync_BareExtensionFileIgnored verifies a file named just ".md" does not
// abort the batch.
func TestSync_BareExtensionFileIgnored(t *testing.T) {
	st := setupTestStore(t)
	p, root := createTestProject(t, st, "Stray")
	writeFile(t, root, "prd.md", "# PRD\n")
	writeFile(t, root, "stories/.md", "stray\n")

	res, err := newTestSyncer(st, nil).TriggerAndRun(context.Background(), p.Slug)
	if err != nil {
		t.Fatalf("TriggerAndRun() failed: %v", err)
	}
	if res.Added != 1 || res.Errors != 0 {
		t.Errorf("result = %s, want added=1 errors=0", res)
	}
	if diff := cmp.Diff([]string{"prd.md"}, storedPaths(t, st, p.ID)); diff != "" {
		t.Errorf("stored paths mismatch (-want +got):\n%s", diff)
	}
	if got := reload(t, st, p.Slug).SyncStatus; got != document.StatusSynced {
		t.Errorf("status = %s, want %s", got, document.StatusSynced)
	}
}

// cancellingCollector cancels the run's context mid-collect, as an
// interrupted CLI or a stopping watcher would.
type cancellingCollector struct {
	cancel context.CancelFunc
}

func (c *cancellingCollector) Collect(ctx context.Context, cfg source.Config) (*source.Collection, error) {
	c.cancel()
	return nil, ctx.Err()
}

// TestTriggerAndRun_CancelledRunReleasesProject verifies a run whose context
// is cancelled mid-sync leaves the project in error, not syncing, so the next
// trigger succeeds.
func TestTriggerAndRun_CancelledRunReleasesProject(t *testing.T) {
	st := setupTestStore(t)
	p, root := createTestProject(t, st, "Interrupted")
	writeFile(t, root, "prd.md", "# PRD\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New(st, &cancellingCollector{cancel: cancel}, nil, quietLogger())
	if _, err := s.TriggerAndRun(ctx, p.Slug); !errors.Is(err, context.Canceled) {
		t.Fatalf("TriggerAndRun() error = %v, want context.Canceled", err)
	}

	after := reload(t, st, p.Slug)
	if after.SyncStatus != document.StatusError {
		t.Fatalf("status after cancelled run = %s, want %s", after.SyncStatus, document.StatusError)
	}
	if !strings.Contains(document.Deref(after.SyncError), "context canceled") {
		t.Errorf("sync_error = %q", document.Deref(after.SyncError))
	}

	res, err := newTestSyncer(st, nil).TriggerAndRun(context.Background(), p.Slug)
	if err != nil {
		t.Fatalf("retry TriggerAndRun() failed: %v", err)
	}
	if res.Added != 1 {
		t.Errorf("retry Added = %d, want 1", res.Added)
	}
}

// syncingStatusStore fails only the move to syncing.
type syncingStatusStore struct {
	*store.Store
}

func (s *syncingStatusStore) SetSyncStatus(ctx context.Context, projectID int64, status document.SyncStatus, message *string) error {
	if status == document.StatusSyncing {
		return errors.New("database is locked")
	}
	return s.Store.SetSyncStatus(ctx, projectID, status, message)
}

// TestSync_SyncingStatusFailureRecorded verifies a failed status write at the
// start of a run is recorded on the project like any other failure.
func TestSync_SyncingStatusFailureRecorded(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	p, root := createTestProject(t, st, "Locked")
	writeFile(t, root, "prd.md", "# PRD\n")

	rec := &recorder{}
	s := newTestSyncer(&syncingStatusStore{Store: st}, rec)
	if _, err := s.TriggerAndRun(ctx, p.Slug); err == nil {
		t.Fatal("TriggerAndRun() succeeded, want error")
	}

	after := reload(t, st, p.Slug)
	if after.SyncStatus != document.StatusError || !strings.Contains(document.Deref(after.SyncError), "database is locked") {
		t.Errorf("project = %s / %q", after.SyncStatus, document.Deref(after.SyncError))
	}
	if diff := cmp.Diff([]events.MessageType{events.MessageTypeSyncError}, rec.types()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{}, storedPaths(t, st, p.ID)); diff != "" {
		t.Errorf("documents written (-want +got):\n%s", diff)
	}
}

func TestSourceConfig(t *testing.T) {
	local := SourceConfig(&document.Project{SourceType: document.SourceLocal, SDLCPath: "/srv/docs"})
	if diff := cmp.Diff(source.Local{Path: "/srv/docs"}, local); diff != "" {
		t.Errorf("local config mismatch (-want +got):\n%s", diff)
	}

	remote := SourceConfig(&document.Project{
		SourceType:  document.SourceGitHub,
		RepoURL:     "https://github.com/o/r",
		AccessToken: "tok",
	})
	want := source.Remote{URL: "https://github.com/o/r", Branch: "main", Subpath: "sdlc-studio", Token: "tok"}
	if diff := cmp.Diff(want, remote); diff != "" {
		t.Errorf("remote config mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		raw    []byte
		want   string
		wantOK bool
	}{
		{"plain", []byte("hello"), "hello", true},
		{"bom stripped", []byte("\xef\xbb\xbfhello"), "hello", true},
		{"invalid", []byte{0x68, 0xff}, "", false},
		{"empty", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decode(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("decode() = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
