package watch

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/syncer"
)

// fakeTrigger records sync requests and replays queued errors.
type fakeTrigger struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (f *fakeTrigger) TriggerAndRun(ctx context.Context, slug string) (syncer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return syncer.Result{}, err
	}
	return syncer.Result{Added: 1}, nil
}

func (f *fakeTrigger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig() *Config {
	return &Config{Debounce: 50 * time.Millisecond, Logger: log.New(io.Discard, "", 0)}
}

// startWatcher runs w until the test ends and waits for the initial watches.
func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Start() returned %v", err)
		}
	})

	waitFor(t, "initial watch", func() bool { return len(w.watcher.WatchList()) > 0 })
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// TestNew_Validation verifies constructor argument checks.
func TestNew_Validation(t *testing.T) {
	trigger := &fakeTrigger{}
	if _, err := New("", "/tmp", trigger, nil); err == nil {
		t.Error("New() with empty slug should fail")
	}
	if _, err := New("p", "", trigger, nil); err == nil {
		t.Error("New() with empty root should fail")
	}
	if _, err := New("p", "/tmp", nil, nil); err == nil {
		t.Error("New() with nil trigger should fail")
	}
}

// TestWatcher_DebouncesMarkdownChanges verifies a burst of writes yields one sync.
func TestWatcher_DebouncesMarkdownChanges(t *testing.T) {
	root := t.TempDir()
	trigger := &fakeTrigger{}
	w, err := New("demo", root, trigger, testConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startWatcher(t, w)

	for i := 0; i < 5; i++ {
		writeFile(t, filepath.Join(root, "notes.md"), "# Notes\n"+time.Now().String())
	}

	waitFor(t, "sync", func() bool { return trigger.count() >= 1 })
	time.Sleep(200 * time.Millisecond)
	if got := trigger.count(); got != 1 {
		t.Errorf("syncs = %d, want 1", got)
	}
}

// TestWatcher_IgnoresOtherFiles verifies non-markdown changes do not sync.
func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	trigger := &fakeTrigger{}
	w, err := New("demo", root, trigger, testConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startWatcher(t, w)

	writeFile(t, filepath.Join(root, "image.png"), "png")
	time.Sleep(200 * time.Millisecond)

	if got := trigger.count(); got != 0 {
		t.Errorf("syncs = %d, want 0", got)
	}
}

// TestWatcher_FollowsNewDirectories verifies files in new subdirectories are seen.
func TestWatcher_FollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	trigger := &fakeTrigger{}
	w, err := New("demo", root, trigger, testConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startWatcher(t, w)

	stories := filepath.Join(root, "stories")
	if err := os.Mkdir(stories, 0o755); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "sync after mkdir", func() bool { return trigger.count() >= 1 })
	waitFor(t, "subdirectory watch", func() bool {
		for _, p := range w.watcher.WatchList() {
			if p == stories {
				return true
			}
		}
		return false
	})

	before := trigger.count()
	writeFile(t, filepath.Join(stories, "US0001-a.md"), "# US0001\n")
	waitFor(t, "sync after nested write", func() bool { return trigger.count() > before })
}

// TestWatcher_SkipsExcludedDirectories verifies noise directories are not watched.
func TestWatcher_SkipsExcludedDirectories(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"node_modules", ".git", "epics"} {
		if err := os.Mkdir(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	w, err := New("demo", root, &fakeTrigger{}, testConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startWatcher(t, w)

	watched := map[string]bool{}
	for _, p := range w.watcher.WatchList() {
		watched[p] = true
	}
	if !watched[filepath.Join(root, "epics")] {
		t.Error("epics should be watched")
	}
	if watched[filepath.Join(root, "node_modules")] || watched[filepath.Join(root, ".git")] {
		t.Errorf("excluded directory watched: %v", w.watcher.WatchList())
	}
}

// TestWatcher_RequeuesWhenSyncInProgress verifies a busy project is retried.
func TestWatcher_RequeuesWhenSyncInProgress(t *testing.T) {
	root := t.TempDir()
	trigger := &fakeTrigger{errs: []error{syncer.ErrSyncInProgress}}
	w, err := New("demo", root, trigger, testConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startWatcher(t, w)

	writeFile(t, filepath.Join(root, "a.md"), "# A\n")
	waitFor(t, "retry", func() bool { return trigger.count() >= 2 })
}

// TestWatcher_FailedSyncNotRetried verifies other errors drop the change.
func TestWatcher_FailedSyncNotRetried(t *testing.T) {
	root := t.TempDir()
	trigger := &fakeTrigger{errs: []error{errors.New("Path not found")}}
	w, err := New("demo", root, trigger, testConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	startWatcher(t, w)

	writeFile(t, filepath.Join(root, "a.md"), "# A\n")
	waitFor(t, "sync", func() bool { return trigger.count() >= 1 })
	time.Sleep(200 * time.Millisecond)
	if got := trigger.count(); got != 1 {
		t.Errorf("syncs = %d, want 1", got)
	}
}

// TestWatcher_StopTwice verifies Stop is idempotent.
func TestWatcher_StopTwice(t *testing.T) {
	w, err := New("demo", t.TempDir(), &fakeTrigger{}, testConfig())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	w.Stop()
	w.Stop()
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		event fsnotify.Event
		want  bool
	}{
		{fsnotify.Event{Name: "/p/a.md", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "/p/a.md", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "/p/a.md", Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: "/p/a.md", Op: fsnotify.Rename}, true},
		{fsnotify.Event{Name: "/p/a.md", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "/p/a.txt", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		if got := relevant(tt.event); got != tt.want {
			t.Errorf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
		}
	}
}
