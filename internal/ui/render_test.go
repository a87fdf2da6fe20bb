package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/health"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/syncer"
)

func assertContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

// TestHealth_Findings verifies findings render with their ids, messages and fixes.
func TestHealth_Findings(t *testing.T) {
	r := &health.Result{
		ProjectSlug:    "alpha",
		CheckedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		TotalDocuments: 3,
		Findings: []health.Finding{{
			RuleID:            "MISSING_PRD",
			Severity:          health.SeverityCritical,
			Category:          health.CategoryCompleteness,
			Message:           "No PRD found.",
			AffectedDocuments: []health.AffectedDocument{{DocID: "US0001", DocType: "story", Title: "Login"}},
			SuggestedFix:      "Create a PRD.",
		}},
		Summary: map[health.Severity]int{health.SeverityCritical: 1},
		Score:   85,
	}

	out := Health(r)
	assertContains(t, out, "alpha", "85/100", "3 documents", "critical 1", "high 0",
		"[CRITICAL]", "MISSING_PRD", "No PRD found.", "US0001", "Create a PRD.")
}

// TestHealth_NoFindings verifies the empty case.
func TestHealth_NoFindings(t *testing.T) {
	r := health.Check(nil, "empty", time.Now())
	assertContains(t, Health(r), "empty", "No findings.")
}

func TestSyncResult(t *testing.T) {
	out := SyncResult("alpha", syncer.Result{Added: 2, Skipped: 1}, nil)
	assertContains(t, out, "Synced", "alpha", "added=2 updated=0 skipped=1 deleted=0 errors=0")

	out = SyncResult("alpha", syncer.Result{}, errors.New("Path not found: /x"))
	assertContains(t, out, "Sync failed", "Path not found: /x")
}

func TestProjects(t *testing.T) {
	if out := Projects(nil, nil); out != "No projects registered.\n" {
		t.Errorf("Projects(nil) = %q", out)
	}

	projects := []*document.Project{
		{Slug: "alpha", SourceType: document.SourceLocal, SDLCPath: "/srv/alpha", SyncStatus: document.StatusSynced},
		{Slug: "beta", SourceType: document.SourceGitHub, RepoURL: "https://github.com/o/beta",
			RepoBranch: "main", RepoPath: "sdlc-studio", SyncStatus: document.StatusNeverSynced},
	}
	out := Projects(projects, map[string]int{"alpha": 12})
	assertContains(t, out, "SLUG", "alpha", "synced", "12", "/srv/alpha", "never_synced",
		"https://github.com/o/beta@main:sdlc-studio")
}

// TestProject_MasksToken verifies the access token never appears in full.
func TestProject_MasksToken(t *testing.T) {
	msg := "Repository not found (HTTP 404)"
	p := &document.Project{
		Name: "Beta", Slug: "beta", SourceType: document.SourceGitHub,
		RepoURL: "https://github.com/o/beta", RepoBranch: "main", RepoPath: "docs",
		AccessToken: "ghp_secretabcd", SyncStatus: document.StatusError, SyncError: &msg,
	}
	out := Project(p, 4)
	assertContains(t, out, "Beta", "****abcd", msg, "never", "4")
	if strings.Contains(out, "ghp_secret") {
		t.Errorf("token leaked:\n%s", out)
	}
}

func TestSearch(t *testing.T) {
	if out := Search(&store.SearchResult{Query: "none"}); out != "No results for \"none\".\n" {
		t.Errorf("Search(empty) = %q", out)
	}

	r := &store.SearchResult{
		Query: "oauth", Total: 1, Page: 1, PerPage: 20,
		Items: []store.SearchHit{{
			DocID: "US0001", DocType: "story", Title: "Login", ProjectSlug: "alpha",
			Snippet: "use <mark>oauth</mark>\nflow", Score: 1.2345,
		}},
	}
	out := Search(r)
	assertContains(t, out, "1 results", "US0001", "Login", "alpha/story", "use oauth flow")
	if strings.Contains(out, "<mark>") {
		t.Errorf("highlight markup not stripped:\n%s", out)
	}
}

func TestScoreStyle(t *testing.T) {
	// rendering is plain in tests; check the thresholds pick distinct styles
	if ScoreStyle(100).GetForeground() != ScoreStyle(80).GetForeground() {
		t.Error("80 and 100 should share a style")
	}
	if ScoreStyle(79).GetForeground() == ScoreStyle(80).GetForeground() {
		t.Error("79 should differ from 80")
	}
	if ScoreStyle(49).GetForeground() == ScoreStyle(50).GetForeground() {
		t.Error("49 should differ from 50")
	}
}
