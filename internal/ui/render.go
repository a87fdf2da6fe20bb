package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/health"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/store"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/syncer"
)

const timeFormat = "2006-01-02 15:04"

// Health renders a health check as a score header, a severity summary and
// one block per finding.
func Health(r *health.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s  %s\n",
		HeaderStyle.Render("Health:"),
		HeaderStyle.Render(r.ProjectSlug),
		ScoreStyle(r.Score).Render(fmt.Sprintf("%d/100", r.Score)))
	fmt.Fprintf(&b, "%s\n", MutedStyle.Render(fmt.Sprintf("%d documents checked at %s",
		r.TotalDocuments, r.CheckedAt.Format(timeFormat))))

	counts := make([]string, 0, len(health.Severities()))
	for _, sev := range health.Severities() {
		counts = append(counts, SeverityStyle(sev).Render(fmt.Sprintf("%s %d", sev, r.Summary[sev])))
	}
	fmt.Fprintf(&b, "%s\n", strings.Join(counts, "  "))

	if len(r.Findings) == 0 {
		fmt.Fprintf(&b, "\nNo findings.\n")
		return b.String()
	}

	for _, f := range r.Findings {
		label := SeverityStyle(f.Severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(string(f.Severity))))
		fmt.Fprintf(&b, "\n%s %s %s\n", label, HeaderStyle.Render(f.RuleID), f.Message)
		if len(f.AffectedDocuments) > 0 {
			ids := make([]string, 0, len(f.AffectedDocuments))
			for _, d := range f.AffectedDocuments {
				ids = append(ids, d.DocID)
			}
			fmt.Fprintf(&b, "  %s %s\n", MutedStyle.Render("affects:"), strings.Join(ids, ", "))
		}
		fmt.Fprintf(&b, "  %s %s\n", MutedStyle.Render("fix:"), f.SuggestedFix)
	}
	return b.String()
}

// SyncResult renders the outcome of a foreground sync.
func SyncResult(slug string, r syncer.Result, err error) string {
	if err != nil {
		return fmt.Sprintf("%s %s: %v\n", ErrorStyle.Render("Sync failed"), slug, err)
	}
	style := SyncStatusStyle(document.StatusSynced)
	return fmt.Sprintf("%s %s: %s\n", style.Render("Synced"), slug, r)
}

// Projects renders one line per project with its document count.
func Projects(projects []*document.Project, counts map[string]int) string {
	if len(projects) == 0 {
		return "No projects registered.\n"
	}

	slugWidth := len("SLUG")
	for _, p := range projects {
		slugWidth = max(slugWidth, len(p.Slug))
	}
	slugCol := lipgloss.NewStyle().Width(slugWidth + 2)
	statusCol := lipgloss.NewStyle().Width(len(document.StatusNeverSynced) + 2)

	var b strings.Builder
	fmt.Fprintf(&b, "%s%s%s\n",
		HeaderStyle.Inherit(slugCol).Render("SLUG"),
		HeaderStyle.Inherit(statusCol).Render("STATUS"),
		HeaderStyle.Render("DOCS  SOURCE"))
	for _, p := range projects {
		fmt.Fprintf(&b, "%s%s%-6d%s\n",
			slugCol.Render(p.Slug),
			SyncStatusStyle(p.SyncStatus).Inherit(statusCol).Render(string(p.SyncStatus)),
			counts[p.Slug],
			describeSource(p))
	}
	return b.String()
}

// Project renders a single project in detail.
func Project(p *document.Project, documentCount int) string {
	var b strings.Builder
	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", MutedStyle.Render(fmt.Sprintf("%-14s", label+":")), value)
	}

	fmt.Fprintf(&b, "%s\n", HeaderStyle.Render(p.Name))
	row("Slug", p.Slug)
	row("Source", string(p.SourceType))
	switch p.SourceType {
	case document.SourceLocal:
		row("Path", p.SDLCPath)
	case document.SourceGitHub:
		row("Repository", p.RepoURL)
		row("Branch", p.RepoBranch)
		row("Repo path", p.RepoPath)
		if token := p.MaskedToken(); token != nil {
			row("Token", *token)
		}
	}
	row("Status", SyncStatusStyle(p.SyncStatus).Render(string(p.SyncStatus)))
	if p.SyncError != nil {
		row("Error", ErrorStyle.Render(*p.SyncError))
	}
	row("Last synced", formatOptionalTime(p.LastSyncedAt))
	row("Documents", fmt.Sprintf("%d", documentCount))
	return b.String()
}

// Search renders search hits, one block per hit.
func Search(r *store.SearchResult) string {
	if len(r.Items) == 0 {
		return fmt.Sprintf("No results for %q.\n", r.Query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", MutedStyle.Render(fmt.Sprintf("%d results for %q (page %d)", r.Total, r.Query, r.Page)))
	for _, hit := range r.Items {
		fmt.Fprintf(&b, "\n%s %s %s\n",
			HeaderStyle.Render(hit.DocID),
			hit.Title,
			MutedStyle.Render(fmt.Sprintf("[%s/%s %.4f]", hit.ProjectSlug, hit.DocType, hit.Score)))
		snippet := strings.NewReplacer("<mark>", "", "</mark>", "").Replace(hit.Snippet)
		fmt.Fprintf(&b, "  %s\n", strings.Join(strings.Fields(snippet), " "))
	}
	return b.String()
}

func describeSource(p *document.Project) string {
	if p.SourceType == document.SourceGitHub {
		return fmt.Sprintf("%s@%s:%s", p.RepoURL, p.RepoBranch, p.RepoPath)
	}
	return p.SDLCPath
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(timeFormat)
}
