package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
)

// ProjectStats summarises one project's documents.
type ProjectStats struct {
	Slug                 string         `json:"slug" yaml:"slug"`
	Name                 string         `json:"name" yaml:"name"`
	TotalDocuments       int            `json:"total_documents" yaml:"total_documents"`
	ByType               map[string]int `json:"by_type" yaml:"by_type"`
	ByStatus             map[string]int `json:"by_status" yaml:"by_status"`
	CompletionPercentage float64        `json:"completion_percentage" yaml:"completion_percentage"`
	LastSyncedAt         *time.Time     `json:"last_synced_at" yaml:"last_synced_at"`

	storyCount int
	doneCount  int
}

// ProjectSummary is a project's entry in AggregateStats.
type ProjectSummary struct {
	Slug                 string     `json:"slug"`
	Name                 string     `json:"name"`
	TotalDocuments       int        `json:"total_documents"`
	CompletionPercentage float64    `json:"completion_percentage"`
	LastSyncedAt         *time.Time `json:"last_synced_at"`
}

// AggregateStats summarises every project.
type AggregateStats struct {
	TotalProjects        int              `json:"total_projects"`
	TotalDocuments       int              `json:"total_documents"`
	ByType               map[string]int   `json:"by_type"`
	ByStatus             map[string]int   `json:"by_status"`
	CompletionPercentage float64          `json:"completion_percentage"`
	Projects             []ProjectSummary `json:"projects"`
}

// doneStatus is the only story status counted as complete.
const doneStatus = "Done"

type countRow struct {
	Key   sql.NullString `db:"grp"`
	Count int            `db:"n"`
}

// ProjectStats computes counts by type and status plus the share of
// stories that are Done, rounded to one decimal place.
func (s *Store) ProjectStats(ctx context.Context, p *document.Project) (*ProjectStats, error) {
	stats := &ProjectStats{
		Slug:         p.Slug,
		Name:         p.Name,
		ByType:       map[string]int{},
		ByStatus:     map[string]int{},
		LastSyncedAt: p.LastSyncedAt,
	}

	var byType []countRow
	if err := s.db.SelectContext(ctx, &byType,
		`SELECT doc_type AS grp, COUNT(*) AS n FROM documents WHERE project_id = ? GROUP BY doc_type`, p.ID); err != nil {
		return nil, fmt.Errorf("failed to count documents by type: %w", err)
	}
	for _, r := range byType {
		stats.ByType[r.Key.String] = r.Count
		stats.TotalDocuments += r.Count
	}

	var byStatus []countRow
	if err := s.db.SelectContext(ctx, &byStatus,
		`SELECT status AS grp, COUNT(*) AS n FROM documents WHERE project_id = ? GROUP BY status`, p.ID); err != nil {
		return nil, fmt.Errorf("failed to count documents by status: %w", err)
	}
	for _, r := range byStatus {
		key := "null"
		if r.Key.Valid {
			key = r.Key.String
		}
		stats.ByStatus[key] = r.Count
	}

	var stories []countRow
	if err := s.db.SelectContext(ctx, &stories,
		`SELECT status AS grp, COUNT(*) AS n FROM documents WHERE project_id = ? AND doc_type = ? GROUP BY status`,
		p.ID, string(document.TypeStory)); err != nil {
		return nil, fmt.Errorf("failed to count stories: %w", err)
	}
	for _, r := range stories {
		stats.storyCount += r.Count
		if r.Key.Valid && r.Key.String == doneStatus {
			stats.doneCount += r.Count
		}
	}
	stats.CompletionPercentage = percentage(stats.doneCount, stats.storyCount)

	return stats, nil
}

// AggregateStats combines ProjectStats across all projects. Completion is
// weighted by story count.
func (s *Store) AggregateStats(ctx context.Context) (*AggregateStats, error) {
	projects, err := s.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	agg := &AggregateStats{
		TotalProjects: len(projects),
		ByType:        map[string]int{},
		ByStatus:      map[string]int{},
		Projects:      []ProjectSummary{},
	}

	var stories, done int
	for _, p := range projects {
		ps, err := s.ProjectStats(ctx, p)
		if err != nil {
			return nil, err
		}
		agg.TotalDocuments += ps.TotalDocuments
		for k, v := range ps.ByType {
			agg.ByType[k] += v
		}
		for k, v := range ps.ByStatus {
			agg.ByStatus[k] += v
		}
		stories += ps.storyCount
		done += ps.doneCount

		agg.Projects = append(agg.Projects, ProjectSummary{
			Slug:                 ps.Slug,
			Name:                 ps.Name,
			TotalDocuments:       ps.TotalDocuments,
			CompletionPercentage: ps.CompletionPercentage,
			LastSyncedAt:         ps.LastSyncedAt,
		})
	}
	agg.CompletionPercentage = percentage(done, stories)

	return agg, nil
}

func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
