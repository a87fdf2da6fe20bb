package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ncruces/go-sqlite3"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/document"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/slug"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/source"
)

// projectRow is the projects table as scanned by sqlx.
type projectRow struct {
	ID           int64          `db:"id"`
	Slug         string         `db:"slug"`
	Name         string         `db:"name"`
	SourceType   string         `db:"source_type"`
	SDLCPath     sql.NullString `db:"sdlc_path"`
	RepoURL      sql.NullString `db:"repo_url"`
	RepoBranch   string         `db:"repo_branch"`
	RepoPath     string         `db:"repo_path"`
	AccessToken  sql.NullString `db:"access_token"`
	SyncStatus   string         `db:"sync_status"`
	SyncError    sql.NullString `db:"sync_error"`
	LastSyncedAt sql.NullString `db:"last_synced_at"`
	CreatedAt    string         `db:"created_at"`
	UpdatedAt    string         `db:"updated_at"`
}

const projectColumns = `id, slug, name, source_type, sdlc_path, repo_url, repo_branch, repo_path,
	access_token, sync_status, sync_error, last_synced_at, created_at, updated_at`

func (r *projectRow) toProject() *document.Project {
	p := &document.Project{
		ID:          r.ID,
		Slug:        r.Slug,
		Name:        r.Name,
		SourceType:  document.SourceType(r.SourceType),
		SDLCPath:    r.SDLCPath.String,
		RepoURL:     r.RepoURL.String,
		RepoBranch:  r.RepoBranch,
		RepoPath:    r.RepoPath,
		AccessToken: r.AccessToken.String,
		SyncStatus:  document.SyncStatus(r.SyncStatus),
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
	if r.SyncError.Valid {
		msg := r.SyncError.String
		p.SyncError = &msg
	}
	if r.LastSyncedAt.Valid {
		t := parseTime(r.LastSyncedAt.String)
		p.LastSyncedAt = &t
	}
	return p
}

// NewProject describes a project to register.
type NewProject struct {
	Name       string
	SourceType document.SourceType

	// Local source.
	SDLCPath string

	// Remote source.
	RepoURL     string
	RepoBranch  string
	RepoPath    string
	AccessToken string
}

// CreateProject registers a project. The slug is derived from the name;
// local paths are resolved to absolute directories.
func (s *Store) CreateProject(ctx context.Context, in NewProject) (*document.Project, error) {
	projectSlug := slug.Generate(in.Name)
	if projectSlug == "" {
		return nil, ErrEmptySlug
	}

	if in.SourceType == "" {
		in.SourceType = document.SourceLocal
	}

	p := &document.Project{
		Slug:        projectSlug,
		Name:        strings.TrimSpace(in.Name),
		SourceType:  in.SourceType,
		RepoURL:     in.RepoURL,
		RepoBranch:  in.RepoBranch,
		RepoPath:    in.RepoPath,
		AccessToken: in.AccessToken,
		SyncStatus:  document.StatusNeverSynced,
	}
	if p.RepoBranch == "" {
		p.RepoBranch = document.DefaultBranch
	}
	if p.RepoPath == "" {
		p.RepoPath = document.DefaultRepoPath
	}

	switch in.SourceType {
	case document.SourceLocal:
		resolved, err := resolveDir(in.SDLCPath)
		if err != nil {
			return nil, err
		}
		p.SDLCPath = resolved
	case document.SourceGitHub:
		if _, _, err := source.ParseRepoURL(in.RepoURL); err != nil {
			return nil, err
		}
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project: %w", err)
	}

	var exists int
	if err := s.db.GetContext(ctx, &exists, `SELECT COUNT(*) FROM projects WHERE slug = ?`, p.Slug); err != nil {
		return nil, fmt.Errorf("failed to check slug %s: %w", p.Slug, err)
	}
	if exists > 0 {
		return nil, ErrSlugConflict
	}

	now := s.now()
	p.CreatedAt = now
	p.UpdatedAt = now

	query := `
	INSERT INTO projects (
		slug, name, source_type, sdlc_path, repo_url, repo_branch, repo_path,
		access_token, sync_status, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		p.Slug,
		p.Name,
		string(p.SourceType),
		nullIfEmpty(p.SDLCPath),
		nullIfEmpty(p.RepoURL),
		p.RepoBranch,
		p.RepoPath,
		nullIfEmpty(p.AccessToken),
		string(p.SyncStatus),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		if errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) {
			return nil, ErrSlugConflict
		}
		return nil, fmt.Errorf("failed to insert project %s: %w", p.Slug, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read project id: %w", err)
	}
	p.ID = id
	return p, nil
}

// ListProjects returns every project in creation order.
func (s *Store) ListProjects(ctx context.Context) ([]*document.Project, error) {
	var rows []projectRow
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at, id`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	projects := make([]*document.Project, 0, len(rows))
	for i := range rows {
		projects = append(projects, rows[i].toProject())
	}
	return projects, nil
}

// GetProject returns the project with the given slug.
func (s *Store) GetProject(ctx context.Context, projectSlug string) (*document.Project, error) {
	var row projectRow
	query := `SELECT ` + projectColumns + ` FROM projects WHERE slug = ?`
	if err := s.db.GetContext(ctx, &row, query, projectSlug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project %s: %w", projectSlug, err)
	}
	return row.toProject(), nil
}

// ProjectUpdate holds optional changes; nil fields are left unchanged.
type ProjectUpdate struct {
	Name        *string
	SDLCPath    *string
	RepoURL     *string
	RepoBranch  *string
	RepoPath    *string
	AccessToken *string
}

// UpdateProject applies changes to an existing project. The slug is kept
// even when the name changes so that links stay stable.
func (s *Store) UpdateProject(ctx context.Context, projectSlug string, upd ProjectUpdate) (*document.Project, error) {
	p, err := s.GetProject(ctx, projectSlug)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		p.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.SDLCPath != nil {
		if p.SourceType == document.SourceLocal {
			resolved, err := resolveDir(*upd.SDLCPath)
			if err != nil {
				return nil, err
			}
			p.SDLCPath = resolved
		} else {
			p.SDLCPath = *upd.SDLCPath
		}
	}
	if upd.RepoURL != nil {
		if _, _, err := source.ParseRepoURL(*upd.RepoURL); err != nil {
			return nil, err
		}
		p.RepoURL = *upd.RepoURL
	}
	if upd.RepoBranch != nil {
		p.RepoBranch = *upd.RepoBranch
	}
	if upd.RepoPath != nil {
		p.RepoPath = *upd.RepoPath
	}
	if upd.AccessToken != nil {
		p.AccessToken = *upd.AccessToken
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid project: %w", err)
	}

	p.UpdatedAt = s.now()
	query := `
	UPDATE projects SET
		name = ?, sdlc_path = ?, repo_url = ?, repo_branch = ?, repo_path = ?,
		access_token = ?, updated_at = ?
	WHERE id = ?
	`
	if _, err := s.db.ExecContext(ctx, query,
		p.Name,
		nullIfEmpty(p.SDLCPath),
		nullIfEmpty(p.RepoURL),
		p.RepoBranch,
		p.RepoPath,
		nullIfEmpty(p.AccessToken),
		formatTime(p.UpdatedAt),
		p.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to update project %s: %w", projectSlug, err)
	}
	return p, nil
}

// DeleteProject removes a project and, by cascade, its documents.
func (s *Store) DeleteProject(ctx context.Context, projectSlug string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE slug = ?`, projectSlug)
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", projectSlug, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrProjectNotFound
	}

	if err := s.RebuildSearchIndex(ctx); err != nil {
		s.logger.Printf("Warning: search index rebuild after deleting %s failed: %v", projectSlug, err)
	}
	return nil
}

// DocumentCount returns the number of documents in a project.
func (s *Store) DocumentCount(ctx context.Context, projectID int64) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM documents WHERE project_id = ?`, projectID); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// StartSync atomically moves a project to syncing. It fails with
// ErrSyncInProgress when the project is already syncing, so two
// concurrent triggers can never both succeed.
func (s *Store) StartSync(ctx context.Context, projectSlug string) (*document.Project, error) {
	res, err := s.db.ExecContext(ctx, `
	UPDATE projects
	SET sync_status = ?, sync_error = NULL, updated_at = ?
	WHERE slug = ? AND sync_status != ?
	`, string(document.StatusSyncing), formatTime(s.now()), projectSlug, string(document.StatusSyncing))
	if err != nil {
		return nil, fmt.Errorf("failed to start sync for %s: %w", projectSlug, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.GetProject(ctx, projectSlug); err != nil {
			return nil, err
		}
		return nil, ErrSyncInProgress
	}

	return s.GetProject(ctx, projectSlug)
}

// SetSyncStatus records a status transition outside of a reconciliation
// batch. A nil message clears sync_error.
func (s *Store) SetSyncStatus(ctx context.Context, projectID int64, status document.SyncStatus, message *string) error {
	var msg any
	if message != nil {
		msg = *message
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE projects SET sync_status = ?, sync_error = ?, updated_at = ? WHERE id = ?`,
		string(status), msg, formatTime(s.now()), projectID,
	)
	if err != nil {
		return fmt.Errorf("failed to set sync status: %w", err)
	}
	return nil
}

// resolveDir returns the absolute form of path, which must be an existing
// directory.
func resolveDir(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: sdlc_path is required for local projects", source.ErrPathNotFound)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", source.ErrPathNotFound, path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", source.ErrPathNotFound, path)
	}
	return abs, nil
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
