package document

import (
	"fmt"
	"time"
)

// Default remote source settings applied when a GitHub project omits them.
const (
	DefaultBranch   = "main"
	DefaultRepoPath = "sdlc-studio"
)

// Project is a registered documentation source.
type Project struct {
	ID         int64      `json:"-"`
	Slug       string     `json:"slug"`
	Name       string     `json:"name"`
	SourceType SourceType `json:"source_type"`

	// SDLCPath is the absolute root of a local project.
	SDLCPath string `json:"sdlc_path,omitempty"`

	// Remote source settings; AccessToken is never serialised.
	RepoURL     string `json:"repo_url,omitempty"`
	RepoBranch  string `json:"repo_branch,omitempty"`
	RepoPath    string `json:"repo_path,omitempty"`
	AccessToken string `json:"-"`

	SyncStatus   SyncStatus `json:"sync_status"`
	SyncError    *string    `json:"sync_error"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Validate checks the project's source configuration.
func (p *Project) Validate() error {
	if p.Slug == "" {
		return fmt.Errorf("slug is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Name) > 200 {
		return fmt.Errorf("name must be 200 characters or less (got %d)", len(p.Name))
	}
	switch p.SourceType {
	case SourceLocal:
		if p.SDLCPath == "" {
			return fmt.Errorf("sdlc_path is required for local projects")
		}
	case SourceGitHub:
		if p.RepoURL == "" {
			return fmt.Errorf("repo_url is required for github projects")
		}
	default:
		return fmt.Errorf("invalid source_type: %q", p.SourceType)
	}
	return nil
}

// HasAccessToken reports whether a credential is configured.
func (p *Project) HasAccessToken() bool {
	return p.AccessToken != ""
}

// MaskedToken returns the access token with all but its last four
// characters hidden, or nil when no token is set. Tokens of four characters
// or fewer are hidden entirely.
func (p *Project) MaskedToken() *string {
	if p.AccessToken == "" {
		return nil
	}
	masked := "****"
	if len(p.AccessToken) > 4 {
		masked += p.AccessToken[len(p.AccessToken)-4:]
	}
	return &masked
}
