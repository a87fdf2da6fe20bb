package source

import (
	"net/url"
	"os"
	"strings"
)

// Config selects and configures a collector. It is either Local or Remote.
type Config interface {
	// Describe returns a short human-readable description for logs.
	Describe() string
	isConfig()
}

// Local is a directory on this machine.
type Local struct {
	Path string
}

// Remote is a subdirectory of a branch in a hosted repository.
type Remote struct {
	URL     string
	Branch  string
	Subpath string
	Token   string
}

func (Local) isConfig()  {}
func (Remote) isConfig() {}

func (l Local) Describe() string { return l.Path }

func (r Remote) Describe() string {
	return r.URL + "@" + r.Branch + ":" + r.Subpath
}

// Validate checks that cfg is addressable without doing any collection:
// a local root must exist and be a directory, a remote must have a URL.
func Validate(cfg Config) error {
	switch c := cfg.(type) {
	case Local:
		if c.Path == "" {
			return newError(ErrNotConfigured, "No sdlc_path configured for local project")
		}
		info, err := os.Stat(c.Path)
		if err != nil || !info.IsDir() {
			return newError(ErrPathNotFound, "Path not found: %s", c.Path)
		}
		return nil
	case Remote:
		if c.URL == "" {
			return newError(ErrNotConfigured, "No repo_url configured for GitHub project")
		}
		return nil
	default:
		return newError(ErrNotConfigured, "Unknown source type: %T", cfg)
	}
}

// ParseRepoURL extracts owner and repository from a URL such as
// https://github.com/owner/repo(.git)(/). Any host is accepted; only the
// path shape is checked.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	u, parseErr := url.Parse(raw)
	if parseErr != nil || u.Scheme == "" || u.Host == "" {
		return "", "", newError(ErrInvalidRepoURL, "Invalid URL: %s", raw)
	}

	path := strings.Trim(u.Path, "/")
	path = strings.TrimSuffix(path, ".git")

	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", newError(ErrInvalidRepoURL, "Cannot extract owner/repo from URL: %s", raw)
	}
	return parts[0], parts[1], nil
}
