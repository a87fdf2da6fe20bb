package source

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/contenthash"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/inference"
)

// API request headers sent with every archive download.
const (
	acceptHeader     = "application/vnd.github.v3+json"
	apiVersionHeader = "2022-11-28"
)

// collectRemote downloads the branch snapshot in one request and extracts
// the markdown files under the configured subpath.
func (c *Collector) collectRemote(ctx context.Context, src Remote) (*Collection, error) {
	owner, repo, err := ParseRepoURL(src.URL)
	if err != nil {
		return nil, err
	}

	branch := src.Branch
	if branch == "" {
		branch = "main"
	}
	subpath := strings.Trim(src.Subpath, "/")

	tarballURL := fmt.Sprintf("%s/repos/%s/%s/tarball/%s", strings.TrimRight(c.apiBase, "/"), owner, repo, branch)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tarballURL, nil)
	if err != nil {
		return nil, wrapError(ErrSource, err, "Invalid tarball request: %v", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersionHeader)
	if src.Token != "" {
		req.Header.Set("Authorization", "Bearer "+src.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	col, err := extractMarkdown(resp.Body, subpath)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, wrapError(ErrSource, err, "Timeout downloading repository tarball: %v", err)
		}
		return nil, wrapError(ErrSource, err, "Cannot read repository tarball: %v", err)
	}

	c.logger.Printf("Found %d .md files in %s/%s (branch: %s, path: %s)", col.Len(), owner, repo, branch, subpath)
	return col, nil
}

// transportError maps a failed request to a generic source error.
func transportError(err error) *Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return wrapError(ErrSource, err, "Timeout downloading repository tarball: %v", err)
	}
	return wrapError(ErrSource, err, "Cannot connect to GitHub API: %v", err)
}

// checkStatus translates non-2xx responses into source error kinds.
func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code == http.StatusNotFound:
		return newError(ErrRepoNotFound, "Repository not found (HTTP %d)", code)
	case code == http.StatusUnauthorized:
		return newError(ErrAuthentication, "Authentication failed - check your access token")
	case code == http.StatusForbidden:
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return newError(ErrRateLimited, "GitHub API rate limit exceeded - use an access token for higher limits")
		}
		return newError(ErrAuthentication, "Access denied (HTTP 403) - repository may be private")
	case code >= 400:
		return newError(ErrSource, "GitHub API error: HTTP %d", code)
	}
	return nil
}

// extractMarkdown reads a gzip-compressed tar stream. The archive's single
// top-level directory and the subpath prefix are stripped from each entry;
// only regular .md files inside subpath are kept.
func extractMarkdown(r io.Reader, subpath string) (*Collection, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	prefix := ""
	if subpath != "" {
		prefix = subpath + "/"
	}

	col := newCollection()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || !IsMarkdown(hdr.Name) {
			continue
		}

		_, inner, found := strings.Cut(hdr.Name, "/")
		if !found {
			continue
		}
		if prefix != "" && !strings.HasPrefix(inner, prefix) {
			continue
		}
		rel := strings.TrimPrefix(inner, prefix)
		if rel == "" || path.Base(rel) == inference.IndexFile {
			continue
		}

		raw, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", hdr.Name, err)
		}
		col.add(File{Path: rel, Hash: contenthash.Sum(raw), Raw: raw})
	}

	return col, nil
}
