package source

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/DarrenBenson/sdlc-studio-lens/internal/contenthash"
	"github.com/DarrenBenson/sdlc-studio-lens/internal/inference"
)

// excludedDirs are never descended into. Any other directory whose name
// starts with a dot is skipped as well.
var excludedDirs = map[string]bool{
	".venv":         true,
	".git":          true,
	".hg":           true,
	".svn":          true,
	"__pycache__":   true,
	"node_modules":  true,
	".tox":          true,
	".mypy_cache":   true,
	".pytest_cache": true,
	".ruff_cache":   true,
	"dist":          true,
	"build":         true,
	".eggs":         true,
}

// SkipDir reports whether a directory with this name is excluded from
// collection and watching.
func SkipDir(name string) bool {
	return excludedDirs[name] || strings.HasPrefix(name, ".")
}

// IsMarkdown reports whether the base name of name has the collected
// extension and a non-empty stem. A file named just ".md" is not markdown.
func IsMarkdown(name string) bool {
	base := path.Base(filepath.ToSlash(name))
	return len(base) > len(".md") && strings.HasSuffix(base, ".md")
}

// collectLocal walks root in lexical order. Unreadable files and
// directories are counted and skipped.
func (c *Collector) collectLocal(root string) (*Collection, error) {
	col := newCollection()

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			c.logger.Printf("Warning: cannot read %s: %v", path, walkErr)
			col.Errors++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !IsMarkdown(d.Name()) || d.Name() == inference.IndexFile {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			c.logger.Printf("Warning: cannot read %s: %v", path, err)
			col.Errors++
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			col.Errors++
			return nil
		}

		col.add(File{
			Path: filepath.ToSlash(rel),
			Hash: contenthash.Sum(raw),
			Raw:  raw,
		})
		return nil
	})
	if err != nil {
		return nil, wrapError(ErrPathNotFound, err, "Cannot read %s: %v", root, err)
	}

	return col, nil
}
