// Package source collects markdown files from a project's configured
// source. Both collectors produce the same Collection: an ordered set of
// source-relative paths with their content hash and raw bytes.
package source

// File is one collected markdown file.
type File struct {
	// Path is relative to the source root and slash separated.
	Path string
	// Hash is the SHA-256 hex digest of Raw.
	Hash string
	Raw  []byte
}

// Collection is the result of one collection pass. Files keep the order in
// which they were found.
type Collection struct {
	Files []File
	// Errors counts files that could not be read and were omitted.
	Errors int

	index map[string]int
}

func newCollection() *Collection {
	return &Collection{index: make(map[string]int)}
}

// add inserts f, replacing an earlier file with the same path in place.
func (c *Collection) add(f File) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if i, ok := c.index[f.Path]; ok {
		c.Files[i] = f
		return
	}
	c.index[f.Path] = len(c.Files)
	c.Files = append(c.Files, f)
}

// Has reports whether path was collected.
func (c *Collection) Has(path string) bool {
	if c.index == nil {
		for _, f := range c.Files {
			if f.Path == path {
				return true
			}
		}
		return false
	}
	_, ok := c.index[path]
	return ok
}

// Len returns the number of collected files.
func (c *Collection) Len() int {
	return len(c.Files)
}
