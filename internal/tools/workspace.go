package tools

import (
	"path/filepath"
	"strings"
)

// Workspace anchors relative tool paths. An empty Root means the process
// working directory.
type Workspace struct {
	Root string
}

// Resolve returns path as an absolute, cleaned path. Relative paths are
// joined onto Root.
func (w Workspace) Resolve(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "."
	}
	if !filepath.IsAbs(path) {
		root := strings.TrimSpace(w.Root)
		if root == "" {
			root = "."
		}
		path = filepath.Join(root, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Rel renders path relative to Root for display, falling back to path.
func (w Workspace) Rel(path string) string {
	root := strings.TrimSpace(w.Root)
	if root == "" {
		return filepath.ToSlash(path)
	}
	rootAbs := w.Resolve(root)
	rel, err := filepath.Rel(rootAbs, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
