// Package pathguard confines file paths from tool requests to one directory.
package pathguard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Guard resolves request paths against a root directory
type Guard struct {
	root string
}

// New creates a guard for dir. The directory must exist.
func New(dir string) (*Guard, error) {
	if dir == "" {
		return nil, fmt.Errorf("root directory cannot be empty")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot access root directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", dir)
	}

	return &Guard{root: filepath.Clean(abs)}, nil
}

// Root returns the confining directory
func (g *Guard) Root() string {
	return g.root
}

// Resolve returns the absolute form of path. Relative paths are taken
// relative to the root. The result, with symlinks resolved, must stay inside
// the root; the file itself does not have to exist yet.
func (g *Guard) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("path contains a null byte")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(g.root, path)
	}
	clean := filepath.Clean(path)

	if !within(g.realRoot(), realPath(clean)) {
		return "", fmt.Errorf("path is outside configured directory: %s", path)
	}
	return clean, nil
}

func (g *Guard) realRoot() string {
	if resolved, err := filepath.EvalSymlinks(g.root); err == nil {
		return resolved
	}
	return g.root
}

// realPath resolves symlinks of the longest existing prefix of path, so a
// file that will be created is judged by the directory it lands in.
func realPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	parent := filepath.Dir(path)
	if parent == path {
		return path
	}
	return filepath.Join(realPath(parent), filepath.Base(path))
}

func within(dir, path string) bool {
	if path == dir {
		return true
	}
	prefix := dir
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
