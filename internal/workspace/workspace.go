package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidPath is returned for paths that resolve outside the root.
	ErrInvalidPath = errors.New("invalid path")
	// ErrNotFound is returned when the target does not exist or has the
	// wrong type for the operation.
	ErrNotFound = errors.New("not found")
	// ErrPathRequired is returned when a write names no path.
	ErrPathRequired = errors.New("path required")
)

// Workspace is a directory tree that file operations are confined to.
type Workspace struct {
	root     string
	excludes []string
}

// New opens the workspace rooted at root. The root is made absolute and
// symlink-free so containment checks compare canonical paths.
func New(root string, excludes ...string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("workspace root %q: %w", root, err)
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace root %q: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("workspace root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %q is not a directory", root)
	}

	if len(excludes) == 0 {
		excludes = DefaultExcludes
	}
	return &Workspace{root: abs, excludes: excludes}, nil
}

// Root returns the canonical root directory.
func (w *Workspace) Root() string {
	return w.root
}

// Resolve maps a client path to an absolute path inside the root.
// Relative paths are taken from the root; absolute paths are accepted only
// when they already lie inside it. Symlinks in the existing part of the
// path are followed before the containment check, so a link pointing out of
// the workspace is rejected.
func (w *Workspace) Resolve(p string) (string, error) {
	var target string
	if filepath.IsAbs(p) {
		target = filepath.Clean(p)
	} else {
		target = filepath.Join(w.root, p)
	}

	resolved, err := resolveExisting(target)
	if err != nil {
		return "", err
	}
	if !w.contains(resolved) {
		return "", ErrInvalidPath
	}
	return resolved, nil
}

// Rel returns abs relative to the root, using forward slashes.
func (w *Workspace) Rel(abs string) string {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

func (w *Workspace) contains(p string) bool {
	if p == w.root {
		return true
	}
	return strings.HasPrefix(p, w.root+string(filepath.Separator))
}

// resolveExisting evaluates symlinks in the longest existing prefix of p and
// appends the remainder unchanged.
func resolveExisting(p string) (string, error) {
	var rest []string
	current := p
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(rest) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, rest[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}

		parent := filepath.Dir(current)
		if parent == current {
			return p, nil
		}
		rest = append(rest, filepath.Base(current))
		current = parent
	}
}
