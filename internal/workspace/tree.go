package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
)

// MaxSearchResults caps the matches returned by Search.
const MaxSearchResults = 1000

// TreeEntry is one node found by Tree.
type TreeEntry struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
	Depth int    `json:"depth"`
}

// Tree walks the directory at p up to depth levels below it (0 means
// unlimited), skipping excluded entries. Results are sorted by path.
func (w *Workspace) Tree(ctx context.Context, p string, depth int) ([]TreeEntry, error) {
	abs, err := w.Resolve(p)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, ErrNotFound
	}

	var (
		mu      sync.Mutex
		entries []TreeEntry
	)

	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, abs, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || path == abs {
			return nil
		}

		if w.Excluded(w.Rel(path)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, _ := filepath.Rel(abs, path)
		level := strings.Count(rel, string(filepath.Separator))
		if depth > 0 && level >= depth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		var size int64
		if !d.IsDir() {
			if fi, err := d.Info(); err == nil {
				size = fi.Size()
			}
		}

		mu.Lock()
		entries = append(entries, TreeEntry{
			Path:  w.Rel(path),
			IsDir: d.IsDir(),
			Size:  size,
			Depth: level,
		})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", p, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Search returns workspace paths matching a doublestar pattern such as
// "**/*.go", relative to the root and sorted. Excluded paths are dropped.
func (w *Workspace) Search(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" || !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: bad pattern %q", ErrInvalidPath, pattern)
	}
	pattern = strings.TrimPrefix(pattern, "/")

	var (
		matches   []string
		truncated = errors.New("truncated")
	)
	err := doublestar.GlobWalk(os.DirFS(w.root), pattern, func(path string, d fs.DirEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if excludedPrefix(w, path) {
			return nil
		}
		matches = append(matches, path)
		if len(matches) >= MaxSearchResults {
			return truncated
		}
		return nil
	})
	if err != nil && !errors.Is(err, truncated) {
		return nil, fmt.Errorf("search %q: %w", pattern, err)
	}

	sort.Strings(matches)
	return matches, nil
}

// excludedPrefix reports whether rel or any of its parent directories is
// excluded.
func excludedPrefix(w *Workspace, rel string) bool {
	parts := strings.Split(rel, "/")
	for i := range parts {
		if w.Excluded(strings.Join(parts[:i+1], "/")) {
			return true
		}
	}
	return false
}
