package workspace

import (
	"path"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludes are skipped by Tree and the watcher.
var DefaultExcludes = []string{
	"**/.git",
	"**/node_modules",
	"**/__pycache__",
	"**/.venv",
	"**/dist",
}

// Excluded reports whether the slash-separated relative path matches an
// exclude pattern.
func (w *Workspace) Excluded(rel string) bool {
	return MatchAny(w.excludes, rel)
}

// MatchAny reports whether rel or its base name matches any pattern.
func MatchAny(patterns []string, rel string) bool {
	if rel == "" || rel == "." {
		return false
	}
	base := path.Base(rel)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
