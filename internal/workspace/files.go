package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Entry is one child in a directory listing.
type Entry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

// Listing is the result of listing a directory, or a file when the path
// names one.
type Listing struct {
	Type  string
	Name  string
	Path  string
	Items []Entry
}

// IsFile reports whether the listing describes a single file.
func (l Listing) IsFile() bool {
	return l.Type == "file"
}

// MarshalJSON encodes a file as {"type","name"} and a directory as
// {"path","items"}.
func (l Listing) MarshalJSON() ([]byte, error) {
	if l.IsFile() {
		return json.Marshal(struct {
			Type string `json:"type"`
			Name string `json:"name"`
		}{l.Type, l.Name})
	}
	items := l.Items
	if items == nil {
		items = []Entry{}
	}
	return json.Marshal(struct {
		Path  string  `json:"path"`
		Items []Entry `json:"items"`
	}{l.Path, items})
}

// FileInfo describes a regular file for reading.
type FileInfo struct {
	Path     string    `json:"path"`
	Abs      string    `json:"-"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
	MimeType string    `json:"mime_type"`
}

// List describes p. A file yields {type: "file", name}; a directory yields
// its children sorted by name, echoing p as given.
func (w *Workspace) List(p string) (Listing, error) {
	abs, err := w.Resolve(p)
	if err != nil {
		return Listing{}, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Listing{}, ErrNotFound
		}
		return Listing{}, fmt.Errorf("stat %s: %w", p, err)
	}
	if !info.IsDir() {
		return Listing{Type: "file", Name: info.Name()}, nil
	}

	dirents, err := os.ReadDir(abs)
	if err != nil {
		return Listing{}, fmt.Errorf("read dir %s: %w", p, err)
	}

	items := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		isDir := d.IsDir()
		if d.Type()&fs.ModeSymlink != 0 {
			if target, err := os.Stat(filepath.Join(abs, d.Name())); err == nil {
				isDir = target.IsDir()
			}
		}
		items = append(items, Entry{Name: d.Name(), IsDir: isDir})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	return Listing{Path: p, Items: items}, nil
}

// Stat returns metadata for a regular file, including its detected MIME
// type. Directories and missing paths yield ErrNotFound.
func (w *Workspace) Stat(p string) (FileInfo, error) {
	abs, err := w.Resolve(p)
	if err != nil {
		return FileInfo{}, err
	}

	info, err := os.Stat(abs)
	if err != nil || !info.Mode().IsRegular() {
		return FileInfo{}, ErrNotFound
	}

	mime := "application/octet-stream"
	if mtype, err := mimetype.DetectFile(abs); err == nil {
		mime = mtype.String()
	}

	return FileInfo{
		Path:     p,
		Abs:      abs,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		MimeType: mime,
	}, nil
}

// Write stores content at p, creating missing parent directories.
func (w *Workspace) Write(p, content string) error {
	if p == "" {
		return ErrPathRequired
	}
	abs, err := w.Resolve(p)
	if err != nil {
		return err
	}
	if abs == w.root {
		return ErrInvalidPath
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", p, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}
