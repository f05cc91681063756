package workspace

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"README.md":               "# demo\n",
		"src/main.go":             "package main\n",
		"src/util/strings.go":     "package util\n",
		"public/index.html":       "<!doctype html><html></html>",
		".git/HEAD":               "ref: refs/heads/main\n",
		"node_modules/x/index.js": "module.exports = 1\n",
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	ws, err := New(root)
	require.NoError(t, err)
	return ws
}

func TestNewRejectsBadRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = New(file)
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	ws := newTestWorkspace(t)

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{"empty is root", "", ws.Root(), nil},
		{"dot is root", ".", ws.Root(), nil},
		{"relative file", "src/main.go", filepath.Join(ws.Root(), "src", "main.go"), nil},
		{"missing file", "new/file.txt", filepath.Join(ws.Root(), "new", "file.txt"), nil},
		{"inner dotdot", "src/../README.md", filepath.Join(ws.Root(), "README.md"), nil},
		{"absolute inside", filepath.Join(ws.Root(), "src"), filepath.Join(ws.Root(), "src"), nil},
		{"escape", "../outside.txt", "", ErrInvalidPath},
		{"deep escape", "src/../../../etc/passwd", "", ErrInvalidPath},
		{"absolute outside", "/etc/passwd", "", ErrInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ws.Resolve(tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveRejectsEscapingSymlink(t *testing.T) {
	ws := newTestWorkspace(t)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(ws.Root(), "escape")))

	_, err := ws.Resolve("escape/secret.txt")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = ws.Resolve("escape")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestListDirectory(t *testing.T) {
	ws := newTestWorkspace(t)

	listing, err := ws.List("src")
	require.NoError(t, err)
	assert.False(t, listing.IsFile())
	assert.Equal(t, "src", listing.Path)
	assert.Equal(t, []Entry{
		{Name: "main.go", IsDir: false},
		{Name: "util", IsDir: true},
	}, listing.Items)
}

func TestListRootIsSorted(t *testing.T) {
	ws := newTestWorkspace(t)

	listing, err := ws.List("")
	require.NoError(t, err)

	var names []string
	for _, item := range listing.Items {
		names = append(names, item.Name)
	}
	assert.Equal(t, []string{".git", "README.md", "node_modules", "public", "src"}, names)
}

func TestListFile(t *testing.T) {
	ws := newTestWorkspace(t)

	listing, err := ws.List("src/main.go")
	require.NoError(t, err)
	assert.True(t, listing.IsFile())
	assert.Equal(t, Listing{Type: "file", Name: "main.go"}, listing)
}

func TestListErrors(t *testing.T) {
	ws := newTestWorkspace(t)

	_, err := ws.List("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ws.List("../")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestStat(t *testing.T) {
	ws := newTestWorkspace(t)

	info, err := ws.Stat("public/index.html")
	require.NoError(t, err)
	assert.Equal(t, "public/index.html", info.Path)
	assert.Equal(t, int64(len("<!doctype html><html></html>")), info.Size)
	assert.Contains(t, info.MimeType, "text/html")

	_, err = ws.Stat("src")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ws.Stat("missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWrite(t *testing.T) {
	ws := newTestWorkspace(t)

	require.NoError(t, ws.Write("notes/today/todo.txt", "héllo"))
	data, err := os.ReadFile(filepath.Join(ws.Root(), "notes", "today", "todo.txt"))
	require.NoError(t, err)
	assert.Equal(t, "héllo", string(data))

	require.NoError(t, ws.Write("README.md", ""))
	data, err = os.ReadFile(filepath.Join(ws.Root(), "README.md"))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestWriteErrors(t *testing.T) {
	ws := newTestWorkspace(t)

	assert.ErrorIs(t, ws.Write("", "x"), ErrPathRequired)
	assert.ErrorIs(t, ws.Write("../evil.txt", "x"), ErrInvalidPath)
	assert.ErrorIs(t, ws.Write(".", "x"), ErrInvalidPath)
}

func TestTree(t *testing.T) {
	ws := newTestWorkspace(t)

	entries, err := ws.Tree(context.Background(), "", 0)
	require.NoError(t, err)

	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{
		"README.md",
		"public",
		"public/index.html",
		"src",
		"src/main.go",
		"src/util",
		"src/util/strings.go",
	}, paths)
}

func TestTreeDepth(t *testing.T) {
	ws := newTestWorkspace(t)

	entries, err := ws.Tree(context.Background(), "src", 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "src/main.go", entries[0].Path)
	assert.Equal(t, int64(len("package main\n")), entries[0].Size)
	assert.Equal(t, TreeEntry{Path: "src/util", IsDir: true}, entries[1])

	_, err = ws.Tree(context.Background(), "README.md", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTreeCancelled(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ws.Tree(ctx, "", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch(t *testing.T) {
	ws := newTestWorkspace(t)

	matches, err := ws.Search(context.Background(), "**/*.go")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.go", "src/util/strings.go"}, matches)

	matches, err = ws.Search(context.Background(), "**/index.*")
	require.NoError(t, err)
	assert.Equal(t, []string{"public/index.html"}, matches)

	_, err = ws.Search(context.Background(), "[")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestMatchAny(t *testing.T) {
	tests := []struct {
		rel  string
		want bool
	}{
		{".git", true},
		{"sub/.git", true},
		{"a/b/node_modules", true},
		{"src", false},
		{"src/main.go", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchAny(DefaultExcludes, tt.rel))
		})
	}
}

func TestListingJSON(t *testing.T) {
	data, err := json.Marshal(Listing{Type: "file", Name: "a.txt"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"file","name":"a.txt"}`, string(data))

	data, err = json.Marshal(Listing{Path: "empty"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"path":"empty","items":[]}`, string(data))
}
