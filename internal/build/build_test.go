package build

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuild(t *testing.T) {
	src := filepath.Join(t.TempDir(), "public")
	dest := filepath.Join(t.TempDir(), "dist")

	bigJS := strings.Repeat("console.log('hello world');\n", 100)
	writeFile(t, filepath.Join(src, "index.html"), "<!doctype html>")
	writeFile(t, filepath.Join(src, "js", "app.js"), bigJS)
	writeFile(t, filepath.Join(src, "img", "logo.png"), strings.Repeat("\x89PNG", 200))

	now := time.Date(2024, 3, 9, 14, 5, 6, 789_000_000, time.FixedZone("CET", 3600))
	result, err := Build(src, dest, now)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Files)
	assert.Equal(t, 1, result.Compressed)
	assert.Equal(t, "Built at 2024-03-09T13:05:06.789Z\n", result.Stamp)

	stamp, err := os.ReadFile(filepath.Join(dest, StampFile))
	require.NoError(t, err)
	assert.Equal(t, result.Stamp, string(stamp))

	index, err := os.ReadFile(filepath.Join(dest, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<!doctype html>", string(index))

	assert.NoFileExists(t, filepath.Join(dest, "index.html.gz"), "too small to compress")
	assert.NoFileExists(t, filepath.Join(dest, "img", "logo.png.gz"), "binary assets stay as they are")
	assert.FileExists(t, filepath.Join(dest, "img", "logo.png"))

	gz, err := os.ReadFile(filepath.Join(dest, "js", "app.js.gz"))
	require.NoError(t, err)
	zr, err := gzip.NewReader(bytes.NewReader(gz))
	require.NoError(t, err)
	plain, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, bigJS, string(plain))
}

func TestBuildIsIdempotent(t *testing.T) {
	src := filepath.Join(t.TempDir(), "public")
	dest := filepath.Join(t.TempDir(), "dist")
	writeFile(t, filepath.Join(src, "index.html"), "v1")

	_, err := Build(src, dest, time.Now())
	require.NoError(t, err)

	writeFile(t, filepath.Join(src, "index.html"), "v2")
	_, err = Build(src, dest, time.Now())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestBuildSkipsNestedOutput(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(src, "dist")
	writeFile(t, filepath.Join(src, "index.html"), "hi")
	writeFile(t, filepath.Join(dest, "stale.txt"), "old")

	result, err := Build(src, dest, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Files)
	assert.NoDirExists(t, filepath.Join(dest, "dist"))
}

func TestBuildWithoutSource(t *testing.T) {
	_, err := Build(filepath.Join(t.TempDir(), "missing"), t.TempDir(), time.Now())
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestCompressible(t *testing.T) {
	assert.True(t, Compressible("app.JS"))
	assert.True(t, Compressible("style.css"))
	assert.False(t, Compressible("logo.png"))
	assert.False(t, Compressible("Makefile"))
}
