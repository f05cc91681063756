package build

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/klauspost/compress/gzip"
)

// StampFile is written to the output directory by every build.
const StampFile = "build.txt"

// minCompressSize skips precompressing files too small to benefit.
const minCompressSize = 256

// ErrNoSource is returned when the source directory does not exist.
var ErrNoSource = errors.New("no public directory to build from")

var compressible = map[string]bool{
	".html": true,
	".htm":  true,
	".css":  true,
	".js":   true,
	".mjs":  true,
	".json": true,
	".map":  true,
	".svg":  true,
	".txt":  true,
	".xml":  true,
	".wasm": true,
}

// Result summarises a build.
type Result struct {
	Files      int
	Compressed int
	Stamp      string
}

// Build copies every file under src into dest, adds a gzip sibling next to
// each compressible text asset, and writes StampFile recording now.
func Build(src, dest string, now time.Time) (Result, error) {
	info, err := os.Stat(src)
	if err != nil || !info.IsDir() {
		return Result{}, ErrNoSource
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return Result{}, fmt.Errorf("create %s: %w", dest, err)
	}

	srcAbs, err := filepath.Abs(src)
	if err != nil {
		return Result{}, err
	}
	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return Result{}, err
	}

	var (
		files      atomic.Int64
		compressed atomic.Int64
		mu         sync.Mutex
		errs       []error
	)

	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, srcAbs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == destAbs {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(srcAbs, path)
		if err != nil {
			return err
		}
		target := filepath.Join(destAbs, rel)

		gz, err := copyFile(path, target)
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			return nil
		}
		files.Add(1)
		if gz {
			compressed.Add(1)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("walk %s: %w", src, err)
	}
	if err := errors.Join(errs...); err != nil {
		return Result{}, err
	}

	stamp := fmt.Sprintf("Built at %s\n", now.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
	if err := os.WriteFile(filepath.Join(destAbs, StampFile), []byte(stamp), 0o644); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", StampFile, err)
	}

	return Result{
		Files:      int(files.Load()),
		Compressed: int(compressed.Load()),
		Stamp:      stamp,
	}, nil
}

// copyFile copies src to dst and, for compressible assets, writes dst.gz
// when compression actually saves space. It reports whether it did.
func copyFile(src, dst string) (bool, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", dst, err)
	}

	if !Compressible(src) || len(data) < minCompressSize {
		return false, nil
	}

	var buf bytes.Buffer
	if err := compress(&buf, data); err != nil {
		return false, fmt.Errorf("compress %s: %w", src, err)
	}
	if buf.Len() >= len(data) {
		return false, nil
	}
	if err := os.WriteFile(dst+".gz", buf.Bytes(), 0o644); err != nil {
		return false, fmt.Errorf("write %s.gz: %w", dst, err)
	}
	return true, nil
}

func compress(w io.Writer, data []byte) error {
	zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return err
	}
	if _, err := zw.Write(data); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

// Compressible reports whether a file is a text asset worth precompressing.
func Compressible(name string) bool {
	return compressible[strings.ToLower(filepath.Ext(name))]
}
