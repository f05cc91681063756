package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchCounter struct {
	batches int
	events  int
}

func (c *batchCounter) RecordWatchBatch(n int) {
	c.batches++
	c.events += n
}

func newTestWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))

	w, err := New(Config{
		Root:     root,
		Debounce: 50 * time.Millisecond,
		Exclude: func(rel string) bool {
			return rel == "node_modules" || strings.HasPrefix(rel, "node_modules/")
		},
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w, root
}

func collect(t *testing.T, ch <-chan Batch, want string) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch, ok := <-ch:
			require.True(t, ok, "subscription closed early")
			events = append(events, batch.Events...)
			for _, e := range events {
				if e.Path == want {
					return events
				}
			}
		case <-deadline:
			t.Fatalf("no event for %s, got %v", want, events)
			return nil
		}
	}
}

func TestWatcherReportsChanges(t *testing.T) {
	w, root := newTestWatcher(t)
	ch, cancel := w.Subscribe()
	defer cancel()

	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("package main\n"), 0o644))

	events := collect(t, ch, "src/main.go")
	assert.Contains(t, events, Event{Op: "create", Path: "src/main.go"})
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	w, root := newTestWatcher(t)
	ch, cancel := w.Subscribe()
	defer cancel()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))
	collect(t, ch, "pkg")

	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "lib.go"), []byte("package pkg\n"), 0o644))
	collect(t, ch, "pkg/lib.go")
}

func TestWatcherDebouncesIntoBatch(t *testing.T) {
	w, root := newTestWatcher(t)
	counter := &batchCounter{}
	w.WithRecorder(counter)
	ch, cancel := w.Subscribe()
	defer cancel()

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))
	}

	select {
	case batch := <-ch:
		assert.GreaterOrEqual(t, len(batch.Events), 1)
		for i := 1; i < len(batch.Events); i++ {
			assert.LessOrEqual(t, batch.Events[i-1].Path, batch.Events[i].Path)
		}
		assert.GreaterOrEqual(t, counter.batches, 1)
		assert.GreaterOrEqual(t, counter.events, len(batch.Events))
	case <-time.After(5 * time.Second):
		t.Fatal("no batch published")
	}
}

func TestWatcherIgnoresExcluded(t *testing.T) {
	w, root := newTestWatcher(t)
	ch, cancel := w.Subscribe()
	defer cancel()

	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "dep.js"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "marker.txt"), []byte("x"), 0o644))

	events := collect(t, ch, "marker.txt")
	for _, e := range events {
		assert.False(t, strings.HasPrefix(e.Path, "node_modules"), "unexpected event %v", e)
	}
}

func TestSubscribeCancelAndClose(t *testing.T) {
	w, _ := newTestWatcher(t)

	ch, cancel := w.Subscribe()
	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)

	other, _ := w.Subscribe()
	require.NoError(t, w.Close())
	_, ok = <-other
	assert.False(t, ok)

	late, lateCancel := w.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
	assert.NotPanics(t, lateCancel)
	assert.NoError(t, w.Close())
}
