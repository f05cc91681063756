package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/WebIDE/backend/internal/infrastructure/logging"
)

const (
	defaultDebounce = 250 * time.Millisecond
	subscriberQueue = 16
)

// Event is one change inside the workspace.
type Event struct {
	Op   string `json:"op"`
	Path string `json:"path"`
}

// Batch groups the events seen during one debounce window.
type Batch struct {
	Events []Event   `json:"events"`
	At     time.Time `json:"at"`
}

// Recorder counts published batches.
type Recorder interface {
	RecordWatchBatch(n int)
}

// Config configures a Watcher.
type Config struct {
	Root     string
	Debounce time.Duration
	// Exclude decides whether a slash-separated path relative to Root is
	// ignored. Excluded directories are not watched.
	Exclude func(rel string) bool
}

// Watcher reports file changes below a root directory to subscribers.
type Watcher struct {
	root     string
	debounce time.Duration
	exclude  func(string) bool
	logger   *logging.Logger
	recorder Recorder

	fsw *fsnotify.Watcher

	mu     sync.Mutex
	subs   map[int]chan Batch
	nextID int
	closed bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New starts watching cfg.Root and every directory below it.
func New(cfg Config, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	exclude := cfg.Exclude
	if exclude == nil {
		exclude = func(string) bool { return false }
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		root:     root,
		debounce: debounce,
		exclude:  exclude,
		logger:   logger.Named("watcher"),
		fsw:      fsw,
		subs:     make(map[int]chan Batch),
		done:     make(chan struct{}),
	}

	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// WithRecorder reports published batches to r.
func (w *Watcher) WithRecorder(r Recorder) *Watcher {
	w.recorder = r
	return w
}

// Subscribe returns a channel of batches and a function that cancels the
// subscription. A subscriber that falls behind misses batches instead of
// stalling the watcher. The channel is closed on cancel or Close.
func (w *Watcher) Subscribe() (<-chan Batch, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ch := make(chan Batch, subscriberQueue)
	if w.closed {
		close(ch)
		return ch, func() {}
	}

	id := w.nextID
	w.nextID++
	w.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			if sub, ok := w.subs[id]; ok {
				delete(w.subs, id)
				close(sub)
			}
		})
	}
}

// Close stops watching and closes every subscription.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()

		w.mu.Lock()
		w.closed = true
		for id, ch := range w.subs {
			delete(w.subs, id)
			close(ch)
		}
		w.mu.Unlock()
	})
	return err
}

// addTree watches dir and its subdirectories, skipping excluded ones.
func (w *Watcher) addTree(dir string) error {
	var (
		mu   sync.Mutex
		dirs []string
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != w.root && w.exclude(w.rel(path)) {
			return filepath.SkipDir
		}
		mu.Lock()
		dirs = append(dirs, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", dir, err)
	}

	for _, d := range dirs {
		if err := w.fsw.Add(d); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	return nil
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) run() {
	defer w.wg.Done()

	var (
		pending []Event
		seen    = make(map[Event]bool)
		timer   *time.Timer
		fire    <-chan time.Time
	)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			event, keep := w.translate(ev)
			if !keep {
				continue
			}
			if !seen[event] {
				seen[event] = true
				pending = append(pending, event)
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			}

		case <-fire:
			w.publish(pending)
			pending = nil
			seen = make(map[Event]bool)
			timer = nil
			fire = nil

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", zap.Error(err))

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// translate maps an fsnotify event to a workspace event and starts watching
// newly created directories.
func (w *Watcher) translate(ev fsnotify.Event) (Event, bool) {
	rel := w.rel(ev.Name)
	if rel == "." || w.exclude(rel) {
		return Event{}, false
	}

	var op string
	switch {
	case ev.Has(fsnotify.Create):
		op = "create"
		if info, err := os.Lstat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Debug("Failed to watch new directory", zap.String("path", rel), zap.Error(err))
			}
		}
	case ev.Has(fsnotify.Write):
		op = "write"
	case ev.Has(fsnotify.Remove):
		op = "remove"
	case ev.Has(fsnotify.Rename):
		op = "rename"
	default:
		// Chmod only.
		return Event{}, false
	}
	return Event{Op: op, Path: rel}, true
}

func (w *Watcher) publish(events []Event) {
	if len(events) == 0 {
		return
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Path < events[j].Path })
	batch := Batch{Events: events, At: time.Now().UTC()}

	if w.recorder != nil {
		w.recorder.RecordWatchBatch(len(events))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for id, ch := range w.subs {
		select {
		case ch <- batch:
		default:
			w.logger.Debug("Dropping batch for slow subscriber", zap.Int("subscriber", id))
		}
	}
}
