// Package watch reports changes to definition files on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for further events before
// reporting a batch of changes.
const DefaultDebounce = 100 * time.Millisecond

// Watcher calls a function whenever one of a fixed set of files is written
// or replaced. Events are debounced and reported in batches.
type Watcher struct {
	files    map[string]bool
	dirs     []string
	debounce time.Duration
	logger   *slog.Logger
	onChange func(changed []string)

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New returns a watcher over files. onChange receives the sorted absolute
// paths that changed since the last call.
func New(files []string, onChange func(changed []string), opts ...Option) (*Watcher, error) {
	if len(files) == 0 {
		return nil, errors.New("no files to watch")
	}

	w := &Watcher{
		files:    make(map[string]bool, len(files)),
		debounce: DefaultDebounce,
		logger:   slog.New(slog.DiscardHandler),
		onChange: onChange,
		pending:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		w.files[abs] = true
		// editors often replace files, so the directory is watched
		if dir := filepath.Dir(abs); !slices.Contains(w.dirs, dir) {
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// Files returns the watched files, sorted.
func (w *Watcher) Files() []string {
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	for _, dir := range w.dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	w.logger.Debug("watching definition files", "files", len(w.files), "dirs", len(w.dirs))

	for {
		select {
		case <-ctx.Done():
			w.stop()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := filepath.Clean(event.Name)
			if !w.files[name] {
				continue
			}
			w.schedule(name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) schedule(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[name] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	changed := make([]string, 0, len(w.pending))
	for name := range w.pending {
		changed = append(changed, name)
	}
	clear(w.pending)
	w.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	slices.Sort(changed)
	w.logger.Debug("definition files changed", "files", changed)
	w.onChange(changed)
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
