package dump

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce groups the bursts of events editors emit for one save.
const DefaultDebounce = 200 * time.Millisecond

// RunFunc performs one generation. Errors are logged and do not stop the watcher.
type RunFunc func(ctx context.Context) error

// Watcher re-runs a generation whenever one of its input files changes.
// At most one generation runs at a time; changes seen during a run queue a
// single follow-up run.
type Watcher struct {
	paths    []string
	run      RunFunc
	debounce time.Duration
	logger   *zap.Logger
	ready    chan struct{}
}

// WatchOption customizes a Watcher.
type WatchOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the logger used for change and failure reports.
func WithWatchLogger(logger *zap.Logger) WatchOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWatcher watches paths and calls run after each settled change.
func NewWatcher(paths []string, run RunFunc, opts ...WatchOption) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("watcher needs at least one path")
	}
	if run == nil {
		return nil, errors.New("watcher needs a run function")
	}
	w := &Watcher{
		paths:    append([]string(nil), paths...),
		run:      run,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Ready is closed once the watches are registered.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run blocks until ctx is cancelled, then waits for an in-flight generation
// to return. Parent directories are watched so files replaced by rename
// keep being tracked.
func (w *Watcher) Run(ctx context.Context) error {
	targets := make(map[string]struct{}, len(w.paths))
	dirs := make(map[string]struct{}, len(w.paths))
	for _, p := range w.paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		targets[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	close(w.ready)
	w.logger.Info("watching inputs", zap.Strings("paths", w.paths))

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		running bool
		pending bool
		done    = make(chan struct{}, 1)
	)
	start := func() {
		running = true
		go func() {
			if err := w.run(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("generation failed", zap.Error(err))
			}
			done <- struct{}{}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			if running {
				<-done
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if _, ok := targets[abs]; !ok {
				continue
			}
			w.logger.Debug("input changed", zap.String("path", abs), zap.Stringer("op", ev.Op))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-fire:
			fire = nil
			if running {
				pending = true
				continue
			}
			start()
		case <-done:
			running = false
			if pending {
				pending = false
				start()
			}
		}
	}
}
