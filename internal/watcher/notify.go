package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
)

// Mode names the change-detection mechanism in use.
const (
	ModeFsnotify = "fsnotify"
	ModePolling  = "polling"
)

// Watcher reports debounced batches of changes under a directory tree.
type Watcher struct {
	opts      Options
	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	stopCh    chan struct{}

	mu      sync.RWMutex
	fs      *fsnotify.Watcher
	root    string
	mode    string
	stopped bool

	droppedBatches atomic.Uint64
}

// New creates a watcher. fsnotify is preferred; polling is used when it is
// unavailable or opts.ForcePolling is set.
func New(opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()

	w := &Watcher{
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		mode:      ModePolling,
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			slog.Warn("fsnotify_unavailable", slog.String("error", err.Error()))
		} else {
			w.fs = fsw
			w.mode = ModeFsnotify
		}
	}
	return w, nil
}

// Start watches root recursively and blocks until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fserrors.New(fserrors.ErrCodeInvalidPath, "cannot resolve watch root", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return fserrors.New(fserrors.ErrCodeInvalidPath, "watch root is not a directory", err).
			WithDetail("path", abs)
	}

	w.mu.Lock()
	w.root = abs
	fsw := w.fs
	w.mu.Unlock()

	go w.forward(ctx)

	if fsw != nil {
		if err := w.addRecursive(abs); err != nil {
			slog.Warn("watch_fallback_polling",
				slog.String("root", abs),
				slog.String("error", err.Error()))
			w.mu.Lock()
			_ = fsw.Close()
			w.fs = nil
			w.mode = ModePolling
			w.mu.Unlock()
		} else {
			slog.Info("watch_started", slog.String("root", abs), slog.String("mode", ModeFsnotify))
			return w.runFsnotify(ctx, fsw)
		}
	}

	slog.Info("watch_started", slog.String("root", abs), slog.String("mode", ModePolling))
	p := newPoller(abs, w.opts.PollInterval, w.opts.SkipPaths)
	err = p.run(ctx, w.stopCh, w.debouncer.Add)
	if ctx.Err() != nil {
		_ = w.Stop()
	}
	return err
}

func (w *Watcher) runFsnotify(ctx context.Context, fsw *fsnotify.Watcher) error {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// handle converts an fsnotify event and feeds it to the debouncer.
func (w *Watcher) handle(event fsnotify.Event) {
	if skipped(event.Name, w.opts.SkipPaths) {
		return
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." {
		return
	}

	isDir := false
	if info, err := os.Lstat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	var op Operation
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
		if isDir {
			if err := w.addRecursive(event.Name); err != nil {
				w.emitError(err)
			}
		}
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove):
		op = OpDelete
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		// Chmod alone never changes contents.
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      rel,
		Operation: classify(rel, op),
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

// addRecursive adds dir and every directory beneath it to the fsnotify watch list.
func (w *Watcher) addRecursive(dir string) error {
	w.mu.RLock()
	fsw := w.fs
	w.mu.RUnlock()
	if fsw == nil {
		return nil
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if skipped(path, w.opts.SkipPaths) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			w.emitEvents(batch)
		}
	}
}

func (w *Watcher) emitEvents(batch []FileEvent) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.events <- batch:
	default:
		n := w.droppedBatches.Add(1)
		slog.Warn("watch_batch_dropped",
			slog.Int("batch_size", len(batch)),
			slog.Uint64("total_dropped_batches", n))
	}
}

func (w *Watcher) emitError(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

// Stop stops the watcher and closes its channels. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	w.debouncer.Stop()
	if w.fs != nil {
		_ = w.fs.Close()
	}
	close(w.events)
	close(w.errors)
	return nil
}

// Events returns the channel of debounced batches.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Mode reports ModeFsnotify or ModePolling.
func (w *Watcher) Mode() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.mode
}

// DroppedBatches returns how many batches were dropped because the consumer lagged.
func (w *Watcher) DroppedBatches() uint64 {
	return w.droppedBatches.Load()
}
