package watcher

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
	"github.com/Aman-CERP/foldersearch/internal/index"
)

// Syncer runs one synchronization pass.
type Syncer interface {
	Sync(ctx context.Context) (*index.SyncResult, error)
}

// Runner turns watcher batches into synchronization passes.
type Runner struct {
	syncer   Syncer
	watcher  *Watcher
	retry    fserrors.RetryConfig
	onIgnore func()
	onResult func(*index.SyncResult)
	onError  func(error)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRetry overrides how lock contention with other writers is retried.
func WithRetry(cfg fserrors.RetryConfig) RunnerOption {
	return func(r *Runner) { r.retry = cfg }
}

// WithGitignoreInvalidator is called before a pass triggered by a .gitignore change.
func WithGitignoreInvalidator(fn func()) RunnerOption {
	return func(r *Runner) { r.onIgnore = fn }
}

// WithResultHandler receives every completed pass.
func WithResultHandler(fn func(*index.SyncResult)) RunnerOption {
	return func(r *Runner) { r.onResult = fn }
}

// WithErrorHandler receives passes that failed after retries.
func WithErrorHandler(fn func(error)) RunnerOption {
	return func(r *Runner) { r.onError = fn }
}

// NewRunner creates a Runner.
func NewRunner(syncer Syncer, w *Watcher, opts ...RunnerOption) *Runner {
	r := &Runner{
		syncer:  syncer,
		watcher: w,
		retry:   fserrors.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run watches root and syncs after every batch of changes until ctx is done.
// A failed pass is reported and watching continues.
func (r *Runner) Run(ctx context.Context, root string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.watcher.Start(gctx, root) })
	g.Go(func() error { return r.consume(gctx) })

	err := g.Wait()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Runner) consume(ctx context.Context) error {
	defer func() { _ = r.watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-r.watcher.Events():
			if !ok {
				return nil
			}
			r.handle(ctx, r.drain(batch))
		case err, ok := <-r.watcher.Errors():
			if !ok {
				return nil
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// drain merges batches that queued up while the previous pass ran.
func (r *Runner) drain(batch []FileEvent) []FileEvent {
	for {
		select {
		case more, ok := <-r.watcher.Events():
			if !ok {
				return batch
			}
			batch = append(batch, more...)
		default:
			return batch
		}
	}
}

func (r *Runner) handle(ctx context.Context, batch []FileEvent) {
	ignoreChanged := false
	for _, e := range batch {
		switch e.Operation {
		case OpGitignoreChange:
			ignoreChanged = true
		case OpConfigChange:
			slog.Warn("config_changed_restart_required", slog.String("path", e.Path))
		}
	}
	if ignoreChanged && r.onIgnore != nil {
		r.onIgnore()
	}

	slog.Debug("watch_batch", slog.Int("events", len(batch)))

	result, err := fserrors.RetryWithResult(ctx, r.retry, func() (*index.SyncResult, error) {
		return r.syncer.Sync(ctx)
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("watch_sync_failed",
			append([]any{slog.Int("events", len(batch))}, fserrors.LogAttrs(err)...)...)
		if r.onError != nil {
			r.onError(err)
		}
		return
	}
	if r.onResult != nil {
		r.onResult(result)
	}
}
