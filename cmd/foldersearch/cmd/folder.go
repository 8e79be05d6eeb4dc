package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/Aman-CERP/foldersearch/internal/config"
	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
	"github.com/Aman-CERP/foldersearch/internal/index"
	"github.com/Aman-CERP/foldersearch/internal/output"
	"github.com/Aman-CERP/foldersearch/internal/report"
)

// target is a folder resolved against the layered configuration.
type target struct {
	folder   string
	location string
	cfg      *config.Config
}

// resolveTarget validates folder and loads its configuration. The --index-dir
// flag wins over every configuration layer.
func (o *rootOptions) resolveTarget(folder string) (*target, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fserrors.New(fserrors.ErrCodeInvalidPath, fmt.Sprintf("invalid folder %q", folder), err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fserrors.New(fserrors.ErrCodeInvalidPath, fmt.Sprintf("folder %s does not exist", abs), err)
	}
	if !info.IsDir() {
		return nil, fserrors.New(fserrors.ErrCodeInvalidPath, fmt.Sprintf("%s is not a directory", abs), nil)
	}

	cfg, err := config.Load(abs)
	if err != nil {
		return nil, err
	}
	if o.indexDir != "" {
		cfg.Index.Dir = o.indexDir
	}

	return &target{
		folder:   abs,
		location: index.Location(cfg.Index.Dir, abs),
		cfg:      cfg,
	}, nil
}

func (t *target) indexConfig(progress func(int)) index.Config {
	return index.Config{
		Folder:           t.folder,
		Location:         t.location,
		MaxContentBytes:  t.cfg.Index.MaxContentBytes,
		EnumerationCap:   t.cfg.Index.EnumerationCap,
		// Reports written into the folder must not be indexed on the next pass.
		ExcludePatterns:  slices.Concat(t.cfg.Paths.Exclude, report.FileNames()),
		RespectGitignore: t.cfg.Paths.RespectGitignore,
		Progress:         progress,
	}
}

// openAndSync opens (or creates) the folder's index and, when sync is set,
// brings it up to date. A newly created index is always synced by Open, so no
// second pass runs. The result is nil when no pass ran.
func (t *target) openAndSync(ctx context.Context, out *output.Writer, sync bool) (*index.Synchronizer, *index.SyncResult, error) {
	progress := out.Progress("indexing")
	cfg := t.indexConfig(func(int) { progress.Add(1) })

	s, result, err := index.Open(ctx, cfg)
	if err != nil {
		progress.Finish()
		return nil, nil, err
	}
	if result == nil && sync {
		result, err = syncWithRetry(ctx, s)
		if err != nil {
			progress.Finish()
			_ = s.Close()
			return nil, nil, err
		}
	}
	progress.Finish()
	return s, result, nil
}

// syncWithRetry runs one pass, waiting out another process that holds the lock.
func syncWithRetry(ctx context.Context, s *index.Synchronizer) (*index.SyncResult, error) {
	return fserrors.RetryWithResult(ctx, fserrors.DefaultRetryConfig(), func() (*index.SyncResult, error) {
		return s.Sync(ctx)
	})
}

// printSyncSummary renders the counters of a pass.
func (t *target) printSyncSummary(out *output.Writer, result *index.SyncResult) {
	out.Successf("Synced %s in %s", t.folder, result.Duration.Round(time.Millisecond))
	out.Field("Scanned", output.Count(result.Scanned))
	out.Field("Indexed", output.Count(result.Indexed))
	out.Field("Truncated", output.Count(result.Truncated))
	out.Field("Unchanged", output.Count(result.Unchanged))
	out.Field("Unreadable", output.Count(result.Skipped))
	out.Field("Deleted", output.Count(result.Deleted))
	if result.Truncated > 0 {
		out.Warningf("%d file(s) exceeded the size cap; only their first %s are searchable",
			result.Truncated, output.Bytes(t.cfg.Index.MaxContentBytes))
	}
	if result.EnumerationTruncated {
		out.Warning("Index holds more documents than the enumeration cap; some deleted files may remain searchable")
	}
}
