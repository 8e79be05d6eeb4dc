package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
	"github.com/Aman-CERP/foldersearch/internal/scanner"
	"github.com/Aman-CERP/foldersearch/internal/store"
)

// WatermarkSlack is subtracted from the pass start before it is stored as the
// watermark. Kernels stamp mtimes from a clock that lags time.Now by up to a
// tick, and FAT and HFS+ round them to 2s and 1s, so a file rewritten while a
// pass runs can carry an mtime earlier than the pass start.
const WatermarkSlack = 2 * time.Second

// Synchronizer reconciles an index with the files under a folder.
type Synchronizer struct {
	cfg     Config
	idx     store.Index
	scanner *scanner.Scanner
	now     func() time.Time

	// mu serializes passes issued through this Synchronizer.
	mu sync.Mutex
}

// New creates a Synchronizer over an already opened index.
func New(idx store.Index, cfg Config) (*Synchronizer, error) {
	if idx == nil {
		return nil, fmt.Errorf("index is required")
	}
	if cfg.Folder == "" {
		return nil, fserrors.New(fserrors.ErrCodeInvalidPath, "folder is required", nil)
	}

	folder, err := filepath.Abs(cfg.Folder)
	if err != nil {
		return nil, fserrors.New(fserrors.ErrCodeInvalidPath,
			fmt.Sprintf("invalid folder %q", cfg.Folder), err)
	}
	cfg.Folder = folder
	if cfg.EnumerationCap <= 0 {
		cfg.EnumerationCap = DefaultEnumerationCap
	}

	sc, err := scanner.New()
	if err != nil {
		return nil, err
	}

	return &Synchronizer{
		cfg:     cfg,
		idx:     idx,
		scanner: sc,
		now:     time.Now,
	}, nil
}

// Open opens the index at cfg.Location, creating it if the directory does not
// exist. A newly created index is populated by a full pass before Open returns;
// that pass's result is returned, otherwise the result is nil.
func Open(ctx context.Context, cfg Config) (*Synchronizer, *SyncResult, error) {
	idx, created, err := store.Open(cfg.Location)
	if err != nil {
		return nil, nil, err
	}

	s, err := New(idx, cfg)
	if err != nil {
		_ = idx.Close()
		return nil, nil, err
	}

	if !created {
		slog.Debug("index_reused",
			slog.String("folder", s.cfg.Folder),
			slog.String("location", cfg.Location))
		return s, nil, nil
	}

	slog.Info("index_created",
		slog.String("folder", s.cfg.Folder),
		slog.String("location", cfg.Location))

	result, err := s.Sync(ctx)
	if err != nil {
		_ = idx.Close()
		return nil, nil, err
	}
	return s, result, nil
}

// Index returns the underlying index.
func (s *Synchronizer) Index() store.Index {
	return s.idx
}

// Folder returns the absolute folder being mirrored.
func (s *Synchronizer) Folder() string {
	return s.cfg.Folder
}

// Scanner returns the scanner used for passes.
func (s *Synchronizer) Scanner() *scanner.Scanner {
	return s.scanner
}

// SkipPaths lists the index's own files, which scans and watchers must ignore
// when the index lives inside the folder.
func (s *Synchronizer) SkipPaths() []string {
	loc := s.idx.Path()
	if loc == "" {
		return nil
	}
	return []string{loc, store.LockPath(loc)}
}

// Sync runs one synchronization pass:
//  1. take the exclusive writer and read the watermark,
//  2. stage a delete+add for every file modified after the watermark,
//  3. stage a delete for every stored path no longer on disk,
//  4. commit everything at once, then advance the watermark to the pass start
//     less WatermarkSlack.
//
// If the commit fails nothing is applied and the watermark stays put.
// Cancelling ctx aborts the pass before commit.
func (s *Synchronizer) Sync(ctx context.Context) (*SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	result := &SyncResult{
		PassID:  uuid.NewString(),
		Started: start,
	}

	w, err := s.idx.Writer(ctx)
	if err != nil {
		return nil, err
	}
	released := false
	defer func() {
		if !released {
			if abortErr := w.Abort(); abortErr != nil {
				slog.Warn("sync_abort_failed",
					slog.String("pass_id", result.PassID),
					slog.String("error", abortErr.Error()))
			}
		}
	}()

	watermark, err := s.idx.Watermark()
	if err != nil {
		return nil, err
	}
	result.Watermark = watermark

	slog.Info("sync_started",
		slog.String("pass_id", result.PassID),
		slog.String("folder", s.cfg.Folder),
		slog.Time("watermark", watermark))

	current, err := s.stageChanges(ctx, w, watermark, result)
	if err != nil {
		return nil, err
	}

	if err := s.stageDeletions(ctx, w, current, result); err != nil {
		return nil, err
	}

	// Commit releases the writer whether or not it succeeds.
	released = true
	gen, err := w.Commit()
	if err != nil {
		slog.Error("sync_commit_failed", append([]any{
			slog.String("pass_id", result.PassID),
			slog.Int("staged", w.Staged()),
		}, fserrors.LogAttrs(err)...)...)
		return nil, err
	}
	result.Generation = gen

	// Files touched within the slack window are read again next pass.
	if err := s.idx.SetWatermark(start.Add(-WatermarkSlack)); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	slog.Info("sync_complete",
		slog.String("pass_id", result.PassID),
		slog.Int("scanned", result.Scanned),
		slog.Int("indexed", result.Indexed),
		slog.Int("truncated", result.Truncated),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("skipped_unreadable", result.Skipped),
		slog.Int("deleted", result.Deleted),
		slog.Uint64("generation", uint64(gen)),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// stageChanges scans the folder, staging a replacement for every changed file.
// It returns the set of paths currently present.
func (s *Synchronizer) stageChanges(ctx context.Context, w store.Writer, watermark time.Time, result *SyncResult) (map[string]struct{}, error) {
	results, err := s.scanner.Scan(ctx, &scanner.ScanOptions{
		RootDir:          s.cfg.Folder,
		ModifiedAfter:    watermark,
		MaxContentBytes:  s.cfg.MaxContentBytes,
		ExcludePatterns:  s.cfg.ExcludePatterns,
		RespectGitignore: s.cfg.RespectGitignore,
		SkipPaths:        s.SkipPaths(),
	})
	if err != nil {
		return nil, fserrors.New(fserrors.ErrCodeInvalidPath,
			fmt.Sprintf("cannot scan %s", s.cfg.Folder), err)
	}

	current := make(map[string]struct{})
	var stageErr error
	for r := range results {
		// Keep draining so the scan goroutine can exit.
		if stageErr != nil {
			continue
		}
		if r.Error != nil {
			slog.Warn("scan_error",
				slog.String("pass_id", result.PassID),
				slog.String("error", r.Error.Error()))
			continue
		}

		obs := r.File
		current[obs.Path] = struct{}{}
		result.Scanned++
		if s.cfg.Progress != nil {
			s.cfg.Progress(result.Scanned)
		}

		switch {
		case obs.NeedsIndexing():
			if err := stage(w, obs); err != nil {
				stageErr = err
				continue
			}
			if obs.Status == scanner.StatusTruncated {
				slog.Warn("file_truncated",
					slog.String("path", obs.Path),
					slog.Int64("size", obs.Size),
					slog.Int("indexed_bytes", len(obs.Contents)))
				result.record(obs.Path, OutcomeTruncated)
			} else {
				result.record(obs.Path, OutcomeIndexed)
			}
		case obs.Status == scanner.StatusUnreadable:
			slog.Debug("file_skipped_unreadable", slog.String("path", obs.Path))
			result.record(obs.Path, OutcomeSkippedUnreadable)
		default:
			result.record(obs.Path, OutcomeUnchanged)
		}
	}

	if stageErr != nil {
		return nil, stageErr
	}
	if err := ctx.Err(); err != nil {
		slog.Info("sync_cancelled",
			slog.String("pass_id", result.PassID),
			slog.Int("scanned", result.Scanned))
		return nil, fserrors.New(fserrors.ErrCodeSyncAborted, "sync cancelled before commit", err)
	}

	return current, nil
}

// stage replaces any stored document for the file with its new contents.
func stage(w store.Writer, obs *scanner.Observation) error {
	if err := w.DeleteByPath(obs.Path); err != nil {
		return err
	}
	return w.Add(store.Document{Path: obs.Path, Contents: obs.Contents})
}

// stageDeletions removes stored documents whose path was not seen by the scan.
func (s *Synchronizer) stageDeletions(ctx context.Context, w store.Writer, current map[string]struct{}, result *SyncResult) error {
	stored, total, err := s.idx.Reader().AllPaths(ctx, s.cfg.EnumerationCap)
	if err != nil {
		return err
	}

	if total > uint64(len(stored)) {
		result.EnumerationTruncated = true
		slog.Warn("sync_enumeration_truncated",
			slog.String("pass_id", result.PassID),
			slog.Int("cap", s.cfg.EnumerationCap),
			slog.Uint64("stored", total))
	}

	for _, path := range stored {
		if _, ok := current[path]; ok {
			continue
		}
		if err := w.DeleteByPath(path); err != nil {
			return err
		}
		result.record(path, OutcomeDeleted)
	}
	return nil
}

// Status reports the persisted state of the index.
func (s *Synchronizer) Status() (*Status, error) {
	count, err := s.idx.DocCount()
	if err != nil {
		return nil, err
	}
	watermark, err := s.idx.Watermark()
	if err != nil {
		return nil, err
	}
	return &Status{
		Folder:     s.cfg.Folder,
		Location:   s.idx.Path(),
		DocCount:   count,
		Watermark:  watermark,
		Generation: s.idx.Generation(),
	}, nil
}

// Close closes the underlying index.
func (s *Synchronizer) Close() error {
	return s.idx.Close()
}
