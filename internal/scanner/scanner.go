package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	ignore "github.com/sabhiram/go-gitignore"
)

// gitignoreCacheSize is the maximum number of gitignore matchers to cache.
const gitignoreCacheSize = 1000

// resultBuffer is the capacity of the observation channel.
const resultBuffer = 64

// Scanner discovers regular files under a directory.
type Scanner struct {
	// gitignoreCache holds the parsed .gitignore of each directory, nil when absent.
	gitignoreCache *lru.Cache[string, *ignore.GitIgnore]
	cacheMu        sync.RWMutex
}

// New creates a new Scanner instance.
func New() (*Scanner, error) {
	cache, err := lru.New[string, *ignore.GitIgnore](gitignoreCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitignore cache: %w", err)
	}
	return &Scanner{
		gitignoreCache: cache,
	}, nil
}

// Scan walks opts.RootDir and streams one Observation per regular file.
// Symbolic links are not followed. Entries that cannot be visited are skipped.
// The channel is closed when the walk completes or ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	maxBytes := opts.MaxContentBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxContentBytes
	}

	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		if abs, absErr := filepath.Abs(p); absErr == nil {
			skip[abs] = struct{}{}
		}
	}

	results := make(chan ScanResult, resultBuffer)

	go func() {
		defer close(results)
		s.scan(ctx, absRoot, opts, maxBytes, skip, results)
	}()

	return results, nil
}

// scan performs the actual directory traversal.
func (s *Scanner) scan(ctx context.Context, absRoot string, opts *ScanOptions, maxBytes int64, skip map[string]struct{}, results chan<- ScanResult) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			slog.Debug("scan_entry_skipped",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}

		if _, ok := skip[path]; ok {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if s.matchesExclude(relPath, opts.ExcludePatterns) {
				return filepath.SkipDir
			}
			return nil
		}

		// Symlinks and other special files are not regular files.
		if !d.Type().IsRegular() {
			return nil
		}

		if s.matchesExclude(relPath, opts.ExcludePatterns) {
			return nil
		}
		if opts.RespectGitignore && s.isGitignored(relPath, absRoot) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		obs := &Observation{
			Path:    path,
			ModTime: info.ModTime(),
			Size:    info.Size(),
			Status:  StatusUnchanged,
		}
		if info.ModTime().After(opts.ModifiedAfter) {
			obs.Contents, obs.Status = readContents(path, maxBytes)
		}

		select {
		case results <- ScanResult{File: obs}:
		case <-ctx.Done():
			return ctx.Err()
		}

		return nil
	})

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

// readContents reads at most maxBytes of the file as UTF-8 text.
// A multi-byte character cut by the cap is dropped rather than reported invalid.
func readContents(path string, maxBytes int64) (string, Status) {
	f, err := os.Open(path)
	if err != nil {
		slog.Debug("file_unreadable",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return "", StatusUnreadable
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		slog.Debug("file_unreadable",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return "", StatusUnreadable
	}

	status := StatusModified
	if int64(len(data)) > maxBytes {
		data = trimPartialRune(data[:maxBytes])
		status = StatusTruncated
	}

	if !utf8.Valid(data) {
		slog.Debug("file_not_utf8", slog.String("path", path))
		return "", StatusUnreadable
	}

	return string(data), status
}

// trimPartialRune drops an incomplete UTF-8 sequence at the end of b.
func trimPartialRune(b []byte) []byte {
	// A rune is at most utf8.UTFMax bytes, so only the tail needs inspecting.
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		c := b[len(b)-i]
		if utf8.RuneStart(c) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			return b
		}
	}
	return b
}

// matchesExclude checks the relative path and its base name against every pattern.
func (s *Scanner) matchesExclude(relPath string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}

	normalized := filepath.ToSlash(relPath)
	base := filepath.Base(relPath)
	for _, pattern := range patterns {
		if matched, err := doublestar.Match(pattern, normalized); err == nil && matched {
			return true
		}
		if matched, err := doublestar.Match(pattern, base); err == nil && matched {
			return true
		}
	}
	return false
}

// isGitignored checks the file against the .gitignore of every directory from
// the root down to the file's parent. Each file's patterns apply to paths
// relative to the directory that contains it.
func (s *Scanner) isGitignored(relPath, absRoot string) bool {
	dir := filepath.Dir(relPath)
	var parts []string
	if dir != "." {
		parts = strings.Split(dir, string(filepath.Separator))
	}

	current := absRoot
	for i := 0; i <= len(parts); i++ {
		if i > 0 {
			current = filepath.Join(current, parts[i-1])
		}

		matcher := s.getGitignoreMatcher(current)
		if matcher == nil {
			continue
		}

		rel, err := filepath.Rel(current, filepath.Join(absRoot, relPath))
		if err != nil {
			continue
		}
		if matcher.MatchesPath(filepath.ToSlash(rel)) {
			return true
		}
	}

	return false
}

// getGitignoreMatcher gets or parses the .gitignore in dir.
func (s *Scanner) getGitignoreMatcher(dir string) *ignore.GitIgnore {
	s.cacheMu.RLock()
	matcher, ok := s.gitignoreCache.Get(dir)
	s.cacheMu.RUnlock()
	if ok {
		return matcher
	}

	gitignorePath := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(gitignorePath); err == nil {
		compiled, compileErr := ignore.CompileIgnoreFile(gitignorePath)
		if compileErr != nil {
			slog.Warn("gitignore_parse_failed",
				slog.String("path", gitignorePath),
				slog.String("error", compileErr.Error()))
		} else {
			matcher = compiled
		}
	}

	s.cacheMu.Lock()
	s.gitignoreCache.Add(dir, matcher)
	s.cacheMu.Unlock()

	return matcher
}

// InvalidateGitignoreCache clears the gitignore matcher cache.
// Watch mode calls this when a .gitignore file changes.
func (s *Scanner) InvalidateGitignoreCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gitignoreCache.Purge()
}
