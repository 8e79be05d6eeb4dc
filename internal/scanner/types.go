// Package scanner walks a directory tree and reports, for every regular file,
// its modification time and, when it changed since a given instant, its text
// contents. Results stream over a channel so a synchronization pass can start
// staging work before the walk finishes.
package scanner

import (
	"time"
)

// DefaultMaxContentBytes is the default cap on the bytes read per file (10MB).
const DefaultMaxContentBytes = 10 * 1024 * 1024

// Status describes what a scan learned about one file.
type Status int

const (
	// StatusUnchanged means the file was not modified after ScanOptions.ModifiedAfter.
	// Its contents were not read.
	StatusUnchanged Status = iota

	// StatusModified means the file changed and its full contents were read.
	StatusModified

	// StatusTruncated means the file changed and is larger than the content cap.
	// Only the leading prefix was read, so text past the cap is not searchable.
	StatusTruncated

	// StatusUnreadable means the file changed but could not be read as UTF-8 text.
	// The path still counts as present.
	StatusUnreadable
)

// String returns the status name used in logs and CLI output.
func (s Status) String() string {
	switch s {
	case StatusUnchanged:
		return "unchanged"
	case StatusModified:
		return "modified"
	case StatusTruncated:
		return "truncated"
	case StatusUnreadable:
		return "unreadable"
	default:
		return "unknown"
	}
}

// Observation is what one scan pass saw of a single regular file.
type Observation struct {
	Path     string    // Absolute path
	ModTime  time.Time // Last modification time
	Size     int64     // File size in bytes
	Contents string    // Text contents; empty unless Modified or Truncated
	Status   Status
}

// NeedsIndexing reports whether the observation carries contents to store.
func (o *Observation) NeedsIndexing() bool {
	return o.Status == StatusModified || o.Status == StatusTruncated
}

// ScanOptions configures the scanner behavior.
type ScanOptions struct {
	// RootDir is the directory to scan.
	RootDir string

	// ModifiedAfter limits content reads to files with a later modification time.
	// The zero value reads every file.
	ModifiedAfter time.Time

	// MaxContentBytes caps the bytes read per file (0 = DefaultMaxContentBytes).
	MaxContentBytes int64

	// ExcludePatterns are doublestar globs matched against the slash-separated
	// path relative to RootDir and against the base name.
	ExcludePatterns []string

	// RespectGitignore skips files ignored by .gitignore files in the tree.
	RespectGitignore bool

	// SkipPaths are absolute paths (files or directories) never reported,
	// such as an index directory stored inside the scanned tree.
	SkipPaths []string
}

// ScanResult is returned from the scanner channel.
type ScanResult struct {
	File  *Observation
	Error error
}
