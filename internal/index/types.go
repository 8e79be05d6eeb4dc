// Package index keeps a document index synchronized with a directory tree.
// A pass compares what the scanner sees against what the index stores and
// applies every difference in one atomic commit.
package index

import (
	"path/filepath"
	"time"

	"github.com/Aman-CERP/foldersearch/internal/store"
)

// DefaultEnumerationCap bounds how many stored paths a pass inspects when
// looking for deleted files.
const DefaultEnumerationCap = 10000

// indexDirPrefix prefixes the index directory name derived from a folder.
const indexDirPrefix = "idx_"

// Config configures a Synchronizer.
type Config struct {
	// Folder is the directory tree to mirror.
	Folder string

	// Location is the index directory. Empty means in-memory.
	Location string

	// MaxContentBytes caps the bytes stored per file (0 = scanner default).
	MaxContentBytes int64

	// EnumerationCap bounds the stored paths examined for deletions
	// (0 = DefaultEnumerationCap). Stale entries beyond the cap are not removed.
	EnumerationCap int

	// ExcludePatterns are doublestar globs of files left out of the index.
	ExcludePatterns []string

	// RespectGitignore leaves out files ignored by .gitignore.
	RespectGitignore bool

	// Progress, when set, is called after each scanned file with the running count.
	Progress func(scanned int)
}

// Location returns the index directory for folder under indexDir:
// <indexDir>/idx_<base name of folder>.
func Location(indexDir, folder string) string {
	abs, err := filepath.Abs(folder)
	if err != nil {
		abs = folder
	}
	return filepath.Join(indexDir, indexDirPrefix+filepath.Base(abs))
}

// Outcome is what a pass did with one file.
type Outcome int

const (
	// OutcomeUnchanged means the file was present and not modified since the watermark.
	OutcomeUnchanged Outcome = iota
	// OutcomeIndexed means the file's full contents were (re)written to the index.
	OutcomeIndexed
	// OutcomeTruncated means only a prefix of the file was written to the index.
	OutcomeTruncated
	// OutcomeSkippedUnreadable means the file changed but could not be read as text.
	OutcomeSkippedUnreadable
	// OutcomeDeleted means the file disappeared and its document was removed.
	OutcomeDeleted
)

// String returns the outcome name used in logs and CLI output.
func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeIndexed:
		return "indexed"
	case OutcomeTruncated:
		return "truncated"
	case OutcomeSkippedUnreadable:
		return "skipped_unreadable"
	case OutcomeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileOutcome pairs a path with what the pass did to it.
type FileOutcome struct {
	Path    string  `json:"path"`
	Outcome Outcome `json:"-"`
	Name    string  `json:"outcome"`
}

// SyncResult summarizes one synchronization pass.
type SyncResult struct {
	PassID     string           `json:"pass_id"`
	Started    time.Time        `json:"started"`
	Duration   time.Duration    `json:"duration"`
	Watermark  time.Time        `json:"previous_watermark"`
	Generation store.Generation `json:"generation"`

	Scanned   int `json:"scanned"`
	Indexed   int `json:"indexed"`
	Truncated int `json:"truncated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped_unreadable"`
	Deleted   int `json:"deleted"`

	// EnumerationTruncated is set when the index held more documents than
	// EnumerationCap, so some deleted files may remain searchable.
	EnumerationTruncated bool `json:"enumeration_truncated"`

	Files []FileOutcome `json:"files,omitempty"`
}

// Changed reports whether the pass staged any mutation.
func (r *SyncResult) Changed() bool {
	return r.Indexed+r.Truncated+r.Deleted > 0
}

func (r *SyncResult) record(path string, o Outcome) {
	r.Files = append(r.Files, FileOutcome{Path: path, Outcome: o, Name: o.String()})
	switch o {
	case OutcomeUnchanged:
		r.Unchanged++
	case OutcomeIndexed:
		r.Indexed++
	case OutcomeTruncated:
		r.Truncated++
	case OutcomeSkippedUnreadable:
		r.Skipped++
	case OutcomeDeleted:
		r.Deleted++
	}
}

// Status describes the persisted state of an index.
type Status struct {
	Folder     string           `json:"folder"`
	Location   string           `json:"location"`
	DocCount   uint64           `json:"doc_count"`
	Watermark  time.Time        `json:"watermark"`
	Generation store.Generation `json:"generation"`
}
