// Package store adapts the bleve document index engine to the contract the
// synchronizer and the query dispatcher rely on: open-or-create, an exclusive
// batching writer with all-or-nothing commits, and readers that resolve hits
// against the live index.
package store

import (
	"context"
	"time"
)

// Field names of the index schema.
const (
	// FieldPath holds the file path. Exact-match keyword, stored. Also the document ID.
	FieldPath = "path"

	// FieldContents holds the (possibly truncated) file text. Tokenized, stored.
	FieldContents = "contents"
)

// DefaultResultCap is the number of ranked hits a search returns when no cap is given.
const DefaultResultCap = 10000

// Generation identifies a committed state of the index within this process.
// It increases by one for every commit that applied at least one mutation.
type Generation uint64

// Document is the unit stored in the index.
type Document struct {
	Path     string
	Contents string
}

// Hit is a ranked search result before it is resolved to a document.
type Hit struct {
	ID    string
	Score float64
}

// SearchResult is a capped, score-ordered list of hits.
type SearchResult struct {
	Hits []Hit

	// Total is the number of documents that matched, which can exceed len(Hits)
	// when the request was capped.
	Total uint64
}

// Writer stages mutations and applies them atomically on Commit.
// A Writer holds the index's exclusive write lock until Commit or Abort returns.
type Writer interface {
	// Add stages a document. Adding a path that already exists replaces it.
	Add(doc Document) error

	// DeleteByPath stages deletion of the document with the exact path.
	DeleteByPath(path string) error

	// Staged returns the number of mutations staged so far.
	Staged() int

	// Commit applies every staged mutation as one generation and releases the lock.
	Commit() (Generation, error)

	// Abort drops staged mutations and releases the lock. Safe after Commit.
	Abort() error
}

// Reader runs queries against the latest committed generation.
// Readers reload automatically after each commit; there is no manual policy.
type Reader interface {
	// Search returns at most limit hits ordered by relevance.
	Search(ctx context.Context, q Query, limit int) (*SearchResult, error)

	// Document resolves a hit. ok is false when the document has been deleted
	// since the hit was produced.
	Document(id string) (doc Document, ok bool, err error)

	// AllPaths enumerates stored paths with a match-all query capped at limit.
	// total reports how many documents exist, so callers can detect the cap.
	AllPaths(ctx context.Context, limit int) (paths []string, total uint64, err error)

	// Generation is the generation the reader currently observes.
	Generation() Generation
}

// Index is a persistent document index.
type Index interface {
	// Writer acquires the exclusive writer, blocking until it is free or ctx is done.
	Writer(ctx context.Context) (Writer, error)

	// Reader returns a reader over committed state.
	Reader() Reader

	// Watermark returns the time the index last reflected the filesystem.
	Watermark() (time.Time, error)

	// SetWatermark records t as the new watermark.
	SetWatermark(t time.Time) error

	// DocCount returns the number of live documents.
	DocCount() (uint64, error)

	// Generation returns the latest committed generation.
	Generation() Generation

	// Path returns the index location, or "" for an in-memory index.
	Path() string

	// Close releases the index.
	Close() error
}
