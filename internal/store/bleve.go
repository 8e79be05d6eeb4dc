package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveindex "github.com/blevesearch/bleve_index_api"

	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
)

// ContentsAnalyzerName is the analyzer applied to the contents field:
// unicode word segmentation plus lowercasing, no stemming or stop words.
const ContentsAnalyzerName = "contents_analyzer"

// lockRetryDelay is how often a blocked writer retries the cross-process lock.
const lockRetryDelay = 50 * time.Millisecond

// unsyncedMark is the directory mtime of an index that has never completed a
// pass. Watermark reports it as the zero time, so an interrupted first pass is
// retried in full on the next open.
var unsyncedMark = time.Unix(0, 0)

// BleveIndex implements Index on top of a bleve v2 (scorch) index.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool

	writerMu sync.Mutex
	lock     *FileLock

	generation atomic.Uint64

	// memWatermark stands in for the directory mtime of in-memory indexes.
	memWatermark time.Time
}

// bleveDocument is the document structure handed to bleve's mapper.
type bleveDocument struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}

// Open opens the index at path, creating it when the directory does not exist.
// created reports whether a new index was built. An existing directory is opened
// as-is: its schema is not compared with the one this package would create.
// If path is empty, an in-memory index is created.
func Open(path string) (idx *BleveIndex, created bool, err error) {
	indexMapping, err := newIndexMapping()
	if err != nil {
		return nil, false, fserrors.New(fserrors.ErrCodeIndexFailed, "failed to create index mapping", err)
	}

	var bi bleve.Index
	switch {
	case path == "":
		bi, err = bleve.NewMemOnly(indexMapping)
		created = true
	case dirExists(path):
		bi, err = bleve.Open(path)
		if err != nil {
			return nil, false, fserrors.New(fserrors.ErrCodeCorruptIndex,
				fmt.Sprintf("failed to open index at %s", path), err).
				WithDetail("path", path).
				WithSuggestion("remove the index directory and run the command again to rebuild it")
		}
	default:
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, false, fserrors.IOError(fmt.Sprintf("failed to create directory %s", filepath.Dir(path)), mkErr)
		}
		bi, err = bleve.New(path, indexMapping)
		created = true
	}
	if err != nil {
		return nil, false, fserrors.New(fserrors.ErrCodeIndexFailed,
			fmt.Sprintf("failed to create index at %q", path), err)
	}

	b := &BleveIndex{
		index: bi,
		path:  path,
	}
	if path != "" {
		b.lock = NewFileLock(LockPath(path))
		if created {
			if err := b.SetWatermark(time.Time{}); err != nil {
				_ = bi.Close()
				return nil, false, err
			}
		}
	}

	slog.Debug("index_opened",
		slog.String("path", path),
		slog.Bool("created", created))

	return b, created, nil
}

// newIndexMapping builds the two-field schema: path as an exact-match stored
// keyword, contents as stored full text with positions for phrase queries.
func newIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(ContentsAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	pathField := bleve.NewKeywordFieldMapping()
	pathField.Store = true
	pathField.IncludeInAll = false

	contentsField := bleve.NewTextFieldMapping()
	contentsField.Analyzer = ContentsAnalyzerName
	contentsField.Store = true
	contentsField.IncludeTermVectors = true
	contentsField.IncludeInAll = false

	docMapping := bleve.NewDocumentStaticMapping()
	docMapping.AddFieldMappingsAt(FieldPath, pathField)
	docMapping.AddFieldMappingsAt(FieldContents, contentsField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = ContentsAnalyzerName
	indexMapping.DefaultField = FieldContents
	indexMapping.IndexDynamic = false
	indexMapping.StoreDynamic = false

	return indexMapping, nil
}

// Writer acquires the exclusive writer. Inside one process writers queue on a
// mutex; across processes they queue on a lock file next to the index directory.
func (b *BleveIndex) Writer(ctx context.Context) (Writer, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	b.writerMu.Lock()

	if b.lock != nil {
		if err := b.lock.LockContext(ctx, lockRetryDelay); err != nil {
			b.writerMu.Unlock()
			if ctx.Err() != nil {
				return nil, fserrors.New(fserrors.ErrCodeSyncAborted, "cancelled while waiting for writer lock", ctx.Err())
			}
			return nil, fserrors.New(fserrors.ErrCodeIndexLocked,
				fmt.Sprintf("failed to acquire writer lock for %s", b.path), err).
				WithDetail("lock", b.lock.Path()).
				WithSuggestion("another process is synchronizing this index; wait for it to finish")
		}
	}

	return &bleveWriter{
		idx:   b,
		batch: b.index.NewBatch(),
	}, nil
}

// Reader returns a reader over the latest committed generation.
func (b *BleveIndex) Reader() Reader {
	return &bleveReader{idx: b}
}

// Watermark returns the index directory's modification time. The directory is
// only touched by SetWatermark after creation; bleve keeps its segments in a
// subdirectory. An index that never completed a pass reports the zero time.
func (b *BleveIndex) Watermark() (time.Time, error) {
	if b.path == "" {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return b.memWatermark, nil
	}

	info, err := os.Stat(b.path)
	if err != nil {
		return time.Time{}, fserrors.IOError(fmt.Sprintf("failed to stat index directory %s", b.path), err)
	}
	if !info.ModTime().After(unsyncedMark) {
		return time.Time{}, nil
	}
	return info.ModTime(), nil
}

// SetWatermark stamps t onto the index directory. The zero time resets the
// index to the never-synced state.
func (b *BleveIndex) SetWatermark(t time.Time) error {
	if b.path == "" {
		b.mu.Lock()
		b.memWatermark = t
		b.mu.Unlock()
		return nil
	}

	if t.IsZero() {
		t = unsyncedMark
	}
	if err := os.Chtimes(b.path, t, t); err != nil {
		return fserrors.IOError(fmt.Sprintf("failed to record watermark on %s", b.path), err)
	}
	return nil
}

// DocCount returns the number of live documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	n, err := b.index.DocCount()
	if err != nil {
		return 0, fserrors.New(fserrors.ErrCodeIndexFailed, "failed to count documents", err)
	}
	return n, nil
}

// Generation returns the latest committed generation.
func (b *BleveIndex) Generation() Generation {
	return Generation(b.generation.Load())
}

// Path returns the index directory.
func (b *BleveIndex) Path() string {
	return b.path
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	if b.lock != nil && b.lock.IsLocked() {
		slog.Warn("index_closed_with_open_writer", slog.String("lock", b.lock.Path()))
		_ = b.lock.Unlock()
	}
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

func (b *BleveIndex) checkOpen() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fserrors.New(fserrors.ErrCodeIndexFailed, "index is closed", nil)
	}
	return nil
}

// bleveWriter stages mutations in a single bleve batch.
type bleveWriter struct {
	idx    *BleveIndex
	batch  *bleve.Batch
	staged int
	done   bool
}

func (w *bleveWriter) Add(doc Document) error {
	if w.done {
		return fserrors.New(fserrors.ErrCodeIndexFailed, "writer already released", nil)
	}
	if doc.Path == "" {
		return fserrors.ValidationError("document path is empty", nil)
	}

	if err := w.batch.Index(doc.Path, bleveDocument{Path: doc.Path, Contents: doc.Contents}); err != nil {
		return fserrors.New(fserrors.ErrCodeIndexFailed,
			fmt.Sprintf("failed to stage document %s", doc.Path), err)
	}
	w.staged++
	return nil
}

func (w *bleveWriter) DeleteByPath(path string) error {
	if w.done {
		return fserrors.New(fserrors.ErrCodeIndexFailed, "writer already released", nil)
	}

	w.batch.Delete(path)
	w.staged++
	return nil
}

func (w *bleveWriter) Staged() int {
	return w.staged
}

// Commit applies the batch. bleve applies a batch as one unit: either every
// operation becomes visible or, on error, none does.
func (w *bleveWriter) Commit() (Generation, error) {
	if w.done {
		return 0, fserrors.New(fserrors.ErrCodeIndexFailed, "writer already released", nil)
	}
	defer w.release()

	if err := w.idx.checkOpen(); err != nil {
		return 0, err
	}

	if w.batch.Size() == 0 {
		return w.idx.Generation(), nil
	}

	if err := w.idx.index.Batch(w.batch); err != nil {
		return 0, commitError(w.idx.path, err)
	}

	gen := Generation(w.idx.generation.Add(1))
	slog.Debug("index_committed",
		slog.String("path", w.idx.path),
		slog.Int("operations", w.staged),
		slog.Uint64("generation", uint64(gen)))
	return gen, nil
}

// commitError classifies a failed batch. A full disk is fatal and gets its
// own code; anything else is a generic index failure.
func commitError(path string, err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fserrors.New(fserrors.ErrCodeDiskFull, "no space left to commit index batch", err).
			WithDetail("path", path).
			WithSuggestion("free disk space, then run the sync again")
	}
	return fserrors.New(fserrors.ErrCodeIndexFailed, "failed to commit index batch", err)
}

func (w *bleveWriter) Abort() error {
	if w.done {
		return nil
	}
	w.batch.Reset()
	return w.release()
}

func (w *bleveWriter) release() error {
	w.done = true
	defer w.idx.writerMu.Unlock()

	if w.idx.lock != nil {
		return w.idx.lock.Unlock()
	}
	return nil
}

// bleveReader searches the live index. bleve serves every search from the
// latest committed snapshot, so a reader never lags behind a commit.
type bleveReader struct {
	idx *BleveIndex
}

func (r *bleveReader) Search(ctx context.Context, q Query, limit int) (*SearchResult, error) {
	if err := r.idx.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultResultCap
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := r.idx.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fserrors.New(fserrors.ErrCodeSearchFailed, "search failed", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, Hit{ID: h.ID, Score: h.Score})
	}

	return &SearchResult{Hits: hits, Total: res.Total}, nil
}

// Document loads the stored fields of id. bleve returns no document for an ID
// that has been deleted, which is how tombstoned hits are recognised.
func (r *bleveReader) Document(id string) (Document, bool, error) {
	if err := r.idx.checkOpen(); err != nil {
		return Document{}, false, err
	}

	d, err := r.idx.index.Document(id)
	if err != nil {
		return Document{}, false, fserrors.New(fserrors.ErrCodeSearchFailed,
			fmt.Sprintf("failed to load document %s", id), err)
	}
	if d == nil {
		return Document{}, false, nil
	}

	var doc Document
	d.VisitFields(func(f bleveindex.Field) {
		switch f.Name() {
		case FieldPath:
			doc.Path = string(f.Value())
		case FieldContents:
			doc.Contents = string(f.Value())
		}
	})
	return doc, true, nil
}

func (r *bleveReader) AllPaths(ctx context.Context, limit int) ([]string, uint64, error) {
	if err := r.idx.checkOpen(); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = DefaultResultCap
	}

	req := bleve.NewSearchRequestOptions(MatchAllQuery(), limit, 0, false)
	req.Fields = []string{FieldPath}

	res, err := r.idx.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, 0, fserrors.New(fserrors.ErrCodeSearchFailed, "failed to enumerate stored paths", err)
	}

	paths := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		path, ok := h.Fields[FieldPath].(string)
		if !ok || path == "" {
			path = h.ID
		}
		paths = append(paths, path)
	}

	return paths, res.Total, nil
}

func (r *bleveReader) Generation() Generation {
	return r.idx.Generation()
}

// dirExists checks if a directory exists at the given path.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Verify interface implementation
var (
	_ Index  = (*BleveIndex)(nil)
	_ Writer = (*bleveWriter)(nil)
	_ Reader = (*bleveReader)(nil)
)
