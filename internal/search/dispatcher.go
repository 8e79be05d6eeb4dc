package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
	"github.com/Aman-CERP/foldersearch/internal/store"
)

// Hit is one matching file.
type Hit struct {
	Path     string `json:"path"`
	Contents string `json:"contents,omitempty"`
}

// Dispatcher turns query strings into engine queries and resolves the hits.
// Every mode reads through the same live reader, which always reflects the
// latest commit.
type Dispatcher struct {
	reader    store.Reader
	resultCap int
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithResultCap bounds the ranked hits requested per query string.
func WithResultCap(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.resultCap = n
		}
	}
}

// NewDispatcher creates a Dispatcher reading from reader.
func NewDispatcher(reader store.Reader, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		reader:    reader,
		resultCap: store.DefaultResultCap,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Query classifies q and runs it.
func (d *Dispatcher) Query(ctx context.Context, q string) (Mode, []Hit, error) {
	mode := Classify(q)
	hits, err := d.Search(ctx, mode, q)
	return mode, hits, err
}

// Search runs every query string in mode and concatenates the hits in
// submission order, each query's hits in relevance order. The same path may
// appear once per query that matched it. An invalid query fails the whole call.
func (d *Dispatcher) Search(ctx context.Context, mode Mode, queries ...string) ([]Hit, error) {
	hits := make([]Hit, 0)
	for _, q := range queries {
		start := time.Now()

		compiled, err := buildQuery(mode, q)
		if err != nil {
			return nil, err
		}

		res, err := d.reader.Search(ctx, compiled, d.resultCap)
		if err != nil {
			return nil, fserrors.Wrap(fserrors.ErrCodeSearchFailed, err)
		}

		resolved, err := d.resolve(res)
		if err != nil {
			return nil, err
		}
		hits = append(hits, resolved...)

		slog.Debug("search_complete",
			slog.String("mode", mode.String()),
			slog.String("query", q),
			slog.Int("hits", len(resolved)),
			slog.Uint64("total", res.Total),
			slog.Duration("duration", time.Since(start)))
	}
	return hits, nil
}

// Top runs one query string in mode and resolves at most limit hits, in
// relevance order. total is the engine's match count, which can exceed the
// hits returned. A non-positive limit falls back to the result cap.
func (d *Dispatcher) Top(ctx context.Context, mode Mode, q string, limit int) (hits []Hit, total uint64, err error) {
	if limit <= 0 || limit > d.resultCap {
		limit = d.resultCap
	}

	compiled, err := buildQuery(mode, q)
	if err != nil {
		return nil, 0, err
	}
	res, err := d.reader.Search(ctx, compiled, limit)
	if err != nil {
		return nil, 0, fserrors.Wrap(fserrors.ErrCodeSearchFailed, err)
	}
	hits, err = d.resolve(res)
	if err != nil {
		return nil, 0, err
	}
	return hits, res.Total, nil
}

// resolve loads each hit's stored fields from the live index. A hit whose
// document was deleted after the search ran is dropped.
func (d *Dispatcher) resolve(res *store.SearchResult) ([]Hit, error) {
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		doc, ok, err := d.reader.Document(h.ID)
		if err != nil {
			return nil, fserrors.Wrap(fserrors.ErrCodeSearchFailed, err)
		}
		if !ok {
			slog.Debug("search_hit_tombstoned", slog.String("id", h.ID))
			continue
		}
		hits = append(hits, Hit{Path: doc.Path, Contents: doc.Contents})
	}
	return hits, nil
}

// buildQuery compiles q for mode.
func buildQuery(mode Mode, q string) (store.Query, error) {
	switch mode {
	case ModeSingleTerm:
		return store.ParseTermQuery(q)
	case ModePhrase:
		return store.PhraseQuery(q)
	case ModeRegex:
		return store.RegexQuery(q)
	default:
		return nil, fserrors.New(fserrors.ErrCodeInvalidQuery, fmt.Sprintf("unsupported search mode %d", int(mode)), nil)
	}
}
