package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
	"github.com/Aman-CERP/foldersearch/internal/store"
)

func newIndex(t *testing.T, docs ...store.Document) *store.BleveIndex {
	t.Helper()
	idx, _, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	w, err := idx.Writer(context.Background())
	require.NoError(t, err)
	for _, d := range docs {
		require.NoError(t, w.Add(d))
	}
	_, err = w.Commit()
	require.NoError(t, err)
	return idx
}

func paths(hits []Hit) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.Path)
	}
	return out
}

func TestDispatcher_SingleTerm(t *testing.T) {
	// Given: an index with two documents
	idx := newIndex(t,
		store.Document{Path: "/d/a.txt", Contents: "The Quick fox"},
		store.Document{Path: "/d/b.txt", Contents: "slow turtle"},
	)
	d := NewDispatcher(idx.Reader())

	// When: searching a term
	hits, err := d.Search(context.Background(), ModeSingleTerm, "quick")

	// Then: the matching document is returned with its stored contents
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, Hit{Path: "/d/a.txt", Contents: "The Quick fox"}, hits[0])
}

func TestDispatcher_Phrase(t *testing.T) {
	idx := newIndex(t,
		store.Document{Path: "/d/a.txt", Contents: "say hello world now"},
		store.Document{Path: "/d/b.txt", Contents: "world hello"},
	)
	d := NewDispatcher(idx.Reader())

	hits, err := d.Search(context.Background(), ModePhrase, "hello world")

	require.NoError(t, err)
	assert.Equal(t, []string{"/d/a.txt"}, paths(hits))
}

func TestDispatcher_Regex(t *testing.T) {
	idx := newIndex(t,
		store.Document{Path: "/d/a.txt", Contents: "code err404 raised"},
		store.Document{Path: "/d/b.txt", Contents: "no problems"},
	)
	d := NewDispatcher(idx.Reader())

	hits, err := d.Search(context.Background(), ModeRegex, "err[0-9]+")

	require.NoError(t, err)
	assert.Equal(t, []string{"/d/a.txt"}, paths(hits))
}

func TestDispatcher_InvalidRegexFailsWithoutFallback(t *testing.T) {
	idx := newIndex(t, store.Document{Path: "/d/a.txt", Contents: "a(b"})
	d := NewDispatcher(idx.Reader())

	hits, err := d.Search(context.Background(), ModeRegex, "a(b")

	require.Error(t, err)
	assert.Nil(t, hits)
	assert.Equal(t, fserrors.ErrCodeInvalidQuery, fserrors.GetCode(err))
}

func TestDispatcher_AccumulatesAcrossQueries(t *testing.T) {
	// Given: documents matching different terms
	idx := newIndex(t,
		store.Document{Path: "/d/a.txt", Contents: "apple"},
		store.Document{Path: "/d/b.txt", Contents: "banana apple"},
	)
	d := NewDispatcher(idx.Reader())

	// When: submitting two terms
	hits, err := d.Search(context.Background(), ModeSingleTerm, "banana", "apple")

	// Then: hits are concatenated in submission order without dedup
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "/d/b.txt", hits[0].Path)
	assert.ElementsMatch(t, []string{"/d/a.txt", "/d/b.txt"}, paths(hits[1:]))
}

func TestDispatcher_NoMatchesReturnsEmptySlice(t *testing.T) {
	idx := newIndex(t, store.Document{Path: "/d/a.txt", Contents: "apple"})
	d := NewDispatcher(idx.Reader())

	hits, err := d.Search(context.Background(), ModeSingleTerm, "zebra")

	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestDispatcher_ResultCap(t *testing.T) {
	var docs []store.Document
	for _, p := range []string{"/a", "/b", "/c", "/d"} {
		docs = append(docs, store.Document{Path: p, Contents: "common"})
	}
	idx := newIndex(t, docs...)
	d := NewDispatcher(idx.Reader(), WithResultCap(2))

	hits, err := d.Search(context.Background(), ModeSingleTerm, "common")

	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestDispatcher_Query_Classifies(t *testing.T) {
	idx := newIndex(t,
		store.Document{Path: "/d/a.txt", Contents: "red green blue"},
	)
	d := NewDispatcher(idx.Reader())

	mode, hits, err := d.Query(context.Background(), "green blue")
	require.NoError(t, err)
	assert.Equal(t, ModePhrase, mode)
	assert.Len(t, hits, 1)

	mode, hits, err = d.Query(context.Background(), "gr.en")
	require.NoError(t, err)
	assert.Equal(t, ModeRegex, mode)
	assert.Len(t, hits, 1)
}

func TestDispatcher_SeesLatestCommit(t *testing.T) {
	// Given: a dispatcher created before a document is added
	idx := newIndex(t)
	d := NewDispatcher(idx.Reader())

	w, err := idx.Writer(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.Add(store.Document{Path: "/late.txt", Contents: "latecomer"}))
	_, err = w.Commit()
	require.NoError(t, err)

	// Then: the new document is visible immediately in every mode
	hits, err := d.Search(context.Background(), ModeSingleTerm, "latecomer")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
	hits, err = d.Search(context.Background(), ModeRegex, "late.*")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

// tombstoneReader returns hits for documents that no longer resolve.
type tombstoneReader struct {
	hits []store.Hit
	live map[string]store.Document
	err  error
}

func (r *tombstoneReader) Search(_ context.Context, _ store.Query, limit int) (*store.SearchResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &store.SearchResult{Hits: r.hits, Total: uint64(len(r.hits))}, nil
}

func (r *tombstoneReader) Document(id string) (store.Document, bool, error) {
	doc, ok := r.live[id]
	return doc, ok, nil
}

func (r *tombstoneReader) AllPaths(context.Context, int) ([]string, uint64, error) {
	return nil, 0, nil
}

func (r *tombstoneReader) Generation() store.Generation { return 0 }

func TestDispatcher_DropsTombstonedHits(t *testing.T) {
	// Given: a search that returns a hit whose document has since been deleted
	reader := &tombstoneReader{
		hits: []store.Hit{{ID: "/gone"}, {ID: "/kept"}},
		live: map[string]store.Document{
			"/kept": {Path: "/kept", Contents: "still here"},
		},
	}
	d := NewDispatcher(reader)

	// When: searching
	hits, err := d.Search(context.Background(), ModeSingleTerm, "anything")

	// Then: only the live document is returned
	require.NoError(t, err)
	assert.Equal(t, []Hit{{Path: "/kept", Contents: "still here"}}, hits)
}

func TestDispatcher_MissingFieldsDefaultEmpty(t *testing.T) {
	reader := &tombstoneReader{
		hits: []store.Hit{{ID: "/odd"}},
		live: map[string]store.Document{"/odd": {}},
	}
	d := NewDispatcher(reader)

	hits, err := d.Search(context.Background(), ModeSingleTerm, "x")

	require.NoError(t, err)
	assert.Equal(t, []Hit{{}}, hits)
}

func TestDispatcher_EngineErrorIsSearchFailed(t *testing.T) {
	reader := &tombstoneReader{err: errors.New("segment unreadable")}
	d := NewDispatcher(reader)

	_, err := d.Search(context.Background(), ModeSingleTerm, "x")

	require.Error(t, err)
	assert.Equal(t, fserrors.ErrCodeSearchFailed, fserrors.GetCode(err))
}

// countingReader records how many documents were resolved.
type countingReader struct {
	store.Reader
	resolved int
}

func (r *countingReader) Document(id string) (store.Document, bool, error) {
	r.resolved++
	return r.Reader.Document(id)
}

func TestDispatcher_Top(t *testing.T) {
	var docs []store.Document
	for _, p := range []string{"/a", "/b", "/c", "/d", "/e"} {
		docs = append(docs, store.Document{Path: p, Contents: "common"})
	}
	idx := newIndex(t, docs...)

	tests := []struct {
		name      string
		resultCap int
		limit     int
		wantHits  int
		wantTotal uint64
	}{
		{"limit below cap", 100, 2, 2, 5},
		{"limit above cap", 3, 50, 3, 5},
		{"unset limit uses cap", 4, 0, 4, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a dispatcher whose reader counts resolved documents
			reader := &countingReader{Reader: idx.Reader()}
			d := NewDispatcher(reader, WithResultCap(tt.resultCap))

			// When: asking for the top hits
			hits, total, err := d.Top(context.Background(), ModeRegex, ".*", tt.limit)

			// Then: only the returned hits were loaded, and total counts every match
			require.NoError(t, err)
			assert.Len(t, hits, tt.wantHits)
			assert.Equal(t, tt.wantHits, reader.resolved)
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestDispatcher_Top_InvalidQuery(t *testing.T) {
	d := NewDispatcher(newIndex(t).Reader())

	_, _, err := d.Top(context.Background(), ModeRegex, "(", 10)

	require.Error(t, err)
	assert.Equal(t, fserrors.ErrCodeInvalidQuery, fserrors.GetCode(err))
}
