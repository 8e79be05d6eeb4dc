package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
)

// Query is a compiled engine query.
type Query = query.Query

// ParseTermQuery parses s with the engine's query-string syntax.
// Unqualified terms search the contents field.
func ParseTermQuery(s string) (Query, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fserrors.New(fserrors.ErrCodeQueryEmpty, "query is empty", nil)
	}

	q := bleve.NewQueryStringQuery(s)
	if _, err := q.Parse(); err != nil {
		return nil, fserrors.New(fserrors.ErrCodeInvalidQuery,
			fmt.Sprintf("cannot parse query %q", s), err).
			WithDetail("query", s)
	}
	return q, nil
}

// PhraseQuery matches s as an exact phrase in contents. s is quoted before
// parsing; embedded double quotes are escaped.
func PhraseQuery(s string) (Query, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fserrors.New(fserrors.ErrCodeQueryEmpty, "query is empty", nil)
	}

	quoted := `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	q, err := ParseTermQuery(quoted)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// RegexQuery matches indexed contents terms against pattern. The pattern is
// passed through unmodified; it must compile as a Go regular expression.
func RegexQuery(pattern string) (Query, error) {
	if pattern == "" {
		return nil, fserrors.New(fserrors.ErrCodeQueryEmpty, "regex pattern is empty", nil)
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, fserrors.New(fserrors.ErrCodeInvalidQuery,
			fmt.Sprintf("invalid regex %q", pattern), err).
			WithDetail("query", pattern)
	}

	q := bleve.NewRegexpQuery(pattern)
	q.SetField(FieldContents)
	return q, nil
}

// MatchAllQuery matches every live document.
func MatchAllQuery() Query {
	return bleve.NewMatchAllQuery()
}
