// Package search decides how a query string should be interpreted and runs it
// against the document index.
package search

import (
	"fmt"
	"strings"
)

// Mode is how a query string is interpreted.
type Mode int

const (
	// ModeSingleTerm parses the query with the engine's query-string syntax.
	ModeSingleTerm Mode = iota
	// ModePhrase matches the query as an exact sequence of words.
	ModePhrase
	// ModeRegex matches indexed terms against the query as a regular expression.
	ModeRegex
)

// regexMetachars are the characters that make a query a regular expression.
const regexMetachars = `.*+?^${}()|[]\`

// Classify picks the mode for q. The first rule that matches wins:
// any regex metacharacter means ModeRegex, otherwise a space means
// ModePhrase, otherwise ModeSingleTerm.
//
// This is a heuristic: "file.txt" classifies as a regex because of the dot.
func Classify(q string) Mode {
	if strings.ContainsAny(q, regexMetachars) {
		return ModeRegex
	}
	if strings.Contains(q, " ") {
		return ModePhrase
	}
	return ModeSingleTerm
}

// String returns the mode name used by the CLI and MCP tools.
func (m Mode) String() string {
	switch m {
	case ModeSingleTerm:
		return "terms"
	case ModePhrase:
		return "phrases"
	case ModeRegex:
		return "regex"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a mode name back to a Mode. "auto" and "" are not modes;
// callers classify those themselves.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "terms", "term":
		return ModeSingleTerm, nil
	case "phrases", "phrase":
		return ModePhrase, nil
	case "regex":
		return ModeRegex, nil
	default:
		return 0, fmt.Errorf("unknown search mode %q", s)
	}
}
