package mcp

import "time"

// Tool names.
const (
	ToolSearch       = "search"
	ToolSync         = "sync"
	ToolIndexStatus  = "index_status"
	ToolReadDocument = "read_document"
)

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the query; regex metacharacters make it a regex, spaces make it a phrase, otherwise a single term"`
	Mode  string `json:"mode,omitempty" jsonschema:"force a mode: terms, phrases or regex; default classifies the query"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Mode    string               `json:"mode" jsonschema:"the mode the query ran in"`
	Total   int                  `json:"total" jsonschema:"number of matching files before the limit"`
	Results []SearchResultOutput `json:"results" jsonschema:"matching files in relevance order"`
}

// SearchResultOutput is one matching file.
type SearchResultOutput struct {
	Path    string `json:"path" jsonschema:"absolute path of the file"`
	Snippet string `json:"snippet" jsonschema:"start of the indexed contents"`
}

// SyncInput defines the input schema for the sync tool (no parameters).
type SyncInput struct{}

// SyncOutput summarizes one synchronization pass.
type SyncOutput struct {
	PassID               string `json:"pass_id"`
	Scanned              int    `json:"scanned"`
	Indexed              int    `json:"indexed"`
	Truncated            int    `json:"truncated"`
	Unchanged            int    `json:"unchanged"`
	SkippedUnreadable    int    `json:"skipped_unreadable"`
	Deleted              int    `json:"deleted"`
	EnumerationTruncated bool   `json:"enumeration_truncated"`
	DurationMS           int64  `json:"duration_ms"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Folder     string `json:"folder"`
	Location   string `json:"location"`
	Documents  uint64 `json:"documents"`
	LastSynced string `json:"last_synced" jsonschema:"RFC3339 time of the last completed pass, empty if never"`
	Generation uint64 `json:"generation"`
	AutoSync   bool   `json:"auto_sync" jsonschema:"whether searches sync the folder first"`
}

// ReadDocumentInput defines the input schema for the read_document tool.
type ReadDocumentInput struct {
	Path string `json:"path" jsonschema:"absolute path, or a path relative to the indexed folder"`
}

// ReadDocumentOutput is the stored contents of one file.
type ReadDocumentOutput struct {
	Path     string `json:"path"`
	MIMEType string `json:"mime_type"`
	Contents string `json:"contents" jsonschema:"indexed text; files over the size cap are truncated"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
