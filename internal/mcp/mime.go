package mcp

import (
	"mime"
	"path/filepath"
	"strings"
)

// textTypes covers source and config extensions the system MIME table
// usually lacks or maps to application/octet-stream.
var textTypes = map[string]string{
	".go":   "text/x-go",
	".mod":  "text/x-go.mod",
	".ts":   "text/typescript",
	".tsx":  "text/typescript",
	".py":   "text/x-python",
	".rs":   "text/x-rust",
	".rb":   "text/x-ruby",
	".java": "text/x-java",
	".c":    "text/x-c",
	".h":    "text/x-c",
	".cpp":  "text/x-c++",
	".hpp":  "text/x-c++",
	".sh":   "text/x-sh",
	".sql":  "text/x-sql",
	".md":   "text/markdown",
	".yaml": "text/x-yaml",
	".yml":  "text/x-yaml",
	".toml": "text/x-toml",
	".rst":  "text/x-rst",
	".log":  "text/plain",
}

var specialFilenames = map[string]string{
	"Dockerfile": "text/x-dockerfile",
	"Makefile":   "text/x-makefile",
}

// MimeTypeForPath returns the MIME type for an indexed file. Everything the
// index stores is valid UTF-8, so unknown types fall back to text/plain.
func MimeTypeForPath(path string) string {
	if t, ok := specialFilenames[filepath.Base(path)]; ok {
		return t
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "text/plain"
	}
	if t, ok := textTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.IndexByte(t, ';'); i >= 0 {
			t = t[:i]
		}
		return t
	}
	return "text/plain"
}
