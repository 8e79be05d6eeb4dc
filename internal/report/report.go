// Package report renders search results as a static HTML page.
package report

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"

	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
	"github.com/Aman-CERP/foldersearch/internal/search"
)

const pageTemplate = `<!DOCTYPE html><html><head><title>Search Report</title></head><body><h1>Search Report</h1><ul>{{range .}}<li><b>File:</b> {{.Path}}</li>{{end}}</ul></body></html>`

var page = template.Must(template.New("report").Parse(pageTemplate))

const fallbackFileName = "search_report.html"

// FileName returns the report file name for a search mode.
func FileName(mode search.Mode) string {
	switch mode {
	case search.ModeSingleTerm:
		return "search_terms_report.html"
	case search.ModePhrase:
		return "search_phrases_report.html"
	case search.ModeRegex:
		return "search_regex_report.html"
	default:
		return fallbackFileName
	}
}

// FileNames lists every name FileName can return.
func FileNames() []string {
	return []string{
		FileName(search.ModeSingleTerm),
		FileName(search.ModePhrase),
		FileName(search.ModeRegex),
		fallbackFileName,
	}
}

// Write renders one list item per hit, in order. Paths are HTML-escaped.
func Write(w io.Writer, hits []search.Hit) error {
	if err := page.Execute(w, hits); err != nil {
		return fserrors.New(fserrors.ErrCodeInternal, "failed to render report", err)
	}
	return nil
}

// WriteFile writes the report for mode into dir and returns the file path.
// An existing report with the same name is replaced.
func WriteFile(dir string, mode search.Mode, hits []search.Hit) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fserrors.IOError(fmt.Sprintf("failed to create report directory %s", dir), err)
	}

	path := filepath.Join(dir, FileName(mode))
	f, err := os.Create(path)
	if err != nil {
		return "", fserrors.New(fserrors.ErrCodeFilePermission,
			fmt.Sprintf("failed to create report %s", path), err)
	}

	if err := Write(f, hits); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fserrors.IOError(fmt.Sprintf("failed to write report %s", path), err)
	}
	return path, nil
}
