package logging

import (
	"os"
	"path/filepath"

	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
)

// DefaultLogDir returns ~/.foldersearch/logs, or a temp-dir equivalent without a home.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".foldersearch", "logs")
	}
	return filepath.Join(home, ".foldersearch", "logs")
}

// DefaultLogPath returns the log file every command appends to.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "foldersearch.log")
}

// FindLogFile returns explicit when it exists, else the default log path when it exists.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fserrors.New(fserrors.ErrCodeFileNotFound, "log file not found", err).
				WithDetail("path", explicit)
		}
		return explicit, nil
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err != nil {
		return "", fserrors.New(fserrors.ErrCodeFileNotFound, "no log file found", err).
			WithDetail("path", path).
			WithSuggestion("Run any foldersearch command (add --debug for more detail) to create it")
	}
	return path, nil
}
