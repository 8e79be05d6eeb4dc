package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cliEnv isolates a test from the user's home, config and environment.
type cliEnv struct {
	home     string
	indexDir string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")
	for _, key := range []string{
		"FOLDERSEARCH_INDEX_DIR",
		"FOLDERSEARCH_MAX_CONTENT_BYTES",
		"FOLDERSEARCH_RESULT_CAP",
		"FOLDERSEARCH_ENUMERATION_CAP",
		"FOLDERSEARCH_RESPECT_GITIGNORE",
		"FOLDERSEARCH_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	return &cliEnv{home: home, indexDir: filepath.Join(home, "indexes")}
}

// exec runs the CLI in-process and returns stdout, stderr and the error.
func (e *cliEnv) exec(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	full := append([]string{"--index-dir", e.indexDir}, args...)
	err := run(context.Background(), root, full, &stderr)
	return stdout.String(), stderr.String(), err
}

// fixtureTime backdates fixture files past the watermark slack so later
// passes report them as unchanged.
var fixtureTime = time.Now().Add(-time.Hour)

// writeFolder creates a folder holding files, all stamped with fixtureTime.
func writeFolder(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		require.NoError(t, os.Chtimes(path, fixtureTime, fixtureTime))
	}
	return dir
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	for _, want := range []string{"search", "sync", "status", "watch", "serve", "logs", "config", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_GlobalFlags(t *testing.T) {
	root := NewRootCmd()

	assert.NotNil(t, root.PersistentFlags().Lookup("index-dir"))
	assert.NotNil(t, root.PersistentFlags().Lookup("debug"))
}

func TestRun_PrintsCodedError(t *testing.T) {
	env := newCLIEnv(t)

	// When: a command fails
	_, stderr, err := env.exec(t, "sync", filepath.Join(env.home, "does-not-exist"))

	// Then: the error is printed in CLI form with its code
	require.Error(t, err)
	assert.Contains(t, stderr, "Error:")
	assert.Contains(t, stderr, "ERR_406_INVALID_PATH")
}

func TestRun_DebugPrintsErrorCause(t *testing.T) {
	env := newCLIEnv(t)

	// When: a command fails with --debug set
	_, stderr, err := env.exec(t, "--debug", "sync", filepath.Join(env.home, "does-not-exist"))

	// Then: the detailed form names the category and the underlying cause
	require.Error(t, err)
	assert.Contains(t, stderr, "ERR_406_INVALID_PATH")
	assert.Contains(t, stderr, "Category: VALIDATION")
	assert.Contains(t, stderr, "Cause:")
}

func TestRun_WritesLogFile(t *testing.T) {
	env := newCLIEnv(t)
	folder := writeFolder(t, map[string]string{"a.txt": "alpha"})

	_, _, err := env.exec(t, "sync", folder)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(env.home, ".foldersearch", "logs", "foldersearch.log"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "sync_complete"))
}

func TestVersionCmd(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"full", []string{"version"}, "foldersearch "},
		{"short", []string{"version", "--short"}, ""},
		{"json", []string{"version", "--json"}, `"version"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := env.exec(t, tt.args...)
			require.NoError(t, err)
			assert.NotEmpty(t, strings.TrimSpace(stdout))
			assert.Contains(t, stdout, tt.want)
		})
	}
}
