package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigPathCmd(t *testing.T) {
	env := newCLIEnv(t)

	stdout, _, err := env.exec(t, "config", "path")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(env.home, ".config", "foldersearch", "config.yaml"), strings.TrimSpace(stdout))
}

func TestConfigInitCmd(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.home, ".config", "foldersearch", "config.yaml")

	// When: init runs on a clean machine
	_, _, err := env.exec(t, "config", "init")
	require.NoError(t, err)
	assert.FileExists(t, path)

	// When: init runs again without --force
	_, stderr, err := env.exec(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, stderr, "--force")

	// When: forced, the old file is backed up
	stdout, _, err := env.exec(t, "config", "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Backed up")

	stdout, _, err = env.exec(t, "config", "backups")
	require.NoError(t, err)
	assert.Contains(t, stdout, "config.yaml.bak.")
}

func TestConfigShowCmd_IncludesFolderConfig(t *testing.T) {
	env := newCLIEnv(t)
	folder := writeFolder(t, map[string]string{
		".foldersearch.yaml": "search:\n  result_cap: 42\n",
	})

	stdout, _, err := env.exec(t, "config", "show", folder)
	require.NoError(t, err)
	assert.Contains(t, stdout, "result_cap: 42")

	stdout, _, err = env.exec(t, "config", "show", "--json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"result_cap": 10000`)
}

func TestConfigShowCmd_InvalidConfig(t *testing.T) {
	env := newCLIEnv(t)
	folder := writeFolder(t, map[string]string{
		".foldersearch.yaml": "index:\n  max_content_bytes: -1\n",
	})

	_, stderr, err := env.exec(t, "config", "show", folder)
	require.Error(t, err)
	assert.Contains(t, stderr, "max_content_bytes")
}

func TestConfigRestoreCmd(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(env.home, ".config", "foldersearch", "config.yaml")

	// Given: a backed-up config that was later replaced
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("search:\n  result_cap: 7\n"), 0o644))
	_, _, err := env.exec(t, "config", "init", "--force")
	require.NoError(t, err)

	// When: restoring the newest backup
	_, _, err = env.exec(t, "config", "restore")
	require.NoError(t, err)

	// Then: the original contents are back
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "result_cap: 7")
}

func TestConfigRestoreCmd_NoBackups(t *testing.T) {
	env := newCLIEnv(t)

	_, stderr, err := env.exec(t, "config", "restore")
	require.Error(t, err)
	assert.Contains(t, stderr, "ERR_101_CONFIG_NOT_FOUND")
}
