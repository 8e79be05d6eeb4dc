package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
)

// isolate points the user config at an empty temp dir and clears env overrides.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, k := range []string{
		"FOLDERSEARCH_INDEX_DIR",
		"FOLDERSEARCH_MAX_CONTENT_BYTES",
		"FOLDERSEARCH_RESULT_CAP",
		"FOLDERSEARCH_ENUMERATION_CAP",
		"FOLDERSEARCH_RESPECT_GITIGNORE",
		"FOLDERSEARCH_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	return xdg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: all defaults should be applied
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, int64(10*1024*1024), cfg.Index.MaxContentBytes)
	assert.Equal(t, 10000, cfg.Index.EnumerationCap)
	assert.Equal(t, 10000, cfg.Search.ResultCap)
	assert.Equal(t, "500ms", cfg.Watch.Debounce)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Empty(t, cfg.Paths.Exclude)
	assert.False(t, cfg.Paths.RespectGitignore)
	assert.True(t, filepath.IsAbs(cfg.Index.Dir))
	assert.Equal(t, "indexes", filepath.Base(cfg.Index.Dir))
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolate(t)

	// When: loading for a folder without a project file
	cfg, err := Load(t.TempDir())

	// Then: defaults are returned
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	isolate(t)
	folder := t.TempDir()
	writeFile(t, filepath.Join(folder, ProjectConfigName), `
index:
  max_content_bytes: 4096
  enumeration_cap: 50
paths:
  exclude: ["**/*.log"]
  respect_gitignore: true
search:
  result_cap: 25
watch:
  debounce: 2s
server:
  log_level: debug
`)

	// When
	cfg, err := Load(folder)

	// Then
	require.NoError(t, err)
	assert.Equal(t, int64(4096), cfg.Index.MaxContentBytes)
	assert.Equal(t, 50, cfg.Index.EnumerationCap)
	assert.Equal(t, []string{"**/*.log"}, cfg.Paths.Exclude)
	assert.True(t, cfg.Paths.RespectGitignore)
	assert.Equal(t, 25, cfg.Search.ResultCap)
	assert.Equal(t, "debug", cfg.Server.LogLevel)

	d, err := cfg.WatchDebounce()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
}

func TestLoad_YmlFallback(t *testing.T) {
	isolate(t)
	folder := t.TempDir()
	writeFile(t, filepath.Join(folder, ".foldersearch.yml"), "search:\n  result_cap: 7\n")

	cfg, err := Load(folder)

	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.ResultCap)
}

func TestLoad_LayerPrecedence(t *testing.T) {
	xdg := isolate(t)
	folder := t.TempDir()

	// Given: user config, project config and env all set the result cap
	writeFile(t, filepath.Join(xdg, "foldersearch", "config.yaml"), `
index:
  dir: /var/lib/foldersearch
search:
  result_cap: 100
paths:
  exclude: ["user/**"]
`)
	writeFile(t, filepath.Join(folder, ProjectConfigName), `
search:
  result_cap: 200
paths:
  exclude: ["project/**"]
`)
	t.Setenv("FOLDERSEARCH_RESULT_CAP", "300")

	// When
	cfg, err := Load(folder)

	// Then: env wins, project beats user, untouched user values survive
	require.NoError(t, err)
	assert.Equal(t, 300, cfg.Search.ResultCap)
	assert.Equal(t, "/var/lib/foldersearch", cfg.Index.Dir)
	assert.Equal(t, []string{"user/**", "project/**"}, cfg.Paths.Exclude)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	t.Setenv("FOLDERSEARCH_INDEX_DIR", dir)
	t.Setenv("FOLDERSEARCH_MAX_CONTENT_BYTES", "1024")
	t.Setenv("FOLDERSEARCH_ENUMERATION_CAP", "5")
	t.Setenv("FOLDERSEARCH_RESPECT_GITIGNORE", "true")
	t.Setenv("FOLDERSEARCH_LOG_LEVEL", "warn")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Index.Dir)
	assert.Equal(t, int64(1024), cfg.Index.MaxContentBytes)
	assert.Equal(t, 5, cfg.Index.EnumerationCap)
	assert.True(t, cfg.Paths.RespectGitignore)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

func TestLoad_EnvIgnoresGarbageNumbers(t *testing.T) {
	isolate(t)
	t.Setenv("FOLDERSEARCH_RESULT_CAP", "lots")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, DefaultResultCap, cfg.Search.ResultCap)
}

func TestLoad_ExpandsHomeInIndexDir(t *testing.T) {
	isolate(t)
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("FOLDERSEARCH_INDEX_DIR", "~/somewhere")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "somewhere"), cfg.Index.Dir)
}

func TestLoad_MalformedYAML(t *testing.T) {
	isolate(t)
	folder := t.TempDir()
	writeFile(t, filepath.Join(folder, ProjectConfigName), "search: [unclosed\n")

	// When
	_, err := Load(folder)

	// Then: a config error naming the file
	require.Error(t, err)
	assert.Equal(t, fserrors.ErrCodeConfigInvalid, fserrors.GetCode(err))
	assert.Equal(t, fserrors.CategoryConfig, fserrors.GetCategory(err))
}

func TestLoad_InvalidValuesFailValidation(t *testing.T) {
	isolate(t)
	t.Setenv("FOLDERSEARCH_RESULT_CAP", "0")

	_, err := Load("")

	require.Error(t, err)
	assert.Equal(t, fserrors.ErrCodeConfigInvalid, fserrors.GetCode(err))
	assert.Contains(t, err.Error(), "search.result_cap")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty index dir", func(c *Config) { c.Index.Dir = "" }, "index.dir"},
		{"zero content cap", func(c *Config) { c.Index.MaxContentBytes = 0 }, "index.max_content_bytes"},
		{"negative enumeration cap", func(c *Config) { c.Index.EnumerationCap = -1 }, "index.enumeration_cap"},
		{"zero result cap", func(c *Config) { c.Search.ResultCap = 0 }, "search.result_cap"},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "soon" }, "watch.debounce"},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = "-1s" }, "watch.debounce"},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }, "server.log_level"},
		{"upper-case log level", func(c *Config) { c.Server.LogLevel = "DEBUG" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	xdg := isolate(t)

	// Given: a customised config written as the user config
	cfg := NewConfig()
	cfg.Search.ResultCap = 42
	cfg.Paths.Exclude = []string{"**/tmp/**"}
	require.NoError(t, cfg.WriteYAML(GetUserConfigPath()))

	// When
	loaded, err := Load("")

	// Then
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(xdg, "foldersearch", "config.yaml"))
	assert.Equal(t, 42, loaded.Search.ResultCap)
	assert.Equal(t, []string{"**/tmp/**"}, loaded.Paths.Exclude)
}

func TestGetUserConfigPath(t *testing.T) {
	t.Run("xdg", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		assert.Equal(t, filepath.Join("/xdg", "foldersearch", "config.yaml"), GetUserConfigPath())
		assert.Equal(t, filepath.Join("/xdg", "foldersearch"), GetUserConfigDir())
	})

	t.Run("home fallback", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, err := os.UserHomeDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".config", "foldersearch", "config.yaml"), GetUserConfigPath())
	})
}

func TestLoadUserConfig_Missing(t *testing.T) {
	isolate(t)

	cfg, err := LoadUserConfig()

	assert.NoError(t, err)
	assert.Nil(t, cfg)
	assert.False(t, UserConfigExists())
}
