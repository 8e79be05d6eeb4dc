package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
)

const (
	// ProjectConfigName is the per-folder configuration file.
	ProjectConfigName = ".foldersearch.yaml"

	// projectConfigAlt is accepted when ProjectConfigName is absent.
	projectConfigAlt = ".foldersearch.yml"

	// DefaultMaxContentBytes caps how much of each file is stored.
	DefaultMaxContentBytes int64 = 10 * 1024 * 1024

	// DefaultResultCap caps the hits returned per query string.
	DefaultResultCap = 10000

	// DefaultEnumerationCap caps how many stored paths a sync pass considers for deletion.
	DefaultEnumerationCap = 10000

	// DefaultWatchDebounce is the quiet period before a watch-triggered sync.
	DefaultWatchDebounce = "500ms"
)

// Config represents the complete foldersearch configuration.
type Config struct {
	Version int          `yaml:"version" json:"version"`
	Index   IndexConfig  `yaml:"index" json:"index"`
	Paths   PathsConfig  `yaml:"paths" json:"paths"`
	Search  SearchConfig `yaml:"search" json:"search"`
	Watch   WatchConfig  `yaml:"watch" json:"watch"`
	Server  ServerConfig `yaml:"server" json:"server"`
}

// IndexConfig configures where indexes live and how much each pass stores.
type IndexConfig struct {
	// Dir holds one index directory per target folder.
	Dir string `yaml:"dir" json:"dir"`

	// MaxContentBytes is the stored prefix length per file. Longer files are truncated.
	MaxContentBytes int64 `yaml:"max_content_bytes" json:"max_content_bytes"`

	// EnumerationCap bounds the match-all enumeration used for deletion detection.
	EnumerationCap int `yaml:"enumeration_cap" json:"enumeration_cap"`
}

// PathsConfig configures which files a scan skips. Empty means every regular file.
type PathsConfig struct {
	Exclude          []string `yaml:"exclude" json:"exclude"`
	RespectGitignore bool     `yaml:"respect_gitignore" json:"respect_gitignore"`
}

// SearchConfig configures query dispatch.
type SearchConfig struct {
	ResultCap int `yaml:"result_cap" json:"result_cap"`
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	Debounce string `yaml:"debounce" json:"debounce"`
}

// ServerConfig configures logging for long-running modes.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Dir:             defaultIndexDir(),
			MaxContentBytes: DefaultMaxContentBytes,
			EnumerationCap:  DefaultEnumerationCap,
		},
		Paths: PathsConfig{
			Exclude: []string{},
		},
		Search: SearchConfig{
			ResultCap: DefaultResultCap,
		},
		Watch: WatchConfig{
			Debounce: DefaultWatchDebounce,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// defaultIndexDir returns ~/.foldersearch/indexes.
func defaultIndexDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".foldersearch", "indexes")
	}
	return filepath.Join(home, ".foldersearch", "indexes")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/foldersearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/foldersearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "foldersearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "foldersearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "foldersearch", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var parsed Config
	if err := readYAML(configPath, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// Load resolves the configuration for a target folder.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/foldersearch/config.yaml)
//  3. Project config (.foldersearch.yaml in the folder)
//  4. Environment variables (FOLDERSEARCH_*)
//
// folder may be empty, in which case no project file is read.
func Load(folder string) (*Config, error) {
	cfg := NewConfig()

	userCfg, err := LoadUserConfig()
	if err != nil {
		return nil, err
	}
	if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if folder != "" {
		if err := cfg.loadFromFile(folder); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile merges .foldersearch.yaml (or .yml) from dir when present.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ProjectConfigName, projectConfigAlt} {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		var parsed Config
		if err := readYAML(path, &parsed); err != nil {
			return err
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

func readYAML(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return fserrors.New(fserrors.ErrCodeConfigPermission, "cannot read config file", err).
				WithDetail("path", path)
		}
		return fserrors.ConfigError("failed to read config file", err).WithDetail("path", path)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fserrors.ConfigError("failed to parse config file", err).
			WithDetail("path", path).
			WithSuggestion("Check the YAML syntax of " + path)
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Index.Dir != "" {
		c.Index.Dir = expandHome(other.Index.Dir)
	}
	if other.Index.MaxContentBytes != 0 {
		c.Index.MaxContentBytes = other.Index.MaxContentBytes
	}
	if other.Index.EnumerationCap != 0 {
		c.Index.EnumerationCap = other.Index.EnumerationCap
	}

	// Exclusions accumulate across layers.
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}
	if other.Paths.RespectGitignore {
		c.Paths.RespectGitignore = true
	}

	if other.Search.ResultCap != 0 {
		c.Search.ResultCap = other.Search.ResultCap
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies FOLDERSEARCH_* environment variable overrides.
// Unparsable numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FOLDERSEARCH_INDEX_DIR"); v != "" {
		c.Index.Dir = expandHome(v)
	}
	if v := os.Getenv("FOLDERSEARCH_MAX_CONTENT_BYTES"); v != "" {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			c.Index.MaxContentBytes = n
		}
	}
	if v := os.Getenv("FOLDERSEARCH_RESULT_CAP"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Search.ResultCap = n
		}
	}
	if v := os.Getenv("FOLDERSEARCH_ENUMERATION_CAP"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Index.EnumerationCap = n
		}
	}
	if v := os.Getenv("FOLDERSEARCH_RESPECT_GITIGNORE"); v != "" {
		c.Paths.RespectGitignore = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("FOLDERSEARCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Index.Dir == "" {
		return invalid("index.dir must not be empty")
	}
	if c.Index.MaxContentBytes <= 0 {
		return invalid(fmt.Sprintf("index.max_content_bytes must be positive, got %d", c.Index.MaxContentBytes))
	}
	if c.Index.EnumerationCap <= 0 {
		return invalid(fmt.Sprintf("index.enumeration_cap must be positive, got %d", c.Index.EnumerationCap))
	}
	if c.Search.ResultCap <= 0 {
		return invalid(fmt.Sprintf("search.result_cap must be positive, got %d", c.Search.ResultCap))
	}
	if _, err := c.WatchDebounce(); err != nil {
		return invalid(fmt.Sprintf("watch.debounce must be a positive duration, got %q", c.Watch.Debounce))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return invalid(fmt.Sprintf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel))
	}
	return nil
}

func invalid(msg string) error {
	return fserrors.New(fserrors.ErrCodeConfigInvalid, msg, nil)
}

// WatchDebounce parses Watch.Debounce.
func (c *Config) WatchDebounce() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %s", d)
	}
	return d, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fserrors.InternalError("failed to marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fserrors.ConfigError("failed to create config directory", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fserrors.ConfigError("failed to write config file", err).WithDetail("path", path)
	}
	return nil
}

// expandHome turns a leading ~ into the user's home directory.
func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
