package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingClock returns successive seconds so backups never share a name.
func tickingClock(t *testing.T) {
	t.Helper()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	n := 0
	orig := backupClock
	backupClock = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	t.Cleanup(func() { backupClock = orig })
}

func TestBackupUserConfig(t *testing.T) {
	isolate(t)
	tickingClock(t)

	t.Run("no config exists", func(t *testing.T) {
		backupPath, err := BackupUserConfig()
		require.NoError(t, err)
		assert.Empty(t, backupPath)
	})

	t.Run("backup existing config", func(t *testing.T) {
		content := "version: 1\nsearch:\n  result_cap: 5\n"
		writeFile(t, GetUserConfigPath(), content)

		backupPath, err := BackupUserConfig()

		require.NoError(t, err)
		require.NotEmpty(t, backupPath)
		data, err := os.ReadFile(backupPath)
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
		assert.Equal(t, GetUserConfigDir(), filepath.Dir(backupPath))
	})
}

func TestBackupUserConfig_KeepsNewestBackups(t *testing.T) {
	isolate(t)
	tickingClock(t)
	writeFile(t, GetUserConfigPath(), "version: 1\n")

	// When: backing up more times than MaxBackups
	var created []string
	for i := 0; i < MaxBackups+2; i++ {
		p, err := BackupUserConfig()
		require.NoError(t, err)
		created = append(created, p)
	}

	// Then: only the newest MaxBackups remain, newest first
	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	require.Len(t, backups, MaxBackups)
	assert.Equal(t, created[len(created)-1], backups[0])
	assert.NoFileExists(t, created[0])
}

func TestListUserConfigBackups_NoDir(t *testing.T) {
	isolate(t)

	backups, err := ListUserConfigBackups()

	assert.NoError(t, err)
	assert.Empty(t, backups)
}

func TestRestoreUserConfig(t *testing.T) {
	isolate(t)
	tickingClock(t)

	// Given: a backup of an old config and a newer current config
	writeFile(t, GetUserConfigPath(), "search:\n  result_cap: 1\n")
	backupPath, err := BackupUserConfig()
	require.NoError(t, err)
	writeFile(t, GetUserConfigPath(), "search:\n  result_cap: 2\n")

	// When
	require.NoError(t, RestoreUserConfig(backupPath))

	// Then: the old content is back and the newer one was backed up
	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Search.ResultCap)

	backups, err := ListUserConfigBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 2)
}

func TestRestoreUserConfig_MissingBackup(t *testing.T) {
	isolate(t)

	err := RestoreUserConfig(filepath.Join(t.TempDir(), "nope.bak"))

	assert.Error(t, err)
}
