package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchCmd_StopsOnCancel(t *testing.T) {
	env := newCLIEnv(t)
	folder := writeFolder(t, map[string]string{"a.txt": "one"})

	ctx, cancel := context.WithCancel(context.Background())
	root := NewRootCmd()
	stdout, stderr := &lockedBuffer{}, &lockedBuffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, root, []string{"--index-dir", env.indexDir, "watch", folder, "--polling", "--poll-interval", "50ms"}, stderr)
	}()

	// When: the context is cancelled after the watcher started
	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "Watching")
	}, 10*time.Second, 20*time.Millisecond)
	cancel()

	// Then: watch exits cleanly after the initial sync
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Contains(t, stdout.String(), "Synced "+folder)
	assert.Contains(t, stdout.String(), "Watching")
	assert.DirExists(t, filepath.Join(env.indexDir, "idx_"+filepath.Base(folder)))
}

func TestServeCmd_Flags(t *testing.T) {
	cmd := newServeCmd(&rootOptions{})

	assert.NotNil(t, cmd.Flags().Lookup("no-watch"))
	assert.NotNil(t, cmd.Flags().Lookup("polling"))
	assert.NotNil(t, cmd.Flags().Lookup("poll-interval"))
}

// lockedBuffer is a bytes.Buffer safe for a writer goroutine and a polling reader.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
