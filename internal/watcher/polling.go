package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"
)

type snapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// poller detects changes by comparing successive walks of the tree.
type poller struct {
	root     string
	interval time.Duration
	skip     []string
	state    map[string]snapshot
}

func newPoller(root string, interval time.Duration, skip []string) *poller {
	return &poller{root: root, interval: interval, skip: skip}
}

// run emits an event per difference between walks until ctx or stop is done.
func (p *poller) run(ctx context.Context, stop <-chan struct{}, emit func(FileEvent)) error {
	p.state = p.walk()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
			p.detect(emit)
		}
	}
}

// detect walks the tree once and emits create/modify/delete events against the previous walk.
func (p *poller) detect(emit func(FileEvent)) {
	current := p.walk()
	now := time.Now()

	for rel, cur := range current {
		prev, ok := p.state[rel]
		switch {
		case !ok:
			emit(FileEvent{Path: rel, Operation: classify(rel, OpCreate), IsDir: cur.isDir, Timestamp: now})
		case !cur.isDir && (!prev.modTime.Equal(cur.modTime) || prev.size != cur.size):
			emit(FileEvent{Path: rel, Operation: classify(rel, OpModify), Timestamp: now})
		}
	}
	for rel, prev := range p.state {
		if _, ok := current[rel]; !ok {
			emit(FileEvent{Path: rel, Operation: classify(rel, OpDelete), IsDir: prev.isDir, Timestamp: now})
		}
	}

	p.state = current
}

func (p *poller) walk() map[string]snapshot {
	state := make(map[string]snapshot)
	_ = filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if skipped(path, p.skip) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil || rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[rel] = snapshot{modTime: info.ModTime(), size: info.Size(), isDir: d.IsDir()}
		return nil
	})
	return state
}
