// Package watcher keeps an index current by running a synchronization pass
// whenever files under the folder change.
//
// Change detection uses fsnotify, falling back to periodic polling where
// kernel notifications are unavailable (network mounts, exhausted watch
// limits). Bursts of events are debounced into batches; each batch triggers
// one pass, so the pass itself decides what changed.
//
//	w, err := watcher.New(watcher.Options{SkipPaths: sync.SkipPaths()})
//	if err != nil {
//	    return err
//	}
//	r := watcher.NewRunner(sync, w)
//	return r.Run(ctx, folder)
package watcher
