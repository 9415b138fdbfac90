// Package watcher turns filesystem changes under a crawl root into debounced
// batches that trigger a synchronized re-crawl.
//
// Events come from fsnotify. Paths matching the crawl's exclusion pattern
// are dropped before debouncing, and rapid changes to the same path are
// coalesced within the debounce window:
//
//	w, err := watcher.New(root, watcher.Options{Debounce: 2 * time.Second})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	err = watcher.RunOnChange(ctx, w, func(ctx context.Context, batch []watcher.FileEvent) error {
//	    return recrawl(ctx)
//	})
package watcher
