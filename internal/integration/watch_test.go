package integration

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/edm/internal/exclusion"
	"github.com/Aman-CERP/edm/internal/watcher"
)

func TestWatch_RecrawlsOnChange(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a crawled tree under watch
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s := newStack(t)
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"keep.txt": "permanent record",
		"old.txt":  "obsolete record",
	})
	s.crawl(t, ctx, root, "watched")

	matcher, err := exclusion.Compile(`\.tmp$`)
	require.NoError(t, err)
	w, err := watcher.New(root, watcher.Options{
		Debounce:  100 * time.Millisecond,
		Exclusion: matcher,
		Recurse:   true,
	})
	require.NoError(t, err)

	var recrawls atomic.Int32
	watchCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- watcher.RunOnChange(watchCtx, w, func(ctx context.Context, _ []watcher.FileEvent) error {
			if _, _, err := s.run(ctx, root, "watched"); err != nil {
				return err
			}
			recrawls.Add(1)
			return nil
		})
	}()

	// Wait for the watch set to be registered.
	time.Sleep(200 * time.Millisecond)

	// When: one file is added and another removed
	writeFiles(t, root, map[string]string{"new.txt": "fresh record"})
	require.NoError(t, os.Remove(filepath.Join(root, "old.txt")))

	// Then: the index follows the tree
	assert.Eventually(t, func() bool {
		return s.hits(ctx, "fresh") == 1 && s.hits(ctx, "obsolete") == 0
	}, 10*time.Second, 100*time.Millisecond)
	assert.Equal(t, uint64(2), s.total(t, ctx, "record"))

	stop()
	require.NoError(t, <-done)
	assert.GreaterOrEqual(t, recrawls.Load(), int32(1))
}

func TestWatch_ExcludedChangesAreIgnored(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: a watcher excluding temporary files
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	root := t.TempDir()
	matcher, err := exclusion.Compile(`\.tmp$`)
	require.NoError(t, err)
	w, err := watcher.New(root, watcher.Options{
		Debounce:  100 * time.Millisecond,
		Exclusion: matcher,
		Recurse:   true,
	})
	require.NoError(t, err)

	var batches atomic.Int32
	watchCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- watcher.RunOnChange(watchCtx, w, func(context.Context, []watcher.FileEvent) error {
			batches.Add(1)
			return nil
		})
	}()
	time.Sleep(200 * time.Millisecond)

	// When: only an excluded file changes
	writeFiles(t, root, map[string]string{"scratch.tmp": "draft"})
	time.Sleep(500 * time.Millisecond)

	// Then: no crawl is triggered
	stop()
	require.NoError(t, <-done)
	assert.Zero(t, batches.Load())
}
