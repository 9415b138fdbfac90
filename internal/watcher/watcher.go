package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
	"github.com/Aman-CERP/edm/internal/exclusion"
)

// DefaultDebounce is the quiet window used when Options.Debounce is zero.
const DefaultDebounce = 2 * time.Second

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet window before a batch is emitted.
	Debounce time.Duration

	// Exclusion drops events for matching absolute paths, and prunes
	// matching directories from the watch set.
	Exclusion *exclusion.Matcher

	// Recurse watches subdirectories. Without it only direct children of
	// the root produce events.
	Recurse bool

	// IgnoreDirs are absolute directories never watched, such as an index
	// living under the crawl root.
	IgnoreDirs []string
}

// Watcher reports changes under a crawl root.
type Watcher struct {
	root     string
	fileRoot bool
	opts     Options

	fs        *fsnotify.Watcher
	debouncer *Debouncer

	mu      sync.Mutex
	stopped bool
}

// New prepares a watcher for root, which may be a directory or a single
// file. Nothing is watched until Start.
func New(root string, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, edmerrors.IOError(fmt.Sprintf("watch root %s is not accessible", abs), err).
			WithDetail("path", abs)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, edmerrors.InternalError("failed to create filesystem watcher", err)
	}

	return &Watcher{
		root:      abs,
		fileRoot:  !info.IsDir(),
		opts:      opts,
		fs:        fsw,
		debouncer: NewDebouncer(opts.Debounce),
	}, nil
}

// Root returns the absolute watched root.
func (w *Watcher) Root() string {
	return w.root
}

// Events delivers debounced batches. It is closed by Stop.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Start registers the watch set and pumps fsnotify events until ctx is
// done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.register(); err != nil {
		return err
	}

	slog.Info("watch_started",
		slog.String("root", w.root),
		slog.Bool("recurse", w.opts.Recurse),
		slog.Duration("debounce", w.opts.Debounce))

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// register adds the root, and with Recurse every non-excluded directory
// below it.
func (w *Watcher) register() error {
	if w.fileRoot {
		return w.add(filepath.Dir(w.root))
	}
	if !w.opts.Recurse {
		return w.add(w.root)
	}

	return filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("watch_dir_skipped",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		return w.add(path)
	})
}

func (w *Watcher) add(dir string) error {
	if err := w.fs.Add(dir); err != nil {
		return edmerrors.IOError(fmt.Sprintf("failed to watch %s", dir), err).WithDetail("path", dir)
	}
	return nil
}

func (w *Watcher) ignored(path string) bool {
	for _, dir := range w.opts.IgnoreDirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return w.opts.Exclusion.Excludes(path)
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if w.fileRoot && ev.Name != w.root {
		return
	}
	if w.ignored(ev.Name) {
		return
	}

	isDir := false
	if info, err := os.Lstat(ev.Name); err == nil {
		isDir = info.IsDir()
	}
	if isDir && !w.opts.Recurse {
		return
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
		if isDir {
			// New subtrees are registered as they appear.
			if err := w.addTree(ev.Name); err != nil {
				slog.Warn("watch_add_failed",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
		}
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}

	w.debouncer.Add(FileEvent{Path: ev.Name, Operation: op, IsDir: isDir, Timestamp: time.Now()})
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}

// Stop releases the fsnotify handle and closes Events. Safe to call twice.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	w.debouncer.Stop()
	return w.fs.Close()
}

// RunOnChange starts w and calls fn once per debounced batch until ctx is
// done. Batches arriving while fn runs are merged into the next call. An
// error from fn is logged and watching continues.
func RunOnChange(ctx context.Context, w *Watcher, fn func(context.Context, []FileEvent) error) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.Start(gctx)
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case batch, ok := <-w.Events():
				if !ok {
					return nil
				}
				batch = drain(w.Events(), batch)
				slog.Info("watch_change_detected",
					slog.Int("events", len(batch)),
					slog.String("first_path", batch[0].Path))
				if err := fn(gctx, batch); err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					slog.Error("watch_recrawl_failed", slog.String("error", err.Error()))
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// drain appends every batch already queued on ch.
func drain(ch <-chan []FileEvent, batch []FileEvent) []FileEvent {
	for {
		select {
		case more, ok := <-ch:
			if !ok {
				return batch
			}
			batch = append(batch, more...)
		default:
			return batch
		}
	}
}
