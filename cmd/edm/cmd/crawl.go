package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/edm/internal/config"
	"github.com/Aman-CERP/edm/internal/crawl"
	edmerrors "github.com/Aman-CERP/edm/internal/errors"
	"github.com/Aman-CERP/edm/internal/exclusion"
	"github.com/Aman-CERP/edm/internal/reconcile"
	"github.com/Aman-CERP/edm/internal/ui"
	"github.com/Aman-CERP/edm/internal/watcher"
)

// defaultCategory is used when --category is not given.
const defaultCategory = "default"

type crawlOptions struct {
	source   string
	category string
	exclude  string
	index    string
	recurse  bool
	sync     bool
	watch    bool
	noTUI    bool
	noColor  bool
}

func newCrawlCmd(root *rootOptions) *cobra.Command {
	opts := &crawlOptions{}

	cmd := &cobra.Command{
		Use:   "crawl <root>",
		Short: "Crawl a directory into the index",
		Long: `Walk a directory (or a single file) and index one document per file.

Each crawl belongs to a named source. With --sync (the default), documents
of the source that were not seen again are removed from the index once the
crawl finishes; an interrupted crawl never removes anything.

Paths matching --exclude are skipped together with their subtrees. The
pattern is a regular expression matched anywhere in the absolute path.`,
		Example: `  # Crawl a share as source "finance" in category "accounting"
  edm crawl /mnt/share/finance --source finance --category accounting

  # Skip temporary files and hidden directories
  edm crawl ~/docs --exclude '(\.tmp$|/\.)'

  # Keep the index in sync while files change
  edm crawl ~/docs --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("exclude") {
				opts.exclude = root.cfg.Crawl.DefaultExclusion
			}
			return runCrawl(cmd, root.cfg, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "", "Source name (default: base name of <root>)")
	cmd.Flags().StringVar(&opts.category, "category", defaultCategory, "Category name of the source")
	cmd.Flags().StringVar(&opts.exclude, "exclude", "", "Exclusion regex (default: crawl.default_exclusion)")
	cmd.Flags().StringVar(&opts.index, "index", "", "Index directory (default: <data_dir>/index.bleve)")
	cmd.Flags().BoolVar(&opts.recurse, "recurse", true, "Descend into subdirectories")
	cmd.Flags().BoolVar(&opts.sync, "sync", true, "Remove documents of files that no longer exist")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Keep running and crawl again after changes")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Plain text progress output")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")

	return cmd
}

func runCrawl(cmd *cobra.Command, cfg *config.Config, opts *crawlOptions, root string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return edmerrors.New(edmerrors.ErrCodeInvalidPath, fmt.Sprintf("invalid crawl root %q", root), err)
	}
	if _, err := os.Stat(absRoot); err != nil {
		return edmerrors.IOError(fmt.Sprintf("crawl root %s is not accessible", absRoot), err).
			WithDetail("path", absRoot)
	}
	if opts.source == "" {
		opts.source = filepath.Base(absRoot)
	}
	if opts.index != "" {
		cfg.Index.Path = opts.index
	}
	if err := runPreflight(ctx, cfg); err != nil {
		return err
	}

	st, err := openStores(cfg, false)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			slog.Warn("stores_close_failed", slog.String("error", cerr.Error()))
		}
	}()

	job := &crawlJob{
		cfg:  cfg,
		opts: opts,
		root: absRoot,
		sync: reconcile.New(st.index, st.catalog, reconcile.Options{
			PageSize: cfg.Sync.PageSize,
			LockDir:  cfg.LockDir(),
		}),
		newCrawler: func(progress crawl.ProgressFunc) (*crawl.Crawler, error) {
			retry := edmerrors.DefaultRetryConfig()
			retry.MaxRetries = cfg.Crawl.UploadRetries
			return crawl.New(st.catalog, st.index, crawl.Options{
				Workers:          cfg.Crawl.Workers,
				MaxFileSize:      cfg.MaxFileSizeBytes(),
				UploadsPerSecond: cfg.Crawl.MaxUploadsPerSecond,
				RelativePaths:    cfg.Crawl.RelativePaths,
				DatePolicy:       crawl.NewDatePolicy(cfg.Crawl.DatedReportSuffixes),
				Retry:            &retry,
				Progress:         progress,
			})
		},
	}

	// The TUI owns the terminal until Stop, which does not fit a process
	// that keeps running between crawls.
	renderCfg := ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI || opts.watch),
		ui.WithNoColor(opts.noColor),
		ui.WithRoot(absRoot))

	if err := job.run(ctx, ui.NewRenderer(renderCfg)); err != nil {
		return interrupted(ctx, err)
	}
	if !opts.watch {
		return nil
	}
	return job.watch(ctx, renderCfg)
}

// crawlJob is one crawl configuration, run once or on every change.
type crawlJob struct {
	cfg        *config.Config
	opts       *crawlOptions
	root       string
	sync       *reconcile.Synchronizer
	newCrawler func(crawl.ProgressFunc) (*crawl.Crawler, error)
}

// run performs one (optionally synchronized) crawl with r showing progress.
func (j *crawlJob) run(ctx context.Context, r ui.Renderer) (err error) {
	if err := r.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress display: %w", err)
	}
	defer func() {
		if stopErr := r.Stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}()

	crawler, err := j.newCrawler(ui.CrawlProgress(r))
	if err != nil {
		return err
	}

	req := crawl.Request{
		Root:         j.root,
		SourceName:   j.opts.source,
		CategoryName: j.opts.category,
		Exclusion:    j.opts.exclude,
		Recurse:      j.opts.recurse,
	}

	if j.opts.sync {
		r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageSnapshot, Message: "Listing indexed documents..."})
		sess, err := j.sync.Begin(ctx, j.opts.source)
		if err != nil {
			return err
		}
		req.Marker = sess
	}

	stats, err := crawler.Crawl(ctx, req)
	if err != nil {
		if j.opts.sync {
			j.sync.Discard(j.opts.source)
		}
		return err
	}

	completion := ui.CompletionStats{
		Source: j.opts.source,
		Counts: ui.Counts{
			Indexed:  stats.Indexed,
			Skipped:  stats.Skipped,
			Excluded: stats.Excluded,
			Failed:   stats.Errors,
		},
		Duration: stats.Duration,
	}

	if j.opts.sync {
		r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageSweeping, Counts: completion.Counts, Message: "Removing vanished documents..."})
		sweep, err := j.sync.End(ctx, j.opts.source)
		if err != nil {
			return err
		}
		completion.Deleted = sweep.Deleted
		completion.Duration += sweep.Duration
		if sweep.Failed > 0 {
			r.AddError(ui.ErrorEvent{
				Err:    fmt.Errorf("%d stale documents could not be deleted", sweep.Failed),
				IsWarn: true,
			})
		}
	}

	r.Complete(completion)
	return nil
}

// watch crawls again after every debounced batch of changes until ctx ends.
func (j *crawlJob) watch(ctx context.Context, renderCfg ui.Config) error {
	matcher, err := exclusion.Compile(j.opts.exclude)
	if err != nil {
		return err
	}

	w, err := watcher.New(j.root, watcher.Options{
		Debounce:   j.cfg.DebounceDuration(),
		Exclusion:  matcher,
		Recurse:    j.opts.recurse,
		IgnoreDirs: []string{j.cfg.Index.DataDir, j.cfg.IndexPath()},
	})
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(renderCfg.Output, "Watching %s for changes (Ctrl+C to stop)\n", j.root)
	slog.Info("watch_started",
		slog.String("root", j.root),
		slog.String("source", j.opts.source),
		slog.Duration("debounce", j.cfg.DebounceDuration()))

	err = watcher.RunOnChange(ctx, w, func(ctx context.Context, events []watcher.FileEvent) error {
		start := time.Now()
		err := j.run(ctx, ui.NewPlainRenderer(renderCfg))
		slog.Info("watch_recrawl_complete",
			slog.String("source", j.opts.source),
			slog.Int("events", len(events)),
			slog.Duration("duration", time.Since(start)),
			slog.Bool("ok", err == nil))
		return err
	})
	if err != nil {
		return err
	}
	slog.Info("watch_stopped", slog.String("source", j.opts.source))
	return nil
}
