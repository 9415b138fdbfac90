package crawl

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/time/rate"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
	"github.com/Aman-CERP/edm/internal/exclusion"
	"github.com/Aman-CERP/edm/internal/identity"
	"github.com/Aman-CERP/edm/internal/store"
)

// Options configures a Crawler. Zero values select defaults.
type Options struct {
	// Workers bounds concurrent file uploads (0 = NumCPU).
	Workers int

	// MaxFileSize is the size ceiling in bytes (0 = DefaultMaxFileSize).
	MaxFileSize int64

	// UploadsPerSecond throttles upserts (0 = unlimited).
	UploadsPerSecond float64

	// RelativePaths stores node paths relative to the crawl root.
	RelativePaths bool

	DatePolicy *DatePolicy

	// Retry wraps every upsert. Zero value selects edmerrors.DefaultRetryConfig.
	Retry *edmerrors.RetryConfig

	Progress ProgressFunc
}

// Crawler walks filesystem trees into a Sink.
type Crawler struct {
	resolver Resolver
	sink     Sink
	opts     Options
	retry    edmerrors.RetryConfig
}

// New creates a Crawler.
func New(resolver Resolver, sink Sink, opts Options) (*Crawler, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	retry := edmerrors.DefaultRetryConfig()
	if opts.Retry != nil {
		retry = *opts.Retry
	}
	return &Crawler{resolver: resolver, sink: sink, opts: opts, retry: retry}, nil
}

// node is a worklist entry.
type node struct {
	path   string
	isRoot bool
}

// run holds the state of one Crawl call.
type run struct {
	req        Request
	root       string
	matcher    *exclusion.Matcher
	source     *store.Source
	categoryID string
	limiter    *rate.Limiter

	indexed  atomic.Int64
	skipped  atomic.Int64
	excluded atomic.Int64
	errors   atomic.Int64
}

// Crawl walks req.Root and upserts every regular file not excluded. Per-file
// failures are counted in Stats.Errors and never abort the crawl. On
// cancellation no new files are dispatched, uploads already running finish,
// and ctx.Err() is returned with the partial Stats.
func (c *Crawler) Crawl(ctx context.Context, req Request) (*Stats, error) {
	start := time.Now()

	matcher, err := exclusion.Compile(req.Exclusion)
	if err != nil {
		return nil, err
	}
	if req.SourceName == "" {
		return nil, edmerrors.ValidationError("source name is required", nil)
	}
	if req.CategoryName == "" {
		return nil, edmerrors.ValidationError("category name is required", nil)
	}

	root, err := filepath.Abs(req.Root)
	if err != nil {
		return nil, edmerrors.New(edmerrors.ErrCodeInvalidPath,
			fmt.Sprintf("invalid crawl root %q", req.Root), err)
	}
	if _, err := os.Stat(root); err != nil {
		if os.IsPermission(err) {
			return nil, edmerrors.New(edmerrors.ErrCodeFilePermission,
				fmt.Sprintf("crawl root %s is not readable", root), err)
		}
		return nil, edmerrors.IOError(fmt.Sprintf("crawl root %s is not accessible", root), err).
			WithDetail("path", root)
	}

	category, err := c.resolver.ResolveCategory(ctx, req.CategoryName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve category %q: %w", req.CategoryName, err)
	}
	source, err := c.resolver.ResolveSource(ctx, req.SourceName, category.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve source %q: %w", req.SourceName, err)
	}
	// An existing source keeps its category, and so do its documents.
	categoryID := category.ID
	if source.CategoryID != "" && source.CategoryID != category.ID {
		categoryID = source.CategoryID
		slog.Warn("source_category_kept",
			slog.String("source", req.SourceName),
			slog.String("requested_category", req.CategoryName),
			slog.String("category_id", source.CategoryID))
	}
	if err := c.resolver.NotifyCrawlStart(ctx, req.SourceName); err != nil {
		return nil, fmt.Errorf("failed to start crawl of %q: %w", req.SourceName, err)
	}

	r := &run{
		req:        req,
		root:       root,
		matcher:    matcher,
		source:     source,
		categoryID: categoryID,
	}
	if c.opts.UploadsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(c.opts.UploadsPerSecond), 1)
	}

	slog.Info("crawl_started",
		slog.String("root", root),
		slog.String("source", req.SourceName),
		slog.String("category", req.CategoryName),
		slog.Bool("recurse", req.Recurse),
		slog.Int("workers", c.opts.Workers))

	walkErr := c.walk(ctx, r)

	stats := &Stats{
		SourceID:   source.ID,
		CategoryID: categoryID,
		Indexed:    int(r.indexed.Load()),
		Skipped:    int(r.skipped.Load()),
		Excluded:   int(r.excluded.Load()),
		Errors:     int(r.errors.Load()),
		Duration:   time.Since(start),
	}

	summary := store.RunSummary{
		Status:  store.RunCompleted,
		Indexed: stats.Indexed,
		Skipped: stats.Skipped + stats.Excluded,
		Failed:  stats.Errors,
	}
	if walkErr != nil {
		summary.Status = store.RunCancelled
	}
	if err := c.resolver.NotifyCrawlEnd(context.WithoutCancel(ctx), req.SourceName, summary); err != nil {
		slog.Warn("crawl_end_notification_failed",
			slog.String("source", req.SourceName),
			slog.String("error", err.Error()))
	}

	slog.Info("crawl_complete",
		slog.String("source", req.SourceName),
		slog.Int("indexed", stats.Indexed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("excluded", stats.Excluded),
		slog.Int("errors", stats.Errors),
		slog.Duration("duration", stats.Duration))

	return stats, walkErr
}

// walk drains an explicit worklist. Directories are listed inline; files are
// handed to a bounded pool of upload workers.
func (c *Crawler) walk(ctx context.Context, r *run) error {
	uploadCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(c.opts.Workers)

	stack := []node{{path: r.root, isRoot: true}}
	for len(stack) > 0 {
		if ctx.Err() != nil {
			break
		}

		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if r.matcher.Excludes(n.path) {
			slog.Debug("path_excluded", slog.String("path", n.path))
			r.excluded.Add(1)
			c.emit(Event{Kind: EventExcluded, Path: n.path})
			continue
		}

		info, err := os.Lstat(n.path)
		if err != nil {
			c.fail(r, n.path, "", fmt.Errorf("failed to stat: %w", err))
			continue
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			info, err = os.Stat(n.path)
			if err != nil {
				c.fail(r, n.path, "", fmt.Errorf("failed to resolve symlink: %w", err))
				continue
			}
			// A symlinked root is listed like any root; below it, linked
			// directories are not followed.
			if info.IsDir() && !n.isRoot {
				slog.Debug("symlinked_directory_skipped", slog.String("path", n.path))
				continue
			}
		}

		if info.IsDir() {
			if !n.isRoot && !r.req.Recurse {
				continue
			}
			stack = append(stack, c.children(n.path)...)
			continue
		}

		if !info.Mode().IsRegular() {
			r.skipped.Add(1)
			c.emit(Event{Kind: EventSkipped, Path: n.path})
			continue
		}

		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				break
			}
		}

		path := n.path
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					c.fail(r, path, "", fmt.Errorf("panic while processing file: %v", p))
				}
			}()
			c.processFile(uploadCtx, r, path, info)
			return nil
		})
	}

	_ = g.Wait()
	return ctx.Err()
}

// children lists dir in reverse name order so that popping the stack visits
// entries in name order. A listing failure yields no children.
func (c *Crawler) children(dir string) []node {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("directory_listing_failed",
			slog.String("path", dir),
			slog.String("error", err.Error()))
		return nil
	}
	out := make([]node, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, node{path: filepath.Join(dir, entries[i].Name())})
	}
	return out
}

func (c *Crawler) processFile(ctx context.Context, r *run, path string, info fs.FileInfo) {
	if info.Size() > c.opts.MaxFileSize {
		slog.Warn("file_too_large",
			slog.String("path", path),
			slog.Int64("size", info.Size()),
			slog.Int64("max_size", c.opts.MaxFileSize))
		r.skipped.Add(1)
		c.emit(Event{Kind: EventSkipped, Path: path})
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		c.fail(r, path, "", fmt.Errorf("failed to read: %w", err))
		return
	}

	doc := c.buildDocument(r, path, info, content)
	err = edmerrors.Retry(ctx, c.retry, func() error {
		return c.sink.Upsert(ctx, doc, content)
	})
	if err != nil {
		c.fail(r, path, doc.ID, fmt.Errorf("failed to upsert: %w", err))
		return
	}

	if r.req.Marker != nil {
		r.req.Marker.MarkVisited(doc.ID)
	}
	r.indexed.Add(1)
	c.emit(Event{Kind: EventIndexed, Path: path, ID: doc.ID})
}

// buildDocument derives the record of one file. The content type probe is
// best-effort; an unknown type leaves the field blank.
func (c *Crawler) buildDocument(r *run, path string, info fs.FileInfo, content []byte) *store.Document {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	extension := strings.ToLower(strings.TrimPrefix(ext, "."))

	nodePath := c.nodePath(r.root, path)
	doc := &store.Document{
		ID:              identity.AssignID(nodePath, r.source.ID),
		NodePath:        nodePath,
		Name:            name,
		FileExtension:   extension,
		FileContentType: DetectContentType(extension, content),
		FileDate:        c.opts.DatePolicy.Apply(name, info.ModTime()),
		SourceID:        r.source.ID,
		CategoryID:      r.categoryID,
	}
	if !doc.FileDate.Equal(info.ModTime()) {
		slog.Debug("file_date_from_name",
			slog.String("path", path),
			slog.Time("date", doc.FileDate))
	}
	return doc
}

// nodePath normalises path to forward slashes and NFC, so one file yields
// one id whatever the host separator or Unicode form.
func (c *Crawler) nodePath(root, path string) string {
	p := path
	if c.opts.RelativePaths {
		if rel, err := filepath.Rel(root, path); err == nil {
			p = rel
			if rel == "." {
				// The root is a single file.
				p = filepath.Base(path)
			}
		}
	}
	p = strings.ReplaceAll(p, `\`, "/")
	return norm.NFC.String(p)
}

func (c *Crawler) fail(r *run, path, id string, err error) {
	slog.Warn("crawl_file_failed", append([]any{slog.String("path", path)}, edmerrors.LogAttrs(err)...)...)
	r.errors.Add(1)
	c.emit(Event{Kind: EventFailed, Path: path, ID: id, Err: err})
}

func (c *Crawler) emit(ev Event) {
	if c.opts.Progress != nil {
		c.opts.Progress(ev)
	}
}
