package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
	"github.com/Aman-CERP/edm/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine runs searches, suggestions and facets against a DocumentIndex.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	index      store.DocumentIndex
	categories CategoryLookup
	config     EngineConfig
	exclusion  string
	now        func() time.Time
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithCategoryLookup enables category names on the fileCategory facet.
// Without it buckets are keyed by category id.
func WithCategoryLookup(lookup CategoryLookup) EngineOption {
	return func(e *Engine) {
		e.categories = lookup
	}
}

// WithClock sets the time source of the date facet.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine. An invalid TopTermsExclusion is a
// configuration error.
func NewEngine(index store.DocumentIndex, config EngineConfig, opts ...EngineOption) (*Engine, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: document index is required", ErrNilDependency)
	}

	defaults := DefaultEngineConfig()
	if config.MaxResults <= 0 {
		config.MaxResults = defaults.MaxResults
	}
	if config.SuggestLimit <= 0 {
		config.SuggestLimit = defaults.SuggestLimit
	}
	if config.ExtensionFacetSize <= 0 {
		config.ExtensionFacetSize = defaults.ExtensionFacetSize
	}
	if config.CategoryFacetSize <= 0 {
		config.CategoryFacetSize = defaults.CategoryFacetSize
	}
	if config.TopTermsSize <= 0 {
		config.TopTermsSize = defaults.TopTermsSize
	}

	if config.TopTermsExclusion != "" {
		if _, err := regexp.Compile(config.TopTermsExclusion); err != nil {
			return nil, edmerrors.ConfigError(
				fmt.Sprintf("invalid top terms exclusion regex %q", config.TopTermsExclusion), err)
		}
	}

	e := &Engine{
		index:     index,
		config:    config,
		exclusion: config.TopTermsExclusion,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search returns the first page of hits for pattern.
func (e *Engine) Search(ctx context.Context, pattern string) (*Results, error) {
	return e.SearchWithOptions(ctx, pattern, SearchOptions{})
}

// SearchWithOptions ranks documents matching every term of pattern across
// name, description, content and path. A blank pattern matches all
// documents. A pattern that cannot be parsed or run degrades to empty
// results and a warning; only a cancelled ctx is returned as an error.
func (e *Engine) SearchWithOptions(ctx context.Context, pattern string, opts SearchOptions) (*Results, error) {
	start := time.Now()

	q, err := ParsePattern(pattern)
	if err != nil {
		warnInvalidPattern("search", pattern, err)
		return emptyResults(pattern, start), nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = e.config.MaxResults
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	res, err := e.index.Query(ctx, &store.SearchRequest{
		Query:     q,
		Size:      limit,
		From:      offset,
		Highlight: true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("search for %q failed: %w", pattern, err)
		}
		warnInvalidPattern("search", pattern, err)
		return emptyResults(pattern, start), nil
	}

	slog.Debug("search_complete",
		slog.String("pattern", pattern),
		slog.Int("clauses", len(q.Clauses)),
		slog.Int("hits", len(res.Hits)),
		slog.Uint64("total", res.Total),
		slog.Duration("duration", time.Since(start)))

	return &Results{
		Pattern: pattern,
		Hits:    res.Hits,
		Total:   res.Total,
		Took:    time.Since(start),
	}, nil
}

// Suggest returns documents matching any term of prefix, each term also
// matched as a word prefix. A blank or unparseable prefix suggests nothing.
func (e *Engine) Suggest(ctx context.Context, prefix string) ([]store.Document, error) {
	if strings.TrimSpace(prefix) == "" {
		return []store.Document{}, nil
	}

	q, err := ParsePattern(prefix)
	if err != nil {
		warnInvalidPattern("suggest", prefix, err)
		return []store.Document{}, nil
	}
	if q.IsMatchAll() {
		return []store.Document{}, nil
	}
	q.MatchAny = true
	q.PrefixAll = true

	res, err := e.index.Query(ctx, &store.SearchRequest{Query: q, Size: e.config.SuggestLimit})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("suggest for %q failed: %w", prefix, err)
		}
		warnInvalidPattern("suggest", prefix, err)
		return []store.Document{}, nil
	}

	docs := make([]store.Document, 0, len(res.Hits))
	for _, h := range res.Hits {
		docs = append(docs, h.Document)
	}
	return docs, nil
}

func emptyResults(pattern string, start time.Time) *Results {
	return &Results{
		Pattern: pattern,
		Hits:    []store.Hit{},
		Took:    time.Since(start),
	}
}

func warnInvalidPattern(op, pattern string, err error) {
	slog.Warn("search_pattern_invalid",
		slog.String("op", op),
		slog.String("pattern", pattern),
		slog.String("error", err.Error()))
}
