package search

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/edm/internal/store"
)

// topTermsFetchFactor widens the path-terms facet so that enough terms
// survive the exclusion filter.
const topTermsFetchFactor = 10

// minTopTermsFetch is the smallest number of path terms fetched.
const minTopTermsFetch = 100

// Aggregations computes the fileExtension, fileDate and fileCategory facets
// over the documents matching pattern. Facets are best-effort: each one
// degrades to an empty list with a warning when its query fails, and the
// map always holds all three keys.
func (e *Engine) Aggregations(ctx context.Context, pattern string) map[string][]store.Bucket {
	out := map[string][]store.Bucket{
		FacetFileExtension: {},
		FacetFileDate:      {},
		FacetFileCategory:  {},
	}

	q, err := ParsePattern(pattern)
	if err != nil {
		slog.Warn("aggregation_pattern_invalid",
			slog.String("pattern", pattern),
			slog.String("error", err.Error()))
		return out
	}

	var extensions, dates, categories []store.Bucket
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		extensions = e.extensionFacet(gctx, q)
		return nil
	})
	g.Go(func() error {
		dates = e.dateFacet(gctx, q)
		return nil
	})
	g.Go(func() error {
		categories = e.categoryFacet(gctx, q)
		return nil
	})
	_ = g.Wait()

	out[FacetFileExtension] = extensions
	out[FacetFileDate] = dates
	out[FacetFileCategory] = categories
	return out
}

// TopTerms returns the most frequent path words of the documents matching
// pattern. Words equal to a known file extension, or fully matching the
// administrative exclusion regex, are left out.
func (e *Engine) TopTerms(ctx context.Context, pattern string) []store.Bucket {
	q, err := ParsePattern(pattern)
	if err != nil {
		slog.Warn("top_terms_pattern_invalid",
			slog.String("pattern", pattern),
			slog.String("error", err.Error()))
		return []store.Bucket{}
	}

	var keys []string
	for _, b := range e.extensionFacet(ctx, store.Query{}) {
		keys = append(keys, b.Key)
	}
	exclude, err := TopTermsExclusion(e.exclusion, keys)
	if err != nil {
		slog.Warn("top_terms_exclusion_invalid",
			slog.String("regex", e.exclusion),
			slog.String("error", err.Error()))
		return []store.Bucket{}
	}

	size := e.config.TopTermsSize
	fetch := size * topTermsFetchFactor
	if fetch < minTopTermsFetch {
		fetch = minTopTermsFetch
	}
	buckets := e.termsFacet(ctx, q, store.TermsFacet{
		Name: FacetTopTerms, Field: store.FieldPathTerms, Size: fetch,
	})

	out := make([]store.Bucket, 0, size)
	for _, b := range buckets {
		if exclude != nil && exclude.MatchString(b.Key) {
			continue
		}
		out = append(out, b)
		if len(out) == size {
			break
		}
	}
	return out
}

// TopTermsExclusion builds the anchored union of the administrative regex
// and the quoted extension keys. Both empty yields nil.
//
//	TopTermsExclusion("tmp", []string{"pdf", "doc"}) -> ^(?:tmp|pdf|doc)$
func TopTermsExclusion(admin string, extensions []string) (*regexp.Regexp, error) {
	var alts []string
	if admin != "" {
		alts = append(alts, admin)
	}
	for _, ext := range extensions {
		if ext != "" {
			alts = append(alts, regexp.QuoteMeta(ext))
		}
	}
	if len(alts) == 0 {
		return nil, nil
	}
	return regexp.Compile("^(?:" + strings.Join(alts, "|") + ")$")
}

func (e *Engine) extensionFacet(ctx context.Context, q store.Query) []store.Bucket {
	return e.termsFacet(ctx, q, store.TermsFacet{
		Name: FacetFileExtension, Field: store.FieldFileExtension, Size: e.config.ExtensionFacetSize,
	})
}

func (e *Engine) termsFacet(ctx context.Context, q store.Query, tf store.TermsFacet) []store.Bucket {
	res, err := e.index.Aggregate(ctx, &store.AggregationRequest{Query: q, Terms: []store.TermsFacet{tf}})
	if err != nil {
		slog.Warn("facet_failed",
			slog.String("facet", tf.Name),
			slog.String("error", err.Error()))
		return []store.Bucket{}
	}
	if res[tf.Name] == nil {
		return []store.Bucket{}
	}
	return res[tf.Name]
}

// DateRanges returns the rolling windows of the fileDate facet. Start
// bounds are rounded down to the first day of their month; windows overlap.
func DateRanges(now time.Time) []store.DateRange {
	now = now.UTC()
	monthsAgo := func(n int) time.Time {
		return time.Date(now.Year(), now.Month()-time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	}
	return []store.DateRange{
		{Name: BucketLastMonth, Start: monthsAgo(1)},
		{Name: BucketLast2Months, Start: monthsAgo(2)},
		{Name: BucketLast6Months, Start: monthsAgo(6)},
		{Name: BucketLastYear, Start: monthsAgo(12)},
		{Name: BucketUntilNow, End: now},
	}
}

func (e *Engine) dateFacet(ctx context.Context, q store.Query) []store.Bucket {
	df := store.DateFacet{Name: FacetFileDate, Field: store.FieldFileDate, Ranges: DateRanges(e.now())}
	res, err := e.index.Aggregate(ctx, &store.AggregationRequest{Query: q, Dates: []store.DateFacet{df}})
	if err != nil {
		slog.Warn("facet_failed",
			slog.String("facet", FacetFileDate),
			slog.String("error", err.Error()))
		return []store.Bucket{}
	}
	if res[FacetFileDate] == nil {
		return []store.Bucket{}
	}
	return res[FacetFileDate]
}

// categoryFacet keys buckets by category name. A failed lookup keeps the
// raw id as key and does not affect other buckets.
func (e *Engine) categoryFacet(ctx context.Context, q store.Query) []store.Bucket {
	buckets := e.termsFacet(ctx, q, store.TermsFacet{
		Name: FacetFileCategory, Field: store.FieldCategoryID, Size: e.config.CategoryFacetSize,
	})
	if e.categories == nil {
		return buckets
	}

	for i := range buckets {
		id := buckets[i].Key
		cat, err := e.categories.FindCategory(ctx, id)
		if err != nil {
			slog.Warn("category_lookup_failed",
				slog.String("category_id", id),
				slog.String("error", err.Error()))
			continue
		}
		buckets[i].Key = cat.Name
		buckets[i].Category = cat
	}
	return buckets
}
