// Package search answers full-text queries and computes facets over the
// document index.
//
// Patterns use a small grammar: whitespace-separated terms, "quoted
// phrases", a leading '-' to exclude a term and a trailing '*' for prefix
// matching. Search joins terms with AND; Suggest joins them with OR and
// matches every term as a prefix.
package search

import (
	"time"

	"github.com/Aman-CERP/edm/internal/store"
)

// Facet names returned by Aggregations.
const (
	FacetFileExtension = "fileExtension"
	FacetFileDate      = "fileDate"
	FacetFileCategory  = "fileCategory"
	FacetTopTerms      = "topTerms"
)

// Date bucket keys, in the order they are reported.
const (
	BucketLastMonth   = "last_month"
	BucketLast2Months = "last_2_months"
	BucketLast6Months = "last_6_months"
	BucketLastYear    = "last_year"
	BucketUntilNow    = "until_now"
)

// EngineConfig tunes result sizes and the top-terms exclusion.
type EngineConfig struct {
	// MaxResults is the default page size of Search (default 20).
	MaxResults int

	// SuggestLimit caps Suggest results (default 10).
	SuggestLimit int

	// ExtensionFacetSize caps the fileExtension facet (default 20).
	ExtensionFacetSize int

	// CategoryFacetSize caps the fileCategory facet (default 10).
	CategoryFacetSize int

	// TopTermsSize caps TopTerms (default 10).
	TopTermsSize int

	// TopTermsExclusion is an administrative regex of path tokens never
	// reported as top terms. Known file extensions are always excluded.
	TopTermsExclusion string
}

// DefaultEngineConfig returns the defaults documented on EngineConfig.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxResults:         20,
		SuggestLimit:       10,
		ExtensionFacetSize: 20,
		CategoryFacetSize:  10,
		TopTermsSize:       10,
	}
}

// SearchOptions pages through Search results.
type SearchOptions struct {
	// Limit is the page size (0 = EngineConfig.MaxResults).
	Limit int

	// Offset skips that many ranked hits.
	Offset int
}

// Results is a ranked page of hits. Hits carry <mark>-tagged fragments per
// matching field; a field without a fragment simply did not match.
type Results struct {
	Pattern string        `json:"pattern"`
	Hits    []store.Hit   `json:"hits"`
	Total   uint64        `json:"total"`
	Took    time.Duration `json:"took"`
}
