package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by catalog lookups for unknown names or ids.
var ErrNotFound = errors.New("not found")

// Field names shared by the index mapping, the query builder and facets.
const (
	FieldName            = "name"
	FieldDescription     = "description"
	FieldContent         = "content"
	FieldNodePath        = "nodePath"
	FieldPathTerms       = "pathTerms"
	FieldFileExtension   = "fileExtension"
	FieldFileContentType = "fileContentType"
	FieldFileDate        = "fileDate"
	FieldSourceID        = "sourceId"
	FieldCategoryID      = "categoryId"
)

// SearchableFields are queried for every term of a user pattern.
var SearchableFields = []string{FieldName, FieldDescription, FieldContent, FieldNodePath}

// Document is the metadata record of one crawled file. Its content bytes
// travel separately to Upsert and are never kept on the record.
type Document struct {
	ID              string    `json:"id"`
	NodePath        string    `json:"nodePath"`
	Name            string    `json:"name"`
	FileExtension   string    `json:"fileExtension"`
	FileContentType string    `json:"fileContentType"`
	FileDate        time.Time `json:"fileDate"`
	SourceID        string    `json:"sourceId"`
	CategoryID      string    `json:"categoryId"`
	Description     string    `json:"description,omitempty"`
}

// Fields returns the indexable field map for d, without content.
func (d *Document) Fields() map[string]any {
	fields := map[string]any{
		FieldName:       d.Name,
		FieldNodePath:   d.NodePath,
		FieldPathTerms:  d.NodePath,
		FieldSourceID:   d.SourceID,
		FieldCategoryID: d.CategoryID,
	}
	// Empty keywords would surface as "" facet buckets.
	optional := map[string]string{
		FieldFileExtension:   d.FileExtension,
		FieldFileContentType: d.FileContentType,
		FieldDescription:     d.Description,
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}
	if !d.FileDate.IsZero() {
		fields[FieldFileDate] = d.FileDate.UTC()
	}
	return fields
}

// Category groups sources for faceting.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Source is a named crawl root.
type Source struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	CategoryID string    `json:"categoryId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SourceInfo is a source with its category name and most recent crawl run.
type SourceInfo struct {
	Source
	CategoryName string    `json:"categoryName"`
	LastRun      *CrawlRun `json:"lastRun,omitempty"`
}

// CrawlRun records one crawl of a source.
type CrawlRun struct {
	ID        string     `json:"id"`
	SourceID  string     `json:"sourceId"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Status    string     `json:"status"`
	Indexed   int        `json:"indexed"`
	Skipped   int        `json:"skipped"`
	Failed    int        `json:"failed"`
}

// Crawl run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)

// RunSummary closes a crawl run.
type RunSummary struct {
	Status  string
	Indexed int
	Skipped int
	Failed  int
}

// Bucket is one facet entry. Category is set for category facets when the
// lookup succeeded.
type Bucket struct {
	Key      string    `json:"key"`
	Count    int64     `json:"count"`
	Category *Category `json:"category,omitempty"`
}

// Clause is one term of a parsed user pattern.
type Clause struct {
	Text    string
	Phrase  bool
	Prefix  bool
	Negated bool
}

// Query is a parsed user pattern. The zero value matches every document.
type Query struct {
	Clauses []Clause

	// MatchAny joins positive clauses with OR instead of AND.
	MatchAny bool

	// PrefixAll also matches every plain clause as a prefix.
	PrefixAll bool
}

// IsMatchAll reports whether q has no clauses.
func (q Query) IsMatchAll() bool {
	return len(q.Clauses) == 0
}

// SearchRequest asks the index for ranked documents.
type SearchRequest struct {
	Query     Query
	Size      int
	From      int
	Highlight bool
}

// Hit is one ranked document. Highlights maps a field to <mark>-tagged
// fragments and may be empty.
type Hit struct {
	Document   Document            `json:"document"`
	Score      float64             `json:"score"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}

type SearchResult struct {
	Hits  []Hit         `json:"hits"`
	Total uint64        `json:"total"`
	Took  time.Duration `json:"took"`
}

// TermsFacet counts distinct values of a keyword or analysed field.
type TermsFacet struct {
	Name  string
	Field string
	Size  int
}

// DateRange is a half-open [Start, End) interval. A zero bound is open.
type DateRange struct {
	Name  string
	Start time.Time
	End   time.Time
}

// DateFacet counts documents per date range. Ranges may overlap.
type DateFacet struct {
	Name   string
	Field  string
	Ranges []DateRange
}

// AggregationRequest computes facets over the documents matching Query.
type AggregationRequest struct {
	Query Query
	Terms []TermsFacet
	Dates []DateFacet
}

// DocumentIndex is the searchable store of document records.
type DocumentIndex interface {
	// Upsert adds or replaces a document. content is read during the call only.
	Upsert(ctx context.Context, doc *Document, content []byte) error

	// Delete removes a document. Unknown ids are not an error.
	Delete(ctx context.Context, id string) error

	// ListIDsForSource pages through the ids of one source in id order.
	// An empty next token means the listing is complete.
	ListIDsForSource(ctx context.Context, sourceID, pageToken string, size int) (ids []string, next string, err error)

	Query(ctx context.Context, req *SearchRequest) (*SearchResult, error)

	// Aggregate returns buckets per facet name. Date facets list their
	// ranges in request order, including empty ones.
	Aggregate(ctx context.Context, req *AggregationRequest) (map[string][]Bucket, error)

	// Count returns the number of documents of a source, or of all sources
	// when sourceID is empty.
	Count(ctx context.Context, sourceID string) (uint64, error)

	Close() error
}
