package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
	"github.com/Aman-CERP/edm/internal/extract"
)

// ErrIndexClosed is returned by every operation after Close.
var ErrIndexClosed = edmerrors.New(edmerrors.ErrCodeIndexFailed, "index is closed", nil)

// storedFields are loaded into hits to rebuild Document records.
var storedFields = []string{
	FieldName, FieldDescription, FieldNodePath, FieldFileExtension,
	FieldFileContentType, FieldFileDate, FieldSourceID, FieldCategoryID,
}

// BleveIndex is the embedded DocumentIndex.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

var _ DocumentIndex = (*BleveIndex)(nil)

// validateIndexIntegrity checks index_meta.json before bleve opens the
// directory. A missing directory is valid: the index will be created.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "unexpected end of JSON") ||
		strings.Contains(msg, "error parsing mapping JSON") ||
		strings.Contains(msg, "failed to load segment") ||
		strings.Contains(msg, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// OpenBleveIndex opens or creates the index at path. An empty path gives an
// in-memory index. A corrupted index directory is cleared and recreated; the
// affected sources must be crawled again.
func OpenBleveIndex(path string) (*BleveIndex, error) {
	indexMapping, err := NewIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, edmerrors.New(edmerrors.ErrCodeIndexFailed,
				fmt.Sprintf("failed to create index directory for %s", path), err)
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("document_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, edmerrors.New(edmerrors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be removed", path), removeErr)
			}
			slog.Info("document_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, crawl sources again"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("document_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, edmerrors.New(edmerrors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be cleared", path), removeErr)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, edmerrors.New(edmerrors.ErrCodeIndexFailed,
			fmt.Sprintf("failed to open document index at %q", path), err).
			WithSuggestion("check --index or index.path, and that no other process holds the index open")
	}

	return &BleveIndex{index: idx, path: path}, nil
}

// NewIndexMapping builds the explicit document mapping. Unknown fields are
// ignored.
func NewIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomAnalyzer(PathAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     PathTokenizerName,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add path analyzer: %w", err)
	}

	text := func() *mapping.FieldMapping {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		fm.Store = true
		fm.IncludeTermVectors = true
		return fm
	}
	kw := func() *mapping.FieldMapping {
		fm := bleve.NewKeywordFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		return fm
	}

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(FieldName, text())
	doc.AddFieldMappingsAt(FieldDescription, text())
	doc.AddFieldMappingsAt(FieldNodePath, text())

	// Content is stored for highlighting only; hits never load it.
	doc.AddFieldMappingsAt(FieldContent, text())

	pathTerms := bleve.NewTextFieldMapping()
	pathTerms.Analyzer = PathAnalyzerName
	pathTerms.Store = false
	pathTerms.IncludeInAll = false
	doc.AddFieldMappingsAt(FieldPathTerms, pathTerms)

	doc.AddFieldMappingsAt(FieldFileExtension, kw())
	doc.AddFieldMappingsAt(FieldFileContentType, kw())
	doc.AddFieldMappingsAt(FieldSourceID, kw())
	doc.AddFieldMappingsAt(FieldCategoryID, kw())

	date := bleve.NewDateTimeFieldMapping()
	date.Store = true
	doc.AddFieldMappingsAt(FieldFileDate, date)

	indexMapping.DefaultMapping = doc
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping, nil
}

// Upsert indexes doc and the text extracted from content. Extraction
// failures index the metadata alone.
func (b *BleveIndex) Upsert(ctx context.Context, doc *Document, content []byte) error {
	if doc == nil || doc.ID == "" {
		return edmerrors.ValidationError("document id must not be empty", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fields := doc.Fields()
	text, err := extract.Text(doc.FileContentType, doc.FileExtension, content)
	if err != nil {
		slog.Debug("content_extraction_failed",
			slog.String("path", doc.NodePath),
			slog.String("error", err.Error()))
	}
	if text != "" {
		fields[FieldContent] = text
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrIndexClosed
	}

	if err := b.index.Index(doc.ID, fields); err != nil {
		return edmerrors.IndexError(fmt.Sprintf("failed to index document %s", doc.ID), err).
			WithDetail("path", doc.NodePath)
	}
	return nil
}

func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrIndexClosed
	}

	if err := b.index.Delete(id); err != nil {
		return edmerrors.IndexError(fmt.Sprintf("failed to delete document %s", id), err)
	}
	return nil
}

// ListIDsForSource pages with search_after on _id so concurrent deletes do
// not shift later pages.
func (b *BleveIndex) ListIDsForSource(ctx context.Context, sourceID, pageToken string, size int) ([]string, string, error) {
	if size <= 0 {
		return nil, "", edmerrors.ValidationError(fmt.Sprintf("page size must be positive, got %d", size), nil)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, "", ErrIndexClosed
	}

	q := bleve.NewTermQuery(sourceID)
	q.SetField(FieldSourceID)

	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	req.SortBy([]string{"_id"})
	if pageToken != "" {
		req.SetSearchAfter([]string{pageToken})
	}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, "", edmerrors.IndexError(fmt.Sprintf("failed to list documents of source %s", sourceID), err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}

	next := ""
	if len(ids) == size {
		next = ids[len(ids)-1]
	}
	return ids, next, nil
}

func (b *BleveIndex) Query(ctx context.Context, sr *SearchRequest) (*SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrIndexClosed
	}

	size := sr.Size
	if size <= 0 {
		size = 10
	}

	req := bleve.NewSearchRequestOptions(buildQuery(sr.Query), size, sr.From, false)
	req.Fields = storedFields
	req.SortBy([]string{"-_score", "_id"})
	if sr.Highlight && !sr.Query.IsMatchAll() {
		req.Highlight = bleve.NewHighlightWithStyle(html.Name)
		for _, f := range SearchableFields {
			req.Highlight.AddField(f)
		}
	}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, edmerrors.New(edmerrors.ErrCodeSearchFailed, "search failed", err)
	}

	out := &SearchResult{
		Hits:  make([]Hit, 0, len(res.Hits)),
		Total: res.Total,
		Took:  res.Took,
	}
	for _, hit := range res.Hits {
		h := Hit{
			Document: documentFromHit(hit),
			Score:    hit.Score,
		}
		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string][]string, len(hit.Fragments))
			for field, frags := range hit.Fragments {
				h.Highlights[field] = frags
			}
		}
		out.Hits = append(out.Hits, h)
	}
	return out, nil
}

func (b *BleveIndex) Aggregate(ctx context.Context, ar *AggregationRequest) (map[string][]Bucket, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrIndexClosed
	}

	req := bleve.NewSearchRequestOptions(buildQuery(ar.Query), 0, 0, false)
	for _, tf := range ar.Terms {
		req.AddFacet(tf.Name, bleve.NewFacetRequest(tf.Field, tf.Size))
	}
	for _, df := range ar.Dates {
		fr := bleve.NewFacetRequest(df.Field, len(df.Ranges))
		for _, r := range df.Ranges {
			fr.AddDateTimeRange(r.Name, r.Start, r.End)
		}
		req.AddFacet(df.Name, fr)
	}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, edmerrors.New(edmerrors.ErrCodeAggregationFailed, "aggregation failed", err)
	}

	out := make(map[string][]Bucket, len(ar.Terms)+len(ar.Dates))
	for _, tf := range ar.Terms {
		out[tf.Name] = termBuckets(res.Facets[tf.Name])
	}
	for _, df := range ar.Dates {
		out[df.Name] = dateBuckets(df, res.Facets[df.Name])
	}
	return out, nil
}

func termBuckets(fr *search.FacetResult) []Bucket {
	buckets := []Bucket{}
	if fr == nil || fr.Terms == nil {
		return buckets
	}
	for _, t := range fr.Terms.Terms() {
		buckets = append(buckets, Bucket{Key: t.Term, Count: int64(t.Count)})
	}
	return buckets
}

// dateBuckets lists every requested range in request order.
func dateBuckets(df DateFacet, fr *search.FacetResult) []Bucket {
	counts := make(map[string]int64)
	if fr != nil {
		for _, dr := range fr.DateRanges {
			counts[dr.Name] = int64(dr.Count)
		}
	}
	buckets := make([]Bucket, 0, len(df.Ranges))
	for _, r := range df.Ranges {
		buckets = append(buckets, Bucket{Key: r.Name, Count: counts[r.Name]})
	}
	return buckets
}

func (b *BleveIndex) Count(ctx context.Context, sourceID string) (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ErrIndexClosed
	}

	if sourceID == "" {
		n, err := b.index.DocCount()
		if err != nil {
			return 0, edmerrors.IndexError("failed to count documents", err)
		}
		return n, nil
	}

	q := bleve.NewTermQuery(sourceID)
	q.SetField(FieldSourceID)
	res, err := b.index.SearchInContext(ctx, bleve.NewSearchRequestOptions(q, 0, 0, false))
	if err != nil {
		return 0, edmerrors.IndexError(fmt.Sprintf("failed to count documents of source %s", sourceID), err)
	}
	return res.Total, nil
}

// Get returns one document by id, or ErrNotFound.
func (b *BleveIndex) Get(ctx context.Context, id string) (*Document, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrIndexClosed
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{id}), 1, 0, false)
	req.Fields = storedFields
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, edmerrors.IndexError(fmt.Sprintf("failed to load document %s", id), err)
	}
	if len(res.Hits) == 0 {
		return nil, ErrNotFound
	}
	doc := documentFromHit(res.Hits[0])
	return &doc, nil
}

func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		return b.index.Close()
	}
	return nil
}

func documentFromHit(hit *search.DocumentMatch) Document {
	doc := Document{
		ID:              hit.ID,
		Name:            stringField(hit.Fields, FieldName),
		Description:     stringField(hit.Fields, FieldDescription),
		NodePath:        stringField(hit.Fields, FieldNodePath),
		FileExtension:   stringField(hit.Fields, FieldFileExtension),
		FileContentType: stringField(hit.Fields, FieldFileContentType),
		SourceID:        stringField(hit.Fields, FieldSourceID),
		CategoryID:      stringField(hit.Fields, FieldCategoryID),
	}
	if s := stringField(hit.Fields, FieldFileDate); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			doc.FileDate = t
		}
	}
	return doc
}

func stringField(fields map[string]interface{}, name string) string {
	switch v := fields[name].(type) {
	case string:
		return v
	case []interface{}:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
