package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
	"github.com/Aman-CERP/edm/internal/store"
)

type seedDoc struct {
	id       string
	path     string
	ext      string
	category string
	date     time.Time
	content  string
}

// newSeededIndex returns an in-memory index holding docs.
func newSeededIndex(t *testing.T, docs ...seedDoc) *store.BleveIndex {
	t.Helper()
	idx, err := store.OpenBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	for _, d := range docs {
		category := d.category
		if category == "" {
			category = "cat-1"
		}
		doc := &store.Document{
			ID:              d.id,
			NodePath:        d.path,
			Name:            d.id,
			FileExtension:   d.ext,
			FileContentType: "text/plain",
			FileDate:        d.date,
			SourceID:        "src-1",
			CategoryID:      category,
		}
		require.NoError(t, idx.Upsert(context.Background(), doc, []byte(d.content)))
	}
	return idx
}

func newTestEngine(t *testing.T, idx store.DocumentIndex, cfg EngineConfig, opts ...EngineOption) *Engine {
	t.Helper()
	e, err := NewEngine(idx, cfg, opts...)
	require.NoError(t, err)
	return e
}

func hitIDs(hits []store.Hit) []string {
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.Document.ID)
	}
	return ids
}

func TestEngine_Search(t *testing.T) {
	// Given: three documents
	idx := newSeededIndex(t,
		seedDoc{id: "a", path: "/finance/budget 2019.txt", ext: "txt", content: "annual budget forecast"},
		seedDoc{id: "b", path: "/finance/budget draft.txt", ext: "txt", content: "draft numbers"},
		seedDoc{id: "c", path: "/hr/holidays.txt", ext: "txt", content: "holiday calendar"},
	)
	e := newTestEngine(t, idx, EngineConfig{})

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{"and semantics across fields", "budget forecast", []string{"a"}},
		{"path term", "finance", []string{"a", "b"}},
		{"negation", "budget -draft", []string{"a"}},
		{"phrase", `"holiday calendar"`, []string{"c"}},
		{"prefix", "holi*", []string{"c"}},
		{"blank matches all", "", []string{"a", "b", "c"}},
		{"no match", "nonexistent", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When: searching
			res, err := e.Search(context.Background(), tt.pattern)

			// Then: exactly the expected documents are returned
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, hitIDs(res.Hits))
			assert.Equal(t, uint64(len(tt.want)), res.Total)
			assert.Equal(t, tt.pattern, res.Pattern)
		})
	}
}

func TestEngine_Search_HighlightsAndOrder(t *testing.T) {
	idx := newSeededIndex(t,
		seedDoc{id: "once", path: "/a/one.txt", ext: "txt", content: "contract signed in spring"},
		seedDoc{id: "many", path: "/a/contract.txt", ext: "txt", content: "contract contract contract terms"},
	)
	e := newTestEngine(t, idx, EngineConfig{})

	res, err := e.Search(context.Background(), "contract")

	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "many", res.Hits[0].Document.ID, "higher score first")
	assert.GreaterOrEqual(t, res.Hits[0].Score, res.Hits[1].Score)
	for _, h := range res.Hits {
		require.Contains(t, h.Highlights, store.FieldContent)
		assert.Contains(t, h.Highlights[store.FieldContent][0], "<mark>contract</mark>")
	}
}

func TestEngine_SearchWithOptions_Pages(t *testing.T) {
	var docs []seedDoc
	for _, id := range []string{"d1", "d2", "d3", "d4", "d5"} {
		docs = append(docs, seedDoc{id: id, path: "/p/" + id + ".txt", ext: "txt", content: "shared word"})
	}
	e := newTestEngine(t, newSeededIndex(t, docs...), EngineConfig{})

	first, err := e.SearchWithOptions(context.Background(), "shared", SearchOptions{Limit: 2})
	require.NoError(t, err)
	second, err := e.SearchWithOptions(context.Background(), "shared", SearchOptions{Limit: 2, Offset: 2})
	require.NoError(t, err)

	assert.Len(t, first.Hits, 2)
	assert.Len(t, second.Hits, 2)
	assert.Equal(t, uint64(5), first.Total)
	assert.NotContains(t, hitIDs(second.Hits), first.Hits[0].Document.ID)
}

func TestEngine_UnusablePatternDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name    string
		index   store.DocumentIndex
		pattern string
	}{
		{"unbalanced quote", nil, `"unterminated`},
		{"bare minus", nil, "report -"},
		{"index rejects query", &brokenIndex{err: errors.New("index offline")}, "anything"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: an engine over a seeded or failing index
			idx := tt.index
			if idx == nil {
				idx = newSeededIndex(t)
			}
			e := newTestEngine(t, idx, EngineConfig{})

			// When: searching and suggesting with the pattern
			res, err := e.Search(context.Background(), tt.pattern)
			docs, suggestErr := e.Suggest(context.Background(), tt.pattern)

			// Then: both return empty results and no error
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, tt.pattern, res.Pattern)
			assert.Empty(t, res.Hits)
			assert.NotNil(t, res.Hits)
			assert.Zero(t, res.Total)
			require.NoError(t, suggestErr)
			assert.NotNil(t, docs)
			assert.Empty(t, docs)
		})
	}
}

func TestEngine_Search_CancelledIndexFailure(t *testing.T) {
	// Given: a cancelled context and an index that fails
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newTestEngine(t, &brokenIndex{err: context.Canceled}, EngineConfig{})

	// When: searching
	_, err := e.Search(ctx, "anything")

	// Then: the cancellation is returned
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_Suggest(t *testing.T) {
	idx := newSeededIndex(t,
		seedDoc{id: "a", path: "/docs/invoice march.txt", ext: "txt"},
		seedDoc{id: "b", path: "/docs/inventory.txt", ext: "txt"},
		seedDoc{id: "c", path: "/docs/minutes.txt", ext: "txt"},
	)
	e := newTestEngine(t, idx, EngineConfig{SuggestLimit: 10})

	tests := []struct {
		name   string
		prefix string
		want   []string
	}{
		{"prefix", "inv", []string{"a", "b"}},
		{"or semantics", "invo minu", []string{"a", "c"}},
		{"blank", "  ", []string{}},
		{"lone star", "*", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := e.Suggest(context.Background(), tt.prefix)

			require.NoError(t, err)
			ids := []string{}
			for _, d := range docs {
				ids = append(ids, d.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}

func TestEngine_Suggest_Limit(t *testing.T) {
	var docs []seedDoc
	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		docs = append(docs, seedDoc{id: id, path: "/reports/" + id + ".txt", ext: "txt"})
	}
	e := newTestEngine(t, newSeededIndex(t, docs...), EngineConfig{SuggestLimit: 3})

	got, err := e.Suggest(context.Background(), "repo")

	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(nil, EngineConfig{})
	assert.ErrorIs(t, err, ErrNilDependency)

	_, err = NewEngine(newSeededIndex(t), EngineConfig{TopTermsExclusion: "(["})
	assert.Equal(t, edmerrors.ErrCodeConfigInvalid, edmerrors.GetCode(err))

	e, err := NewEngine(newSeededIndex(t), EngineConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultEngineConfig(), e.config)
}

// brokenIndex fails every call.
type brokenIndex struct {
	err error
}

var _ store.DocumentIndex = (*brokenIndex)(nil)

func (b *brokenIndex) Upsert(context.Context, *store.Document, []byte) error { return b.err }
func (b *brokenIndex) Delete(context.Context, string) error { return b.err }
func (b *brokenIndex) ListIDsForSource(context.Context, string, string, int) ([]string, string, error) {
	return nil, "", b.err
}
func (b *brokenIndex) Query(context.Context, *store.SearchRequest) (*store.SearchResult, error) {
	return nil, b.err
}
func (b *brokenIndex) Aggregate(context.Context, *store.AggregationRequest) (map[string][]store.Bucket, error) {
	return nil, b.err
}
func (b *brokenIndex) Count(context.Context, string) (uint64, error) { return 0, b.err }
func (b *brokenIndex) Close() error { return nil }
