package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/edm/internal/store"
)

var facetNow = time.Date(2026, time.June, 15, 10, 0, 0, 0, time.UTC)

type mapLookup struct {
	mu    sync.Mutex
	cats  map[string]string
	calls int
}

func (m *mapLookup) FindCategory(_ context.Context, id string) (*store.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	name, ok := m.cats[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.Category{ID: id, Name: name}, nil
}

func bucketKeys(buckets []store.Bucket) []string {
	keys := make([]string, 0, len(buckets))
	for _, b := range buckets {
		keys = append(keys, b.Key)
	}
	return keys
}

func TestEngine_Aggregations(t *testing.T) {
	// Given: documents spread over extensions, dates and categories
	idx := newSeededIndex(t,
		seedDoc{id: "1", path: "/a/x.pdf", ext: "pdf", category: "c-fin", date: facetNow.AddDate(0, 0, -3), content: "budget"},
		seedDoc{id: "2", path: "/a/y.pdf", ext: "pdf", category: "c-fin", date: facetNow.AddDate(0, -4, 0), content: "budget"},
		seedDoc{id: "3", path: "/a/z.doc", ext: "doc", category: "c-legal", date: facetNow.AddDate(-3, 0, 0), content: "budget"},
		seedDoc{id: "4", path: "/a/w.txt", ext: "txt", category: "c-gone", date: facetNow.AddDate(0, -1, 0), content: "unrelated"},
	)
	lookup := &mapLookup{cats: map[string]string{"c-fin": "Finance", "c-legal": "Legal"}}
	e := newTestEngine(t, idx, EngineConfig{}, WithClock(func() time.Time { return facetNow }), WithCategoryLookup(lookup))

	// When: aggregating over every document
	aggs := e.Aggregations(context.Background(), "")

	// Then: extensions are counted in descending order
	assert.Equal(t, []store.Bucket{
		{Key: "pdf", Count: 2},
		{Key: "doc", Count: 1},
		{Key: "txt", Count: 1},
	}, aggs[FacetFileExtension])

	// And: date windows overlap and keep their fixed order
	assert.Equal(t, []store.Bucket{
		{Key: BucketLastMonth, Count: 2},
		{Key: BucketLast2Months, Count: 2},
		{Key: BucketLast6Months, Count: 3},
		{Key: BucketLastYear, Count: 3},
		{Key: BucketUntilNow, Count: 4},
	}, aggs[FacetFileDate])

	// And: categories are named, and an unknown one keeps its id
	cats := map[string]store.Bucket{}
	for _, b := range aggs[FacetFileCategory] {
		cats[b.Key] = b
	}
	require.Contains(t, cats, "Finance")
	assert.Equal(t, int64(2), cats["Finance"].Count)
	require.NotNil(t, cats["Finance"].Category)
	assert.Equal(t, "c-fin", cats["Finance"].Category.ID)
	assert.Contains(t, cats, "Legal")
	require.Contains(t, cats, "c-gone")
	assert.Nil(t, cats["c-gone"].Category)
}

func TestEngine_Aggregations_FollowPattern(t *testing.T) {
	idx := newSeededIndex(t,
		seedDoc{id: "1", path: "/a/x.pdf", ext: "pdf", content: "budget"},
		seedDoc{id: "2", path: "/a/y.doc", ext: "doc", content: "minutes"},
	)
	e := newTestEngine(t, idx, EngineConfig{})

	aggs := e.Aggregations(context.Background(), "budget")

	assert.Equal(t, []string{"pdf"}, bucketKeys(aggs[FacetFileExtension]))
}

func TestEngine_Aggregations_Degrade(t *testing.T) {
	tests := []struct {
		name    string
		index   store.DocumentIndex
		pattern string
	}{
		{"unparseable pattern", newSeededIndex(t, seedDoc{id: "1", path: "/a.txt", ext: "txt"}), `"open`},
		{"index failure", &brokenIndex{err: errors.New("index offline")}, "budget"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.index, EngineConfig{})

			aggs := e.Aggregations(context.Background(), tt.pattern)

			require.Len(t, aggs, 3)
			for name, buckets := range aggs {
				assert.NotNil(t, buckets, name)
				assert.Empty(t, buckets, name)
			}
		})
	}
}

func TestDateRanges_MonthRounding(t *testing.T) {
	// Given: the last day of March
	now := time.Date(2026, time.March, 31, 18, 0, 0, 0, time.UTC)

	ranges := DateRanges(now)

	// Then: start bounds fall on the first of the month, end is open
	require.Len(t, ranges, 5)
	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), ranges[0].Start)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), ranges[1].Start)
	assert.Equal(t, time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC), ranges[2].Start)
	assert.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), ranges[3].Start)
	for _, r := range ranges[:4] {
		assert.True(t, r.End.IsZero(), r.Name)
	}
	assert.True(t, ranges[4].Start.IsZero())
	assert.Equal(t, now, ranges[4].End)
}

func TestTopTermsExclusion(t *testing.T) {
	tests := []struct {
		name       string
		admin      string
		extensions []string
		wantExpr   string
		excluded   []string
		kept       []string
	}{
		{
			name: "admin unioned with extensions", admin: "tmp", extensions: []string{"pdf", "doc"},
			wantExpr: "^(?:tmp|pdf|doc)$",
			excluded: []string{"tmp", "pdf", "doc"},
			kept:     []string{"pdfs", "document", "temp"},
		},
		{
			name: "extensions are quoted", extensions: []string{"c++", "tar.gz"},
			wantExpr: `^(?:c\+\+|tar\.gz)$`,
			excluded: []string{"c++", "tar.gz"},
			kept:     []string{"targz", "c"},
		},
		{
			name: "admin alternation stays grouped", admin: "draft|copy",
			wantExpr: "^(?:draft|copy)$",
			excluded: []string{"draft", "copy"},
			kept:     []string{"drafts", "photocopy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := TopTermsExclusion(tt.admin, tt.extensions)

			require.NoError(t, err)
			assert.Equal(t, tt.wantExpr, re.String())
			for _, s := range tt.excluded {
				assert.True(t, re.MatchString(s), s)
			}
			for _, s := range tt.kept {
				assert.False(t, re.MatchString(s), s)
			}
		})
	}
}

func TestTopTermsExclusion_Empty(t *testing.T) {
	re, err := TopTermsExclusion("", nil)

	require.NoError(t, err)
	assert.Nil(t, re)
}

func TestEngine_TopTerms(t *testing.T) {
	// Given: paths sharing folder words and extensions
	idx := newSeededIndex(t,
		seedDoc{id: "1", path: "/archive/budget/tmp/one.pdf", ext: "pdf"},
		seedDoc{id: "2", path: "/archive/budget/two.pdf", ext: "pdf"},
		seedDoc{id: "3", path: "/archive/minutes/three.doc", ext: "doc"},
	)
	e := newTestEngine(t, idx, EngineConfig{TopTermsExclusion: "tmp", TopTermsSize: 10})

	// When: asking for top terms
	terms := e.TopTerms(context.Background(), "")

	// Then: extensions and administrative tokens are excluded
	keys := bucketKeys(terms)
	assert.Equal(t, "archive", keys[0])
	assert.Equal(t, int64(3), terms[0].Count)
	assert.Contains(t, keys, "budget")
	assert.NotContains(t, keys, "pdf")
	assert.NotContains(t, keys, "doc")
	assert.NotContains(t, keys, "tmp")
}

func TestEngine_TopTerms_Capped(t *testing.T) {
	var docs []seedDoc
	for _, w := range []string{"alpha", "bravo", "charlie", "delta", "echo"} {
		docs = append(docs, seedDoc{id: w, path: "/" + w + "/file.txt", ext: "txt"})
	}
	e := newTestEngine(t, newSeededIndex(t, docs...), EngineConfig{TopTermsSize: 2})

	terms := e.TopTerms(context.Background(), "")

	require.Len(t, terms, 2)
	assert.Equal(t, "file", terms[0].Key)
	assert.Equal(t, int64(5), terms[0].Count)
}

func TestEngine_TopTerms_Degrade(t *testing.T) {
	e := newTestEngine(t, newSeededIndex(t), EngineConfig{})
	assert.Empty(t, e.TopTerms(context.Background(), "-"))

	broken := newTestEngine(t, &brokenIndex{err: errors.New("offline")}, EngineConfig{})
	terms := broken.TopTerms(context.Background(), "")
	assert.NotNil(t, terms)
	assert.Empty(t, terms)
}
