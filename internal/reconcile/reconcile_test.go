package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/edm/internal/store"
)

type fixture struct {
	index   *store.BleveIndex
	catalog *store.Catalog
	source  *store.Source
}

// newFixture opens an in-memory index and catalog holding one source with
// the given document ids.
func newFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()
	ctx := context.Background()

	idx, err := store.OpenBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	cat, err := store.OpenCatalog("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	category, err := cat.ResolveCategory(ctx, "finance")
	require.NoError(t, err)
	src, err := cat.ResolveSource(ctx, "share", category.ID)
	require.NoError(t, err)

	for _, id := range ids {
		doc := &store.Document{ID: id, NodePath: "/share/" + id, Name: id, SourceID: src.ID, CategoryID: category.ID}
		require.NoError(t, idx.Upsert(ctx, doc, nil))
	}
	return &fixture{index: idx, catalog: cat, source: src}
}

func (f *fixture) ids(t *testing.T) []string {
	t.Helper()
	var all []string
	token := ""
	for {
		ids, next, err := f.index.ListIDsForSource(context.Background(), f.source.ID, token, 100)
		require.NoError(t, err)
		all = append(all, ids...)
		if next == "" {
			return all
		}
		token = next
	}
}

func TestSynchronizer_SweepsUnvisited(t *testing.T) {
	// Given: a source with indexed ids A, B, C
	ctx := context.Background()
	f := newFixture(t, "A", "B", "C")
	syncer := New(f.index, f.catalog, Options{})

	// When: a crawl only visits A and B
	sess, err := syncer.Begin(ctx, "share")
	require.NoError(t, err)
	assert.True(t, sess.Active())
	assert.Equal(t, 3, sess.Remaining())
	sess.MarkVisited("A")
	sess.MarkVisited("B")
	res, err := syncer.End(ctx, "share")

	// Then: C is deleted and A, B remain
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.Zero(t, res.Failed)
	assert.Equal(t, []string{"A", "B"}, f.ids(t))
	assert.False(t, syncer.Active("share"))
}

func TestSynchronizer_SnapshotPagesThroughListing(t *testing.T) {
	ctx := context.Background()
	var ids []string
	for i := 0; i < 23; i++ {
		ids = append(ids, fmt.Sprintf("doc-%02d", i))
	}
	f := newFixture(t, ids...)
	syncer := New(f.index, f.catalog, Options{PageSize: 10})

	sess, err := syncer.Begin(ctx, "share")
	require.NoError(t, err)
	assert.Equal(t, 23, sess.Remaining())

	for _, id := range ids {
		sess.MarkVisited(id)
	}
	res, err := syncer.End(ctx, "share")
	require.NoError(t, err)
	assert.Zero(t, res.Deleted)
	assert.Len(t, f.ids(t), 23)
}

func TestSynchronizer_UnknownSourceIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "A")
	syncer := New(f.index, f.catalog, Options{})

	sess, err := syncer.Begin(ctx, "brand-new")
	require.NoError(t, err)
	assert.False(t, sess.Active())
	sess.MarkVisited("A")

	res, err := syncer.End(ctx, "brand-new")
	require.NoError(t, err)
	assert.Zero(t, res.Deleted)
	assert.Equal(t, []string{"A"}, f.ids(t))
}

func TestSynchronizer_EndWithoutBegin(t *testing.T) {
	f := newFixture(t, "A")
	syncer := New(f.index, f.catalog, Options{})

	res, err := syncer.End(context.Background(), "share")

	require.NoError(t, err)
	assert.Zero(t, res.Deleted)
	assert.Equal(t, []string{"A"}, f.ids(t))
}

func TestSynchronizer_BeginTwiceFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	syncer := New(f.index, f.catalog, Options{})

	_, err := syncer.Begin(ctx, "share")
	require.NoError(t, err)
	_, err = syncer.Begin(ctx, "share")
	assert.ErrorIs(t, err, ErrSyncInProgress)

	_, err = syncer.Begin(ctx, "other")
	assert.NoError(t, err, "sessions of different sources are independent")

	_, err = syncer.End(ctx, "share")
	require.NoError(t, err)
	_, err = syncer.Begin(ctx, "share")
	assert.NoError(t, err, "ending frees the key")
}

func TestSynchronizer_CrossProcessLock(t *testing.T) {
	// Given: two synchronizers sharing a lock directory
	ctx := context.Background()
	f := newFixture(t, "A")
	lockDir := t.TempDir()
	first := New(f.index, f.catalog, Options{LockDir: lockDir})
	second := New(f.index, f.catalog, Options{LockDir: lockDir})

	// When: both begin the same source
	_, err := first.Begin(ctx, "share")
	require.NoError(t, err)
	_, err = second.Begin(ctx, "share")

	// Then: the second is refused until the first ends
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.False(t, second.Active("share"))

	_, err = first.End(ctx, "share")
	require.NoError(t, err)
	_, err = second.Begin(ctx, "share")
	assert.NoError(t, err)
	second.Discard("share")
}

func TestSynchronizer_DiscardKeepsDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "A", "B")
	syncer := New(f.index, f.catalog, Options{})

	_, err := syncer.Begin(ctx, "share")
	require.NoError(t, err)
	syncer.Discard("share")

	assert.False(t, syncer.Active("share"))
	assert.Equal(t, []string{"A", "B"}, f.ids(t))
	syncer.Discard("share")
}

func TestSession_MarkVisitedConcurrently(t *testing.T) {
	ctx := context.Background()
	var ids []string
	for i := 0; i < 50; i++ {
		ids = append(ids, fmt.Sprintf("id-%02d", i))
	}
	f := newFixture(t, ids...)
	syncer := New(f.index, f.catalog, Options{PageSize: 7})
	sess, err := syncer.Begin(ctx, "share")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sess.MarkVisited(id)
		}(id)
	}
	wg.Wait()

	assert.Zero(t, sess.Remaining())
}

func TestSession_NilIsSafe(t *testing.T) {
	var sess *Session

	assert.NotPanics(t, func() { sess.MarkVisited("x") })
	assert.False(t, sess.Active())
	assert.Zero(t, sess.Remaining())
}

type failingIndex struct {
	Index
	listErr   error
	deleteErr error
}

func (f *failingIndex) ListIDsForSource(ctx context.Context, sourceID, token string, size int) ([]string, string, error) {
	if f.listErr != nil {
		return nil, "", f.listErr
	}
	return f.Index.ListIDsForSource(ctx, sourceID, token, size)
}

func (f *failingIndex) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Index.Delete(ctx, id)
}

func TestSynchronizer_BestEffortFailures(t *testing.T) {
	tests := []struct {
		name        string
		listErr     error
		deleteErr   error
		wantDeleted int
		wantFailed  int
	}{
		{"listing fails leaves empty snapshot", errors.New("index down"), nil, 0, 0},
		{"delete failures are counted", nil, errors.New("read only"), 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, "A", "B")
			idx := &failingIndex{Index: f.index, listErr: tt.listErr, deleteErr: tt.deleteErr}
			syncer := New(idx, f.catalog, Options{})

			_, err := syncer.Begin(ctx, "share")
			require.NoError(t, err)
			res, err := syncer.End(ctx, "share")

			require.NoError(t, err)
			assert.Equal(t, tt.wantDeleted, res.Deleted)
			assert.Equal(t, tt.wantFailed, res.Failed)
			assert.Equal(t, []string{"A", "B"}, f.ids(t))
		})
	}
}

func TestSynchronizer_EndCancelled(t *testing.T) {
	f := newFixture(t, "A", "B")
	syncer := New(f.index, f.catalog, Options{})
	_, err := syncer.Begin(context.Background(), "share")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	res, err := syncer.End(ctx, "share")

	require.NoError(t, err)
	assert.Zero(t, res.Deleted)
	assert.Equal(t, 2, res.Failed)
}
