package search

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/edm/internal/store"
)

// DefaultCategoryCacheSize bounds the category lookup cache.
const DefaultCategoryCacheSize = 256

// CategoryLookup resolves category ids for the fileCategory facet.
// *store.Catalog implements it.
type CategoryLookup interface {
	FindCategory(ctx context.Context, id string) (*store.Category, error)
}

// CategoryCache memoises successful lookups. Failures are not cached so a
// category created later resolves on the next call.
type CategoryCache struct {
	lookup CategoryLookup
	cache  *lru.Cache[string, *store.Category]
}

// NewCategoryCache wraps lookup with an LRU cache of size entries
// (0 = DefaultCategoryCacheSize).
func NewCategoryCache(lookup CategoryLookup, size int) (*CategoryCache, error) {
	if size <= 0 {
		size = DefaultCategoryCacheSize
	}
	cache, err := lru.New[string, *store.Category](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create category cache: %w", err)
	}
	return &CategoryCache{lookup: lookup, cache: cache}, nil
}

func (c *CategoryCache) FindCategory(ctx context.Context, id string) (*store.Category, error) {
	if cat, ok := c.cache.Get(id); ok {
		return cat, nil
	}
	cat, err := c.lookup.FindCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, cat)
	return cat, nil
}

// Purge empties the cache, e.g. after sources were removed.
func (c *CategoryCache) Purge() {
	c.cache.Purge()
}
