package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Aman-CERP/edm/internal/config"
	edmerrors "github.com/Aman-CERP/edm/internal/errors"
	"github.com/Aman-CERP/edm/internal/search"
	"github.com/Aman-CERP/edm/internal/store"
)

// errInterrupted reports a command stopped by SIGINT or SIGTERM.
var errInterrupted = errors.New("interrupted")

// stores holds the open document index and catalog of one command run.
type stores struct {
	index   *store.BleveIndex
	catalog *store.Catalog
}

// openStores opens the index and catalog. With mustExist, a missing index
// is an error instead of being created empty.
func openStores(cfg *config.Config, mustExist bool) (*stores, error) {
	indexPath := cfg.IndexPath()
	if mustExist {
		if _, err := os.Stat(indexPath); os.IsNotExist(err) {
			return nil, edmerrors.IndexError(fmt.Sprintf("no index found at %s", indexPath), err).
				WithSuggestion("run 'edm crawl <dir>' first, or pass --data-dir")
		}
	}

	catalog, err := store.OpenCatalog(cfg.CatalogPath())
	if err != nil {
		return nil, err
	}
	index, err := store.OpenBleveIndex(indexPath)
	if err != nil {
		_ = catalog.Close()
		return nil, err
	}
	return &stores{index: index, catalog: catalog}, nil
}

func (s *stores) Close() error {
	return errors.Join(s.index.Close(), s.catalog.Close())
}

// engineConfig maps the search settings onto the engine.
func engineConfig(cfg *config.Config) search.EngineConfig {
	ec := search.DefaultEngineConfig()
	ec.MaxResults = cfg.Search.MaxResults
	ec.SuggestLimit = cfg.Search.SuggestLimit
	ec.ExtensionFacetSize = cfg.Search.ExtensionFacetSize
	ec.TopTermsSize = cfg.Search.TopTermsSize
	ec.TopTermsExclusion = cfg.Search.TopTermsExclusionRegex
	return ec
}

// newEngine builds a search engine resolving categories through the catalog.
func newEngine(cfg *config.Config, s *stores) (*search.Engine, error) {
	categories, err := search.NewCategoryCache(s.catalog, cfg.Search.CategoryCacheSize)
	if err != nil {
		return nil, err
	}
	return search.NewEngine(s.index, engineConfig(cfg), search.WithCategoryLookup(categories))
}

// interrupted maps a cancellation caused by a signal to errInterrupted.
func interrupted(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return errInterrupted
	}
	return err
}
