// Package crawl walks a filesystem tree and upserts one document record per
// file into the document index.
package crawl

import (
	"context"
	"time"

	"github.com/Aman-CERP/edm/internal/store"
)

// DefaultMaxFileSize is the size ceiling above which files are skipped (100 MiB).
const DefaultMaxFileSize = 100 * 1024 * 1024

// Resolver resolves catalog identities and records crawl runs.
// *store.Catalog implements it.
type Resolver interface {
	ResolveCategory(ctx context.Context, name string) (*store.Category, error)
	ResolveSource(ctx context.Context, name, categoryID string) (*store.Source, error)
	NotifyCrawlStart(ctx context.Context, sourceName string) error
	NotifyCrawlEnd(ctx context.Context, sourceName string, summary store.RunSummary) error
}

// Sink receives document records with their content bytes.
type Sink interface {
	Upsert(ctx context.Context, doc *store.Document, content []byte) error
}

// Marker is told about every document successfully upserted.
// *reconcile.Session implements it; a nil Marker is allowed.
type Marker interface {
	MarkVisited(id string)
}

// Request describes one crawl.
type Request struct {
	// Root is the directory or file to crawl.
	Root string

	SourceName   string
	CategoryName string

	// Exclusion is a regex; paths matching it anywhere are skipped with
	// their whole subtree. Empty excludes nothing.
	Exclusion string

	// Recurse lists subdirectories below the root. The root itself is
	// always listed.
	Recurse bool

	Marker Marker
}

// Stats summarises a crawl.
type Stats struct {
	SourceID   string        `json:"sourceId"`
	CategoryID string        `json:"categoryId"`
	Indexed    int           `json:"indexed"`
	Skipped    int           `json:"skipped"`
	Excluded   int           `json:"excluded"`
	Errors     int           `json:"errors"`
	Duration   time.Duration `json:"duration"`
}

// EventKind classifies progress events.
type EventKind int

const (
	// EventIndexed means a file was upserted.
	EventIndexed EventKind = iota
	// EventSkipped means a file was over the size ceiling or not a regular file.
	EventSkipped
	// EventExcluded means a path matched the exclusion pattern.
	EventExcluded
	// EventFailed means reading or upserting a file failed.
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventIndexed:
		return "indexed"
	case EventSkipped:
		return "skipped"
	case EventExcluded:
		return "excluded"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is a per-path progress update.
type Event struct {
	Kind EventKind
	Path string
	ID   string
	Err  error
}

// ProgressFunc receives events from worker goroutines and must be safe for
// concurrent use.
type ProgressFunc func(Event)
