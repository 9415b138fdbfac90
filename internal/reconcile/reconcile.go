// Package reconcile removes index entries for files that vanished from a
// source between crawls.
//
// A synchronized crawl is bracketed by Begin and End. Begin snapshots every
// document id indexed for the source; the crawler marks each id it upserts
// as visited; End deletes the ids never visited. Sessions are keyed by
// source name and exclusive per key, in-process and across processes.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
	"github.com/Aman-CERP/edm/internal/store"
)

// DefaultPageSize is the listing page size used to build snapshots.
const DefaultPageSize = 10

// ErrSyncInProgress is returned by Begin when the source already has an
// active session in this or another process.
var ErrSyncInProgress = edmerrors.New(edmerrors.ErrCodeSyncInProgress,
	"a synchronized crawl of this source is already running", nil)

// Index is the part of store.DocumentIndex the synchronizer needs.
type Index interface {
	ListIDsForSource(ctx context.Context, sourceID, pageToken string, size int) ([]string, string, error)
	Delete(ctx context.Context, id string) error
}

// SourceFinder looks sources up by name. *store.Catalog implements it.
type SourceFinder interface {
	FindSource(ctx context.Context, name string) (*store.Source, error)
}

// Options configures a Synchronizer.
type Options struct {
	// PageSize is the listing page size (0 = DefaultPageSize).
	PageSize int

	// LockDir holds per-source lock files. Empty disables cross-process
	// locking.
	LockDir string
}

// Synchronizer owns the active sessions, one per source.
type Synchronizer struct {
	index   Index
	sources SourceFinder
	opts    Options

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates a Synchronizer.
func New(index Index, sources SourceFinder, opts Options) *Synchronizer {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Synchronizer{
		index:    index,
		sources:  sources,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Session is the snapshot of one source: the ids indexed before the crawl
// and not yet visited. It is safe for concurrent use; a nil or inactive
// Session ignores MarkVisited.
type Session struct {
	sourceName string
	sourceID   string
	active     bool
	lock       *SourceLock

	mu  sync.Mutex
	ids map[string]struct{}
}

// MarkVisited removes id from the snapshot.
func (s *Session) MarkVisited(id string) {
	if s == nil || !s.active {
		return
	}
	s.mu.Lock()
	delete(s.ids, id)
	s.mu.Unlock()
}

// Active reports whether the source existed when the session began.
func (s *Session) Active() bool {
	return s != nil && s.active
}

// Remaining returns the number of ids not visited so far.
func (s *Session) Remaining() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// SweepResult summarises End.
type SweepResult struct {
	Deleted  int           `json:"deleted"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Begin opens a session for sourceName. An unknown source yields an
// inactive session: there is nothing to reconcile for a new source.
// Listing failures are logged and leave a partial snapshot, which can only
// under-delete.
func (s *Synchronizer) Begin(ctx context.Context, sourceName string) (*Session, error) {
	sess := &Session{sourceName: sourceName, ids: make(map[string]struct{})}

	s.mu.Lock()
	if _, busy := s.sessions[sourceName]; busy {
		s.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	s.sessions[sourceName] = sess
	s.mu.Unlock()

	if err := s.begin(ctx, sess); err != nil {
		s.forget(sourceName)
		_ = sess.lock.Unlock()
		return nil, err
	}
	return sess, nil
}

func (s *Synchronizer) begin(ctx context.Context, sess *Session) error {
	if s.opts.LockDir != "" {
		lock := NewSourceLock(s.opts.LockDir, sess.sourceName)
		acquired, err := lock.TryLock()
		if err != nil {
			return edmerrors.New(edmerrors.ErrCodeFilePermission,
				fmt.Sprintf("failed to lock source %q", sess.sourceName), err).
				WithDetail("path", lock.Path())
		}
		if !acquired {
			return ErrSyncInProgress
		}
		sess.lock = lock
	}

	src, err := s.sources.FindSource(ctx, sess.sourceName)
	if errors.Is(err, store.ErrNotFound) {
		slog.Info("sync_skipped_new_source", slog.String("source", sess.sourceName))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find source %q: %w", sess.sourceName, err)
	}
	sess.sourceID = src.ID
	sess.active = true

	start := time.Now()
	token := ""
	pages := 0
	for {
		ids, next, err := s.index.ListIDsForSource(ctx, src.ID, token, s.opts.PageSize)
		if err != nil {
			slog.Warn("snapshot_listing_failed",
				slog.String("source", sess.sourceName),
				slog.Int("pages", pages),
				slog.String("error", err.Error()))
			break
		}
		pages++
		for _, id := range ids {
			sess.ids[id] = struct{}{}
		}
		if next == "" {
			break
		}
		token = next
	}

	slog.Info("snapshot_taken",
		slog.String("source", sess.sourceName),
		slog.Int("documents", len(sess.ids)),
		slog.Int("pages", pages),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// End deletes every id of the session never visited, then discards the
// session. Delete failures are logged and counted. Ending a source without
// a session is a no-op.
func (s *Synchronizer) End(ctx context.Context, sourceName string) (*SweepResult, error) {
	sess := s.take(sourceName)
	if sess == nil {
		return &SweepResult{}, nil
	}
	defer s.release(sess)

	result := &SweepResult{}
	if !sess.active {
		return result, nil
	}

	start := time.Now()
	sess.mu.Lock()
	stale := make([]string, 0, len(sess.ids))
	for id := range sess.ids {
		stale = append(stale, id)
	}
	sess.ids = nil
	sess.mu.Unlock()

	for _, id := range stale {
		if err := ctx.Err(); err != nil {
			result.Failed += len(stale) - result.Deleted - result.Failed
			break
		}
		if err := s.index.Delete(ctx, id); err != nil {
			slog.Warn("sweep_delete_failed",
				slog.String("source", sourceName),
				slog.String("id", id),
				slog.String("error", err.Error()))
			result.Failed++
			continue
		}
		result.Deleted++
	}
	result.Duration = time.Since(start)

	slog.Info("sweep_complete",
		slog.String("source", sourceName),
		slog.Int("deleted", result.Deleted),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// Discard drops the session without sweeping. Used when the crawl did not
// finish: unvisited ids may still exist on disk.
func (s *Synchronizer) Discard(sourceName string) {
	sess := s.take(sourceName)
	if sess == nil {
		return
	}
	s.release(sess)
	slog.Info("sync_discarded",
		slog.String("source", sourceName),
		slog.Int("unvisited", sess.Remaining()))
}

// Active reports whether sourceName has an open session.
func (s *Synchronizer) Active(sourceName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sourceName]
	return ok
}

func (s *Synchronizer) take(sourceName string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[sourceName]
	delete(s.sessions, sourceName)
	return sess
}

func (s *Synchronizer) forget(sourceName string) {
	s.mu.Lock()
	delete(s.sessions, sourceName)
	s.mu.Unlock()
}

func (s *Synchronizer) release(sess *Session) {
	if err := sess.lock.Unlock(); err != nil {
		slog.Warn("source_unlock_failed",
			slog.String("source", sess.sourceName),
			slog.String("error", err.Error()))
	}
}
