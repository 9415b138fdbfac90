package reconcile

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// SourceLock is a cross-process advisory lock serialising crawls of one
// source. The lock file lives at <dir>/<escaped source name>.lock.
type SourceLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewSourceLock creates an unlocked lock for sourceName under dir.
func NewSourceLock(dir, sourceName string) *SourceLock {
	lockPath := filepath.Join(dir, url.PathEscape(sourceName)+".lock")
	return &SourceLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock acquires the lock without blocking. It returns false when another
// process or session holds it.
func (l *SourceLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (l *SourceLock) Unlock() error {
	if l == nil || !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func (l *SourceLock) Path() string {
	return l.path
}

func (l *SourceLock) IsLocked() bool {
	return l.locked
}
