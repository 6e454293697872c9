package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	apperr "github.com/Aman-CERP/invsearch/internal/errors"
)

// writerLock is a cross-process lock guaranteeing one writer per index
// directory. The lock file sits next to the directory as <path>.lock.
type writerLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

func newWriterLock(indexPath string) *writerLock {
	lockPath := filepath.Clean(indexPath) + ".lock"
	return &writerLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// acquire takes the lock without blocking. A lock held elsewhere returns
// ErrIndexLocked.
func (l *writerLock) acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	if !acquired {
		return apperr.New(apperr.ErrCodeIndexLocked,
			fmt.Sprintf("index is locked by another writer (%s)", l.path), nil).
			WithDetail("lock_file", l.path).
			WithSuggestion("Stop the other invsearch process or point index.path elsewhere")
	}
	l.locked = true
	return nil
}

// release unlocks. Safe to call more than once.
func (l *writerLock) release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release index lock: %w", err)
	}
	return nil
}
