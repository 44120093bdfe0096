// Package cachefs manages the on-disk cache directory under
// <root>/<cache-dir>/: the single-writer lock guarding saveIndices, atomic
// write-then-rename persistence for index.json/bm25.json/graph.json, and
// an in-process LRU cache fronting cache/parse/<hash>.json.
package cachefs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock is the process-wide, cross-process exclusive lock guarding writes
// to one cache directory.
type Lock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewLock returns a lock for <cacheDir>/.write.lock. The lock file's
// parent directory need not exist yet.
func NewLock(cacheDir string) *Lock {
	path := filepath.Join(cacheDir, ".write.lock")
	return &Lock{path: path, flock: flock.New(path)}
}

// Lock acquires the exclusive lock, blocking until it is available.
func (l *Lock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("cachefs: create lock directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("cachefs: acquire lock: %w", err)
	}
	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking.
func (l *Lock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("cachefs: create lock directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("cachefs: acquire lock: %w", err)
	}
	l.locked = acquired
	return acquired, nil
}

// Unlock releases the lock. Safe to call on an already-unlocked Lock.
func (l *Lock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("cachefs: release lock: %w", err)
	}
	l.locked = false
	return nil
}
