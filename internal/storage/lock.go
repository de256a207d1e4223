package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// Lock takes an exclusive lock on dir. On the local file system this is an
// advisory flock on dir/.textcase.lock; in memory it is a per-directory mutex.
func (f *FS) Lock(dir string) (Unlock, error) {
	rel, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	if f.root == "" {
		return f.locks.lock(rel), nil
	}

	abs := filepath.Join(f.root, rel)
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir for lock: %w", err)
	}
	fl := flock.New(filepath.Join(abs, LockFile))
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("storage: lock %s: %w", dir, err)
	}
	return fl.Unlock, nil
}

type memLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMemLocks() *memLocks {
	return &memLocks{locks: make(map[string]*sync.Mutex)}
}

func (m *memLocks) lock(name string) Unlock {
	m.mu.Lock()
	l, ok := m.locks[name]
	if !ok {
		l = &sync.Mutex{}
		m.locks[name] = l
	}
	m.mu.Unlock()

	l.Lock()
	return func() error {
		l.Unlock()
		return nil
	}
}
