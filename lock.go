// Cross-process coordination of shard output.
//
// Two processes sharding into the same directory would interleave shard
// writes and race on the manifest rename. Shard therefore holds an
// exclusive lock on <manifest>.lock for the whole run, and Verify holds a
// shared lock while it reads, so a verify never observes a half-replaced
// shard set. The lock file is left in place after use: removing it would
// let a waiter acquire a lock on an unlinked inode while a newcomer locks
// a fresh file.
//
// Locks are flock(2) / LockFileEx on the lock file's descriptor. A
// FileSystem whose files do not expose a descriptor gets no locking.
package linechunk

import (
	"fmt"
	"sync"
)

// LockMode selects shared (read) or exclusive (write) locking.
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

// fder is implemented by *os.File.
type fder interface {
	Fd() uintptr
}

// fileLock holds an OS-level lock on one open file. The mutex serialises
// lock syscalls against release so the descriptor cannot be closed while a
// syscall is using it.
type fileLock struct {
	mu sync.Mutex
	f  File
	fd uintptr
}

// acquireLock opens name (creating it if needed) and locks it in mode. It
// blocks until the lock is granted. A nil lock with a nil error means the
// file system does not support locking.
func acquireLock(fsys FileSystem, name string, mode LockMode, create bool) (*fileLock, error) {
	if !fsys.Exists(name) {
		if !create {
			return nil, nil
		}
		w, err := fsys.Create(name)
		if err != nil {
			return nil, fmt.Errorf("lock: create: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lock: create: %w", err)
		}
	}

	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("lock: open: %w", err)
	}
	d, ok := f.(fder)
	if !ok {
		f.Close()
		return nil, nil
	}

	l := &fileLock{f: f, fd: d.Fd()}
	if err := l.lock(mode); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock: %w", err)
	}
	return l, nil
}

// release unlocks and closes the lock file. Safe on a nil lock and safe to
// call more than once.
func (l *fileLock) release() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.unlock()
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}

// lockPath returns the lock file guarding the shard set of a manifest.
func lockPath(manifest string) string {
	return manifest + ".lock"
}
